package syssched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-control-systems/dnssd-hub/components/status"
)

type testAsyncTaskRunnerTestTask struct {
	mu        sync.Mutex
	err       error
	callCount int
}

func (t *testAsyncTaskRunnerTestTask) Run() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callCount++

	if t.err != nil {
		return t.err
	}

	return nil
}

func (t *testAsyncTaskRunnerTestTask) getCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.callCount
}

func (t *testAsyncTaskRunnerTestTask) setError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.err = err
}

type testAsyncTaskRunnerErrorHandler struct {
	mu   sync.Mutex
	errs []error
}

func (h *testAsyncTaskRunnerErrorHandler) HandleError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errs = append(h.errs, err)
}

func (h *testAsyncTaskRunnerErrorHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.errs)
}

func TestAsyncTaskRunnerPeriodic(t *testing.T) {
	task := &testAsyncTaskRunnerTestTask{
		err: status.StatusNotSupported,
	}
	handler := &testAsyncTaskRunnerErrorHandler{}

	runner := NewAsyncTaskRunner(context.Background(), task, handler, AsyncTaskRunnerParams{
		UpdateInterval: time.Millisecond * 10,
	})
	require.Nil(t, runner.Start())

	for task.getCallCount() < 2 {
		time.Sleep(time.Millisecond * 10)
	}

	// The task keeps running after it succeeds.
	task.setError(nil)

	count := task.getCallCount()
	for task.getCallCount() < count+3 {
		time.Sleep(time.Millisecond * 10)
	}

	require.Nil(t, runner.Stop())

	count = task.getCallCount()
	time.Sleep(time.Millisecond * 50)
	require.Equal(t, count, task.getCallCount())
	require.GreaterOrEqual(t, handler.count(), 2)
}

func TestAsyncTaskRunnerReportErrors(t *testing.T) {
	task := &testAsyncTaskRunnerTestTask{
		err: status.StatusError,
	}
	handler := &testAsyncTaskRunnerErrorHandler{}

	runner := NewAsyncTaskRunner(context.Background(), task, handler, AsyncTaskRunnerParams{
		UpdateInterval: time.Millisecond * 10,
	})
	require.Nil(t, runner.Start())
	require.Equal(t, status.StatusInvalidState, runner.Start())

	for handler.count() < 3 {
		time.Sleep(time.Millisecond * 10)
	}

	require.Nil(t, runner.Stop())
	require.Nil(t, runner.Stop())
}

func TestAsyncTaskRunnerStopNotStarted(t *testing.T) {
	task := &testAsyncTaskRunnerTestTask{}

	runner := NewAsyncTaskRunner(context.Background(), task, nil, AsyncTaskRunnerParams{
		UpdateInterval: time.Millisecond * 10,
	})
	require.Nil(t, runner.Stop())
	require.Equal(t, 0, task.getCallCount())
}
