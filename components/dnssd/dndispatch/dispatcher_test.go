package dndispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
	"github.com/stretchr/testify/require"

	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnavahi"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dndaemon"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnzeroconf"
	"github.com/open-control-systems/dnssd-hub/components/status"
	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

type testDispatcherBus struct {
	closed bool
}

func (*testDispatcherBus) Subscribe(chan *dbus.Signal) error {
	return nil
}

func (*testDispatcherBus) Unsubscribe(chan *dbus.Signal) error {
	return nil
}

func (*testDispatcherBus) ServiceBrowserNew(
	int32, int32, string, string, uint32,
) (dbus.ObjectPath, error) {
	return "/Client1/ServiceBrowser1", nil
}

func (*testDispatcherBus) ServiceBrowserFree(dbus.ObjectPath) error {
	return nil
}

func (*testDispatcherBus) ResolveService(
	int32, int32, string, string, string, int32, uint32,
) (avahi.Service, error) {
	return avahi.Service{}, errors.New("not implemented")
}

func (b *testDispatcherBus) Close() error {
	b.closed = true
	return nil
}

type testDispatcherLister struct{}

func (testDispatcherLister) ListAddrs() ([]sysnet.InterfaceAddr, error) {
	return nil, nil
}

func newTestDispatcher(t *testing.T, backend Backend) *Dispatcher {
	params := DefaultParams()
	params.Backend = backend
	params.Zeroconf.Lister = testDispatcherLister{}
	params.Zeroconf.PollInterval = 10 * time.Millisecond

	d := NewDispatcher(params)

	d.daemonAvailable = func(dndaemon.Params) bool {
		return false
	}
	d.probeAvahi = func(context.Context, time.Duration) (dnavahi.Bus, error) {
		return nil, status.StatusTimeout
	}

	t.Cleanup(func() {
		_ = d.Close()
	})

	return d
}

func TestParseBackend(t *testing.T) {
	for name, backend := range map[string]Backend{
		"":         BackendAuto,
		"auto":     BackendAuto,
		"daemon":   BackendDaemon,
		"Avahi":    BackendAvahi,
		"zeroconf": BackendZeroconf,
	} {
		parsed, err := ParseBackend(name)
		require.NoError(t, err)
		require.Equal(t, backend, parsed)
	}

	_, err := ParseBackend("bonjour")
	require.ErrorIs(t, err, status.StatusInvalidArg)
}

func TestDispatcherAutoDaemon(t *testing.T) {
	d := newTestDispatcher(t, BackendAuto)
	d.daemonAvailable = func(dndaemon.Params) bool {
		return true
	}
	d.probeAvahi = func(context.Context, time.Duration) (dnavahi.Bus, error) {
		require.FailNow(t, "avahi must not be probed")
		return nil, nil
	}

	require.Empty(t, d.Backend())

	client, err := d.GetInstance(context.Background())
	require.NoError(t, err)
	require.IsType(t, &dndaemon.Client{}, client)
	require.Equal(t, BackendDaemon, d.Backend())

	cached, err := d.GetInstance(context.Background())
	require.NoError(t, err)
	require.Same(t, client, cached)
}

func TestDispatcherAutoAvahi(t *testing.T) {
	bus := &testDispatcherBus{}

	d := newTestDispatcher(t, BackendAuto)
	d.probeAvahi = func(context.Context, time.Duration) (dnavahi.Bus, error) {
		return bus, nil
	}

	client, err := d.GetInstance(context.Background())
	require.NoError(t, err)
	require.IsType(t, &dnavahi.Client{}, client)
	require.Equal(t, BackendAvahi, d.Backend())

	require.NoError(t, d.Close())
	require.True(t, bus.closed)

	_, err = d.GetInstance(context.Background())
	require.ErrorIs(t, err, status.StatusClosed)
}

func TestDispatcherAutoFallback(t *testing.T) {
	var probed time.Duration

	d := newTestDispatcher(t, BackendAuto)
	d.probeAvahi = func(_ context.Context, timeout time.Duration) (dnavahi.Bus, error) {
		probed = timeout
		return nil, status.StatusTimeout
	}

	client, err := d.GetInstance(context.Background())
	require.NoError(t, err)
	require.IsType(t, &dnzeroconf.Client{}, client)
	require.Equal(t, BackendZeroconf, d.Backend())
	require.Equal(t, dnavahi.DefaultProbeTimeout, probed)
}

func TestDispatcherForcedBackend(t *testing.T) {
	d := newTestDispatcher(t, BackendDaemon)

	client, err := d.GetInstance(context.Background())
	require.Nil(t, client)
	require.ErrorIs(t, err, status.StatusNotSupported)

	// The decision is not repeated.
	d.daemonAvailable = func(dndaemon.Params) bool {
		return true
	}

	client, err = d.GetInstance(context.Background())
	require.Nil(t, client)
	require.ErrorIs(t, err, status.StatusNotSupported)

	d = newTestDispatcher(t, BackendAvahi)

	client, err = d.GetInstance(context.Background())
	require.Nil(t, client)
	require.ErrorIs(t, err, status.StatusTimeout)

	d = newTestDispatcher(t, BackendZeroconf)
	d.daemonAvailable = func(dndaemon.Params) bool {
		return true
	}

	client, err = d.GetInstance(context.Background())
	require.NoError(t, err)
	require.IsType(t, &dnzeroconf.Client{}, client)
}
