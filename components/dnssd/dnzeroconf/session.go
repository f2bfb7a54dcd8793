package dnzeroconf

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/enbility/zeroconf/v3"

	"github.com/open-control-systems/dnssd-hub/components/core"
)

type sessionParams struct {
	serviceType   string
	domain        string
	browse        BrowseFunc
	retryInterval time.Duration
	entryCh       chan<- entryMessage
}

// session browses the service on a single interface address.
//
// Remarks:
//   - Failed browsing is retried with the constant interval until the session is stopped.
//   - An attempt is considered bound once it delivers an entry or keeps running for
//     the retry interval.
type session struct {
	ic     *ifaceClient
	params sessionParams

	ctx    context.Context
	cancel context.CancelFunc

	// Error of the last failed attempt, nil once an attempt is bound.
	lastErr atomic.Pointer[error]
}

func newSession(ctx context.Context, ic *ifaceClient, params sessionParams) *session {
	ctx, cancel := context.WithCancel(ctx)

	return &session{
		ic:     ic,
		params: params,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *session) stop() {
	s.cancel()
}

// bindError returns the error of the last attempt if browsing isn't bound yet.
func (s *session) bindError() error {
	if err := s.lastErr.Load(); err != nil {
		return *err
	}

	return nil
}

func (s *session) run() {
	policy := backoff.WithContext(backoff.NewConstantBackOff(s.params.retryInterval), s.ctx)

	notify := func(err error, next time.Duration) {
		core.LogWrn.Printf("dnssd-zeroconf: browsing failed: key=%s service=%s retry_in=%s: %v\n",
			s.ic.addr.Key(), s.params.serviceType, next, err)
	}

	_ = backoff.RetryNotify(s.browse, policy, notify)
}

// browse runs a single browse attempt, returns nil once the session is stopped.
func (s *session) browse() error {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)

	bound := time.NewTimer(s.params.retryInterval)
	defer bound.Stop()

	go func() {
		errCh <- s.params.browse(ctx, s.ic.addr, s.params.serviceType, s.params.domain,
			entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			s.lastErr.Store(nil)
			s.forward(entry, false)

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			s.forward(entry, true)

		case err := <-errCh:
			if err != nil && s.ctx.Err() == nil {
				s.lastErr.Store(&err)

				return err
			}
			errCh = nil

		case <-bound.C:
			s.lastErr.Store(nil)

		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *session) forward(entry *zeroconf.ServiceEntry, removed bool) {
	select {
	case s.params.entryCh <- entryMessage{session: s, entry: entry, removed: removed}:
	case <-s.ctx.Done():
	}
}
