package dndispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnavahi"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dndaemon"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnzeroconf"
	"github.com/open-control-systems/dnssd-hub/components/status"
)

// Params represents various options for Dispatcher.
type Params struct {
	// Backend forces the backend, BackendAuto selects the first available one.
	Backend Backend

	// ProbeTimeout bounds the Avahi presence check.
	ProbeTimeout time.Duration

	// Daemon contains the native daemon client settings.
	Daemon dndaemon.Params

	// Avahi contains the Avahi client settings.
	Avahi dnavahi.Params

	// Zeroconf contains the fallback client settings.
	Zeroconf dnzeroconf.Params
}

// DefaultParams returns the default dispatcher options.
func DefaultParams() Params {
	return Params{
		Backend:      BackendAuto,
		ProbeTimeout: dnavahi.DefaultProbeTimeout,
		Daemon:       dndaemon.DefaultParams(),
		Avahi:        dnavahi.DefaultParams(),
		Zeroconf:     dnzeroconf.DefaultParams(),
	}
}

// Dispatcher selects the discovery backend available on the host.
//
// Remarks:
//   - The backend is selected once, on the first GetInstance() call, the same
//     client is returned afterwards.
//   - Backends are tried in order: native daemon, Avahi, pure Go fallback.
type Dispatcher struct {
	params Params

	daemonAvailable func(dndaemon.Params) bool
	probeAvahi      func(ctx context.Context, timeout time.Duration) (dnavahi.Bus, error)
	newZeroconf     func(dnzeroconf.Params) (dncore.Client, error)

	mu       sync.Mutex
	resolved bool
	backend  Backend
	client   dncore.Client
	err      error
}

// NewDispatcher is an initialization of Dispatcher.
//
// Parameters:
//   - params - dispatcher options, zero fields are replaced with defaults.
func NewDispatcher(params Params) *Dispatcher {
	if params.Backend == "" {
		params.Backend = BackendAuto
	}
	if params.ProbeTimeout <= 0 {
		params.ProbeTimeout = dnavahi.DefaultProbeTimeout
	}
	if params.Daemon.Dial.SocketPath == "" {
		params.Daemon.Dial.SocketPath = dndaemon.DefaultParams().Dial.SocketPath
	}
	if params.Daemon.Dial.TCPAddr == "" {
		params.Daemon.Dial.TCPAddr = dndaemon.DefaultParams().Dial.TCPAddr
	}

	return &Dispatcher{
		params:          params,
		daemonAvailable: daemonAvailable,
		probeAvahi:      probeAvahi,
		newZeroconf:     newZeroconf,
	}
}

// GetInstance returns the client of the selected backend.
//
// Remarks:
//   - Unavailable backends are logged and skipped, an error is returned only if
//     the forced backend can't be used or the fallback can't be created.
func (d *Dispatcher) GetInstance(ctx context.Context) (dncore.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.resolved {
		d.backend, d.client, d.err = d.selectBackend(ctx)
		d.resolved = true

		if d.err == nil {
			core.LogInf.Printf("dnssd-dispatcher: backend selected: backend=%s\n", d.backend)
		}
	}

	return d.client, d.err
}

// Backend returns the selected backend, empty if not selected yet.
func (d *Dispatcher) Backend() Backend {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.backend
}

// Close destroys the client of the selected backend.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		return nil
	}

	client := d.client
	d.client = nil
	d.err = fmt.Errorf("dnssd-dispatcher: %w", status.StatusClosed)

	return client.Destroy()
}

func (d *Dispatcher) selectBackend(ctx context.Context) (Backend, dncore.Client, error) {
	switch d.params.Backend {
	case BackendDaemon:
		if !d.daemonAvailable(d.params.Daemon) {
			return "", nil, fmt.Errorf("dnssd-dispatcher: daemon not available: socket=%s: %w",
				d.params.Daemon.Dial.SocketPath, status.StatusNotSupported)
		}

		return BackendDaemon, dndaemon.NewClient(d.params.Daemon), nil

	case BackendAvahi:
		bus, err := d.probeAvahi(ctx, d.params.ProbeTimeout)
		if err != nil {
			return "", nil, err
		}

		return BackendAvahi, dnavahi.NewClient(bus, d.params.Avahi), nil

	case BackendZeroconf:
		client, err := d.newZeroconf(d.params.Zeroconf)
		if err != nil {
			return "", nil, err
		}

		return BackendZeroconf, client, nil

	case BackendAuto:
		return d.selectAuto(ctx)

	default:
		return "", nil, fmt.Errorf("dnssd-dispatcher: unknown backend %q: %w",
			d.params.Backend, status.StatusInvalidArg)
	}
}

func (d *Dispatcher) selectAuto(ctx context.Context) (Backend, dncore.Client, error) {
	if d.daemonAvailable(d.params.Daemon) {
		return BackendDaemon, dndaemon.NewClient(d.params.Daemon), nil
	}

	core.LogInf.Printf("dnssd-dispatcher: daemon not available: socket=%s\n",
		d.params.Daemon.Dial.SocketPath)

	bus, err := d.probeAvahi(ctx, d.params.ProbeTimeout)
	if err == nil {
		return BackendAvahi, dnavahi.NewClient(bus, d.params.Avahi), nil
	}

	core.LogInf.Printf("dnssd-dispatcher: avahi not available: %v\n", err)

	client, err := d.newZeroconf(d.params.Zeroconf)
	if err != nil {
		return "", nil, err
	}

	return BackendZeroconf, client, nil
}

func probeAvahi(ctx context.Context, timeout time.Duration) (dnavahi.Bus, error) {
	conn, err := dnavahi.Probe(ctx, timeout)
	if err != nil {
		return nil, err
	}

	bus, err := dnavahi.NewDBusBus(conn)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	return bus, nil
}

func newZeroconf(params dnzeroconf.Params) (dncore.Client, error) {
	client, err := dnzeroconf.NewClient(params)
	if err != nil {
		return nil, err
	}

	return client, nil
}
