package dnavahi

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/status"
)

// DefaultProbeTimeout bounds the Avahi presence check.
const DefaultProbeTimeout = 100 * time.Millisecond

type probeResult struct {
	conn    *dbus.Conn
	version string
	err     error
}

// Probe checks whether the Avahi daemon is reachable over the system bus.
//
// Parameters:
//   - ctx - parent context.
//   - timeout - probe duration limit, DefaultProbeTimeout if zero.
//
// Remarks:
//   - Returns the connection on success, the caller owns it.
func Probe(ctx context.Context, timeout time.Duration) (*dbus.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan probeResult, 1)

	go func() {
		resultCh <- probe(ctx)
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}

		core.LogInf.Printf("dnssd-avahi: daemon found: version=%q\n", res.version)

		return res.conn, nil

	case <-ctx.Done():
		// Connection attempt can't be canceled, release it once finished.
		go func() {
			if res := <-resultCh; res.conn != nil {
				_ = res.conn.Close()
			}
		}()

		return nil, fmt.Errorf("dnssd-avahi: probe failed: timeout=%s: %w", timeout, status.StatusTimeout)
	}
}

func probe(ctx context.Context) probeResult {
	conn, err := dbus.ConnectSystemBus(
		dbus.WithSignalHandler(dbus.NewSequentialSignalHandler()),
	)
	if err != nil {
		return probeResult{err: fmt.Errorf("dnssd-avahi: failed to connect to system bus: %w", err)}
	}

	var version string
	if err := conn.Object(avahiService, "/").CallWithContext(ctx,
		serverInterface+".GetVersionString", 0).Store(&version); err != nil {
		_ = conn.Close()

		return probeResult{err: fmt.Errorf("dnssd-avahi: daemon not available: %w", err)}
	}

	if ctx.Err() != nil {
		_ = conn.Close()

		return probeResult{err: ctx.Err()}
	}

	return probeResult{conn: conn, version: version}
}
