package dnavahi

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/multierr"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/status"
)

// Params contains Avahi client settings.
type Params struct {
	// ResolveTimeout limits resolution of a single service instance.
	ResolveTimeout time.Duration
}

// DefaultParams returns the default Avahi client settings.
func DefaultParams() Params {
	return Params{
		ResolveTimeout: 5 * time.Second,
	}
}

// Client browses services via the Avahi daemon.
type Client struct {
	bus      Bus
	params   Params
	browsers dncore.BrowserSet
}

// NewClient is an initialization of Client.
//
// Parameters:
//   - bus - Avahi D-Bus API, owned by the client.
//   - params - client settings, zero fields are replaced with defaults.
func NewClient(bus Bus, params Params) *Client {
	if params.ResolveTimeout <= 0 {
		params.ResolveTimeout = DefaultParams().ResolveTimeout
	}

	return &Client{
		bus:    bus,
		params: params,
	}
}

// Browse registers the signal subscription for the new browser.
//
// Remarks:
//   - Signals are subscribed before the service browser object is created in
//     Start(), so no early signal is lost.
func (c *Client) Browse(_ context.Context, opts dncore.BrowseOptions) (dncore.Browser, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	signalCh := make(chan *dbus.Signal, 64)

	if err := c.bus.Subscribe(signalCh); err != nil {
		return nil, fmt.Errorf("dnssd-avahi: failed to subscribe: %w", err)
	}

	b := newBrowser(browserParams{
		opts:           opts,
		bus:            c.bus,
		signalCh:       signalCh,
		resolveTimeout: c.params.ResolveTimeout,
		onDestroy:      c.browsers.Remove,
	})

	if !c.browsers.Add(b) {
		_ = b.Destroy()

		return nil, fmt.Errorf("dnssd-avahi: client destroyed: %w", status.StatusClosed)
	}

	core.LogInf.Printf("dnssd-avahi: browser created: id=%s type=%s ip=%s\n",
		b.ID(), opts.ServiceType(), opts.IPVersion)

	return b, nil
}

// Destroy destroys all browsers and closes the bus connection.
func (c *Client) Destroy() error {
	err := c.browsers.Destroy()

	return multierr.Append(err, c.bus.Close())
}

var _ dncore.Client = (*Client)(nil)
