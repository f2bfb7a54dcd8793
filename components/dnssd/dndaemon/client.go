package dndaemon

import (
	"context"
	"fmt"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnwire"
	"github.com/open-control-systems/dnssd-hub/components/status"
)

// Client browses services via the native mDNS daemon.
//
// Remarks:
//   - Each browser and each resolution uses its own daemon connection.
type Client struct {
	params   Params
	browsers dncore.BrowserSet
}

// NewClient is an initialization of Client.
//
// Parameters:
//   - params - daemon settings, zero fields are replaced with defaults.
func NewClient(params Params) *Client {
	defaults := DefaultParams()

	if params.ResolveTimeout <= 0 {
		params.ResolveTimeout = defaults.ResolveTimeout
	}

	return &Client{params: params}
}

// Browse sends the browse request to the daemon.
//
// Remarks:
//   - Fails if the daemon can't be reached or rejects the request.
func (c *Client) Browse(ctx context.Context, opts dncore.BrowseOptions) (dncore.Browser, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	if err := conn.Browse(ctx, &dnwire.BrowseRequest{
		InterfaceIndex: dnwire.InterfaceIndexAny,
		ServiceType:    opts.ServiceType(),
	}); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("dnssd-daemon: browse failed: type=%s: %w", opts.ServiceType(), err)
	}

	b := newBrowser(browserParams{
		opts:           opts,
		conn:           conn,
		dial:           c.dial,
		resolveTimeout: c.params.ResolveTimeout,
		onDestroy:      c.browsers.Remove,
	})

	if !c.browsers.Add(b) {
		_ = b.Destroy()

		return nil, fmt.Errorf("dnssd-daemon: client destroyed: %w", status.StatusClosed)
	}

	core.LogInf.Printf("dnssd-daemon: browser created: id=%s type=%s ip=%s\n",
		b.ID(), opts.ServiceType(), opts.IPVersion)

	return b, nil
}

// Destroy destroys all browsers.
func (c *Client) Destroy() error {
	return c.browsers.Destroy()
}

func (c *Client) dial(ctx context.Context) (*dnwire.Conn, error) {
	return dnwire.Dial(ctx, c.params.Dial)
}

var _ dncore.Client = (*Client)(nil)
