package dnzeroconf

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/open-control-systems/dnssd-hub/components/core"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/status"
	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
	"github.com/open-control-systems/dnssd-hub/components/system/syssched"
)

// ifaceClient is a single host address usable for multicast browsing.
type ifaceClient struct {
	addr sysnet.InterfaceAddr
}

// ifaceSubscriber is notified when the set of interface clients changes.
type ifaceSubscriber interface {
	ifaceAdded(c *ifaceClient)
	ifaceRemoved(c *ifaceClient)
}

// Client browses services with the pure Go multicast implementation, separately
// on each host interface address.
//
// Remarks:
//   - The host addresses are polled periodically, browsers start and stop their
//     per-address sessions as addresses appear and disappear.
type Client struct {
	params Params

	watcher *sysnet.InterfaceWatcher
	runner  *syssched.AsyncTaskRunner
	closer  core.FanoutCloser

	mu          sync.Mutex
	ifaces      map[string]*ifaceClient
	subscribers map[ifaceSubscriber]struct{}

	browsers dncore.BrowserSet
}

// NewClient is an initialization of Client.
//
// Parameters:
//   - params - various client options, zero fields are replaced with defaults.
//
// Remarks:
//   - The host addresses polling is started immediately.
func NewClient(params Params) (*Client, error) {
	params = params.withDefaults()

	c := &Client{
		ifaces:      make(map[string]*ifaceClient),
		subscribers: make(map[ifaceSubscriber]struct{}),
	}

	if params.Resolver == nil {
		resolver := &sysnet.PionMdnsResolver{}

		params.Resolver = resolver
		c.closer.Add("pion-mdns-resolver", resolver)
	}

	c.params = params
	c.watcher = sysnet.NewInterfaceWatcher(params.Lister, c)
	c.runner = syssched.NewAsyncTaskRunner(context.Background(), c.watcher, c.watcher,
		syssched.AsyncTaskRunnerParams{
			UpdateInterval: params.PollInterval,
		})

	if err := c.runner.Start(); err != nil {
		_ = c.closer.Close()

		return nil, err
	}

	c.closer.Add("interface-watcher", core.FuncCloser(c.runner.Stop))

	return c, nil
}

// Browse creates a new browser, sessions are started in Start().
func (c *Client) Browse(_ context.Context, opts dncore.BrowseOptions) (dncore.Browser, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	b := newBrowser(browserParams{
		opts:           opts,
		domain:         c.params.Domain,
		browse:         c.params.Browse,
		resolver:       c.params.Resolver,
		retryInterval:  c.params.BindRetryInterval,
		resolveTimeout: c.params.ResolveTimeout,
		subscribe:      c.subscribe,
		unsubscribe:    c.unsubscribe,
		onDestroy:      c.browsers.Remove,
	})

	if !c.browsers.Add(b) {
		_ = b.Destroy()

		return nil, fmt.Errorf("dnssd-zeroconf: client destroyed: %w", status.StatusClosed)
	}

	core.LogInf.Printf("dnssd-zeroconf: browser created: id=%s type=%s ip=%s\n",
		b.ID(), opts.ServiceType(), opts.IPVersion)

	return b, nil
}

// Destroy stops polling, destroys all browsers and releases the resolver.
func (c *Client) Destroy() error {
	err := c.browsers.Destroy()

	return multierr.Append(err, c.closer.Close())
}

// HandleAddrAdded implements sysnet.InterfaceHandler.
func (c *Client) HandleAddrAdded(addr sysnet.InterfaceAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ic := &ifaceClient{addr: addr}
	c.ifaces[addr.Key()] = ic

	core.LogInf.Printf("dnssd-zeroconf: interface added: key=%s index=%d\n",
		addr.Key(), addr.Index)

	for sub := range c.subscribers {
		sub.ifaceAdded(ic)
	}
}

// HandleAddrRemoved implements sysnet.InterfaceHandler.
func (c *Client) HandleAddrRemoved(addr sysnet.InterfaceAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ic, ok := c.ifaces[addr.Key()]
	if !ok {
		return
	}
	delete(c.ifaces, addr.Key())

	core.LogInf.Printf("dnssd-zeroconf: interface removed: key=%s index=%d\n",
		addr.Key(), addr.Index)

	for sub := range c.subscribers {
		sub.ifaceRemoved(ic)
	}
}

// subscribe registers the subscriber and returns the current interface clients.
func (c *Client) subscribe(sub ifaceSubscriber) []*ifaceClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribers[sub] = struct{}{}

	ifaces := make([]*ifaceClient, 0, len(c.ifaces))
	for _, ic := range c.ifaces {
		ifaces = append(ifaces, ic)
	}

	return ifaces
}

func (c *Client) unsubscribe(sub ifaceSubscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subscribers, sub)
}

var _ dncore.Client = (*Client)(nil)
