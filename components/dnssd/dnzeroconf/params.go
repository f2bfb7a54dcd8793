package dnzeroconf

import (
	"time"

	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

// Params represents various options for the fallback client.
type Params struct {
	// PollInterval - how often to check the host network addresses.
	PollInterval time.Duration

	// BindRetryInterval - how long to wait before the next browse attempt on
	// the interface which can't be used for multicast.
	BindRetryInterval time.Duration

	// ResolveTimeout limits host name resolution of a single entry.
	ResolveTimeout time.Duration

	// Domain is the browse domain.
	Domain string

	// Lister lists the host network addresses, the OS interfaces by default.
	Lister sysnet.InterfaceLister

	// Browse browses a single interface address, zeroconf by default.
	Browse BrowseFunc

	// Resolver resolves entries without addresses, pure Go mDNS by default.
	Resolver sysnet.Resolver
}

// DefaultParams returns the default fallback client options.
func DefaultParams() Params {
	return Params{
		PollInterval:      500 * time.Millisecond,
		BindRetryInterval: 500 * time.Millisecond,
		ResolveTimeout:    5 * time.Second,
		Domain:            "local.",
	}
}

func (p Params) withDefaults() Params {
	defaults := DefaultParams()

	if p.PollInterval <= 0 {
		p.PollInterval = defaults.PollInterval
	}
	if p.BindRetryInterval <= 0 {
		p.BindRetryInterval = defaults.BindRetryInterval
	}
	if p.ResolveTimeout <= 0 {
		p.ResolveTimeout = defaults.ResolveTimeout
	}
	if p.Domain == "" {
		p.Domain = defaults.Domain
	}
	if p.Lister == nil {
		p.Lister = &sysnet.SystemInterfaceLister{}
	}
	if p.Browse == nil {
		p.Browse = ZeroconfBrowse
	}

	return p
}
