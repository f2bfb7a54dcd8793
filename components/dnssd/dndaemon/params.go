package dndaemon

import (
	"time"

	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnwire"
)

// Params contains daemon client settings.
type Params struct {
	// Dial defines the daemon endpoints.
	Dial dnwire.DialParams

	// ResolveTimeout limits resolution of a single service instance.
	ResolveTimeout time.Duration
}

// DefaultParams returns the default daemon client settings.
func DefaultParams() Params {
	return Params{
		Dial: dnwire.DialParams{
			SocketPath: dnwire.DefaultSocketPath,
			TCPAddr:    dnwire.DefaultTCPAddr,
		},
		ResolveTimeout: 5 * time.Second,
	}
}
