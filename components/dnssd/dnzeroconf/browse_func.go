package dnzeroconf

import (
	"context"
	"fmt"
	"net"

	"github.com/enbility/zeroconf/v3"

	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

// BrowseFunc browses the service type on a single interface address.
//
// Remarks:
//   - Blocks until ctx is canceled or browsing fails.
//   - Found entries are sent to entries, expired or withdrawn entries to removed.
type BrowseFunc func(
	ctx context.Context,
	addr sysnet.InterfaceAddr,
	serviceType string,
	domain string,
	entries chan *zeroconf.ServiceEntry,
	removed chan *zeroconf.ServiceEntry,
) error

// ZeroconfBrowse browses with the multicast sockets bound to the address interface.
//
// References:
//   - https://github.com/enbility/zeroconf
func ZeroconfBrowse(
	ctx context.Context,
	addr sysnet.InterfaceAddr,
	serviceType string,
	domain string,
	entries chan *zeroconf.ServiceEntry,
	removed chan *zeroconf.ServiceEntry,
) error {
	iface, err := net.InterfaceByIndex(addr.Index)
	if err != nil {
		return fmt.Errorf("interface not found: key=%s: %w", addr.Key(), err)
	}

	traffic := zeroconf.IPv4
	if addr.IsIPv6() {
		traffic = zeroconf.IPv6
	}

	return zeroconf.Browse(ctx, serviceType, domain, entries, removed,
		zeroconf.SelectIfaces([]net.Interface{*iface}),
		zeroconf.SelectIPTraffic(traffic),
	)
}
