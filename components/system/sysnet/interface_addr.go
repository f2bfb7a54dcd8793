package sysnet

import (
	"net"
	"sort"
)

// InterfaceAddr is a single unicast address assigned to a network interface.
type InterfaceAddr struct {
	// Index is the OS interface index, e.g. 3.
	Index int

	// Name is the OS interface name, e.g. "eth0".
	Name string

	// IP is the interface address.
	IP net.IP
}

// Key uniquely identifies the address on the host, e.g. "eth0/fe80::1".
func (a InterfaceAddr) Key() string {
	return a.Name + "/" + a.IP.String()
}

// IsIPv6 returns true for IPv6 addresses.
func (a InterfaceAddr) IsIPv6() bool {
	return a.IP.To4() == nil
}

// InterfaceLister lists addresses of the host network interfaces.
type InterfaceLister interface {
	// ListAddrs returns addresses usable for link-local multicast.
	ListAddrs() ([]InterfaceAddr, error)
}

// SystemInterfaceLister lists the OS network interfaces.
//
// Remarks:
//   - Only up, multicast capable, non-loopback interfaces are considered.
//   - IPv4 addresses and IPv6 link-local addresses are returned.
type SystemInterfaceLister struct{}

// ListAddrs returns addresses usable for link-local multicast, sorted by key.
func (*SystemInterfaceLister) ListAddrs() ([]InterfaceAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []InterfaceAddr

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagMulticast == 0 ||
			iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		ifaddrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, ifaddr := range ifaddrs {
			ipnet, ok := ifaddr.(*net.IPNet)
			if !ok {
				continue
			}

			if ipnet.IP.To4() == nil && !ipnet.IP.IsLinkLocalUnicast() {
				continue
			}

			addrs = append(addrs, InterfaceAddr{
				Index: iface.Index,
				Name:  iface.Name,
				IP:    ipnet.IP,
			})
		}
	}

	sortInterfaceAddrs(addrs)

	return addrs, nil
}

func sortInterfaceAddrs(addrs []InterfaceAddr) {
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Key() < addrs[j].Key()
	})
}
