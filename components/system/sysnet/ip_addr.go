package sysnet

import (
	"net"
	"strconv"
)

// FormatIP formats the address, IPv6 link-local addresses get the interface zone.
//
// Remarks:
//   - The interface name is used as the zone, the index is used if the interface
//     can't be found.
//
// Examples:
//   - FormatIP(net.ParseIP("fe80::1"), 3) - "fe80::1%usb0".
//   - FormatIP(net.ParseIP("192.168.4.2"), 3) - "192.168.4.2".
func FormatIP(ip net.IP, ifIndex int) string {
	if ip.To4() != nil || !ip.IsLinkLocalUnicast() {
		return ip.String()
	}

	zone := strconv.Itoa(ifIndex)
	if iface, err := net.InterfaceByIndex(ifIndex); err == nil {
		zone = iface.Name
	}

	return (&net.IPAddr{IP: ip, Zone: zone}).String()
}

// AddrIP extracts the IP address from the network address, nil if there is none.
func AddrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	case nil:
		return nil
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}

	return net.ParseIP(host)
}
