package dncore

import (
	"fmt"
	"strings"

	"github.com/open-control-systems/dnssd-hub/components/status"
	"github.com/open-control-systems/dnssd-hub/components/system/sysnet"
)

// Transport is a service transport protocol.
type Transport int

const (
	// TransportTCP is used for services running over TCP.
	TransportTCP Transport = iota

	// TransportUDP is used for services running over UDP.
	TransportUDP
)

// String returns string representation of the transport.
func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return "<none>"
	}
}

// ParseTransport parses "tcp" or "udp".
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(s) {
	case "tcp", "":
		return TransportTCP, nil
	case "udp":
		return TransportUDP, nil
	default:
		return 0, fmt.Errorf("unknown transport %q: %w", s, status.StatusInvalidArg)
	}
}

// IPVersion is an IP address family.
type IPVersion int

const (
	// IPv4 address family.
	IPv4 IPVersion = iota

	// IPv6 address family.
	IPv6
)

// String returns string representation of the IP version.
func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "<none>"
	}
}

// ParseIPVersion parses "4", "6", "ipv4" or "ipv6".
func ParseIPVersion(s string) (IPVersion, error) {
	switch strings.ToLower(s) {
	case "4", "ipv4", "":
		return IPv4, nil
	case "6", "ipv6":
		return IPv6, nil
	default:
		return 0, fmt.Errorf("unknown IP version %q: %w", s, status.StatusInvalidArg)
	}
}

// BrowseOptions is a filter for a single browse session.
type BrowseOptions struct {
	// Service is a service name without the leading underscore, e.g. "sftp-ssh".
	Service string

	// Transport is a service transport, TCP by default.
	Transport Transport

	// IPVersion is an address family of the resolved addresses, IPv4 by default.
	IPVersion IPVersion
}

// Validate checks that the options can be used for browsing.
func (o BrowseOptions) Validate() error {
	service := strings.TrimPrefix(o.Service, "_")

	if service == "" || strings.ContainsAny(service, ". \x00") {
		return fmt.Errorf("invalid service %q: %w", o.Service, status.StatusInvalidArg)
	}

	if o.Transport != TransportTCP && o.Transport != TransportUDP {
		return fmt.Errorf("invalid transport %d: %w", o.Transport, status.StatusInvalidArg)
	}

	if o.IPVersion != IPv4 && o.IPVersion != IPv6 {
		return fmt.Errorf("invalid IP version %d: %w", o.IPVersion, status.StatusInvalidArg)
	}

	return nil
}

// ServiceType returns the DNS-SD service type, e.g. "_sftp-ssh._tcp".
func (o BrowseOptions) ServiceType() string {
	proto := sysnet.MdnsProtoTCP
	if o.Transport == TransportUDP {
		proto = sysnet.MdnsProtoUDP
	}

	return sysnet.MdnsServiceName(o.Service, proto)
}
