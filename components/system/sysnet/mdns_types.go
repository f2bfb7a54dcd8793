package sysnet

import (
	"fmt"
	"strings"
)

// MdnsProto represents known transport protocols.
type MdnsProto int

const (
	// MdnsProtoTCP is used for application protocols that run over TCP.
	MdnsProtoTCP MdnsProto = iota

	// MdnsProtoUDP is used for all other application protocols.
	MdnsProtoUDP
)

// String returns string representation of the mDNS protocol.
func (p MdnsProto) String() string {
	switch p {
	case MdnsProtoTCP:
		return "_tcp"
	case MdnsProtoUDP:
		return "_udp"
	default:
		return "<none>"
	}
}

// MdnsServiceName makes mDNS service name from the provided service and protocol.
//
// Examples:
//   - MdnsServiceName("http", MdnsProtoTCP) - "_http._tcp".
//   - MdnsServiceName("sftp-ssh", MdnsProtoTCP) - "_sftp-ssh._tcp".
//
// References:
//   - https://www.ietf.org/rfc/rfc6763.txt, section 7.
func MdnsServiceName(service string, proto MdnsProto) string {
	return strings.Join([]string{"_" + strings.TrimPrefix(service, "_"), proto.String()}, ".")
}

// ParseMdnsServiceName splits mDNS service name into the service and protocol.
//
// Remarks:
//   - Trailing dot is ignored, e.g. "_http._tcp." is accepted.
func ParseMdnsServiceName(name string) (string, MdnsProto, error) {
	parts := strings.Split(strings.TrimSuffix(name, "."), ".")
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "_") || len(parts[0]) < 2 {
		return "", 0, fmt.Errorf("sysnet: invalid mDNS service name: %q", name)
	}

	service := strings.TrimPrefix(parts[0], "_")

	switch parts[1] {
	case MdnsProtoTCP.String():
		return service, MdnsProtoTCP, nil
	case MdnsProtoUDP.String():
		return service, MdnsProtoUDP, nil
	default:
		return "", 0, fmt.Errorf("sysnet: invalid mDNS protocol: %q", name)
	}
}

// MdnsFullName joins instance, service and domain into the mDNS full name.
//
// Examples:
//   - MdnsFullName("robot", "_sftp-ssh._tcp", "local") - "robot._sftp-ssh._tcp.local".
func MdnsFullName(instance, service, domain string) string {
	var b strings.Builder

	for _, c := range instance {
		if c == '.' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}

	return strings.Join([]string{
		b.String(),
		strings.TrimSuffix(service, "."),
		strings.TrimSuffix(domain, "."),
	}, ".")
}
