package dncore

import (
	"fmt"
	"strings"
)

// ServiceKey is a logical service identity, independent of the interface
// the service is advertised on.
type ServiceKey struct {
	Name        string
	ServiceType string
	Domain      string
}

// String returns a human readable representation of the key.
func (k ServiceKey) String() string {
	return fmt.Sprintf("%s.%s.%s", k.Name, k.ServiceType, k.Domain)
}

// InstanceKey is a raw per-backend service identity.
type InstanceKey struct {
	// Source is a backend specific interface/protocol tuple, e.g. "3" for the
	// interface index or "3/1" for the interface index and protocol.
	Source string

	Name        string
	ServiceType string
	Domain      string
}

// ServiceKey returns the logical identity of the instance.
//
// Remarks:
//   - Trailing dots are removed and the comparison is case sensitive for the name,
//     case insensitive for the service type and domain.
func (k InstanceKey) ServiceKey() ServiceKey {
	return ServiceKey{
		Name:        k.Name,
		ServiceType: strings.ToLower(strings.TrimSuffix(k.ServiceType, ".")),
		Domain:      strings.ToLower(strings.TrimSuffix(k.Domain, ".")),
	}
}

// ServiceRecord is a resolved service discovered on the local network.
type ServiceRecord struct {
	// Name is a service instance name, e.g. "robot".
	Name string

	// ServiceType is a service type, e.g. "_sftp-ssh._tcp".
	ServiceType string

	// Transport is a service transport protocol.
	Transport Transport

	// Domain is a service domain, e.g. "local".
	Domain string

	// Host is a target host name, e.g. "robot.local".
	Host string

	// IPVersion is the address family of Address.
	IPVersion IPVersion

	// Address is the first resolved address, IPv6 link-local addresses carry the zone,
	// e.g. "fe80::1%usb0".
	Address string

	// Addresses contains all resolved addresses of the service.
	Addresses []string

	// Port is a service port.
	Port int

	// Txt is the service TXT record.
	Txt *TxtRecord
}

// Key returns the logical service identity.
func (r *ServiceRecord) Key() ServiceKey {
	return ServiceKey{Name: r.Name, ServiceType: r.ServiceType, Domain: r.Domain}
}

// Clone returns a deep copy of the record.
func (r *ServiceRecord) Clone() *ServiceRecord {
	c := *r
	c.Addresses = append([]string(nil), r.Addresses...)
	c.Txt = r.Txt.Clone()

	return &c
}

// String returns a human readable representation of the record.
func (r *ServiceRecord) String() string {
	return fmt.Sprintf("name=%q type=%s domain=%s host=%s addr=%s port=%d txt=%v",
		r.Name, r.ServiceType, r.Domain, r.Host, r.Address, r.Port, r.Txt.Strings())
}
