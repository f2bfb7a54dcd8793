package dnwire

import "fmt"

// InterfaceIndexAny is used to browse and resolve on all interfaces.
const InterfaceIndexAny uint32 = 0

// BrowseRequest looks for instances of the service type.
type BrowseRequest struct {
	Flags          uint32
	InterfaceIndex uint32

	// ServiceType is a service type, e.g. "_sftp-ssh._tcp".
	ServiceType string

	// Domain is a browse domain, empty for the default domains.
	Domain string
}

// Marshal encodes the request payload.
func (r *BrowseRequest) Marshal() ([]byte, error) {
	if err := validateStrings(r.ServiceType, r.Domain); err != nil {
		return nil, err
	}

	w := payloadWriter{}
	w.uint32(r.Flags)
	w.uint32(r.InterfaceIndex)
	w.string(r.ServiceType)
	w.string(r.Domain)

	return w.buf, nil
}

// UnmarshalBrowseRequest decodes the browse request payload.
func UnmarshalBrowseRequest(payload []byte) (*BrowseRequest, error) {
	r := payloadReader{buf: payload}

	req := &BrowseRequest{
		Flags:          r.uint32(),
		InterfaceIndex: r.uint32(),
		ServiceType:    r.string(),
		Domain:         r.string(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("dnwire: invalid browse request: %w", r.err)
	}

	return req, nil
}

// ResolveRequest resolves the service instance to host, port and TXT record.
type ResolveRequest struct {
	Flags          uint32
	InterfaceIndex uint32

	// Name is a service instance name, e.g. "robot".
	Name string

	// ServiceType is a service type, e.g. "_sftp-ssh._tcp".
	ServiceType string

	// Domain is a service domain, e.g. "local".
	Domain string
}

// Marshal encodes the request payload.
func (r *ResolveRequest) Marshal() ([]byte, error) {
	if err := validateStrings(r.Name, r.ServiceType, r.Domain); err != nil {
		return nil, err
	}

	w := payloadWriter{}
	w.uint32(r.Flags)
	w.uint32(r.InterfaceIndex)
	w.string(r.Name)
	w.string(r.ServiceType)
	w.string(r.Domain)

	return w.buf, nil
}

// UnmarshalResolveRequest decodes the resolve request payload.
func UnmarshalResolveRequest(payload []byte) (*ResolveRequest, error) {
	r := payloadReader{buf: payload}

	req := &ResolveRequest{
		Flags:          r.uint32(),
		InterfaceIndex: r.uint32(),
		Name:           r.string(),
		ServiceType:    r.string(),
		Domain:         r.string(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("dnwire: invalid resolve request: %w", r.err)
	}

	return req, nil
}

// QueryRequest queries DNS records of the name.
type QueryRequest struct {
	Flags          uint32
	InterfaceIndex uint32

	// FullName is a record name, e.g. "robot.local.".
	FullName string

	// RRType is a record type, e.g. dns.TypeAAAA.
	RRType uint16

	// RRClass is a record class, e.g. dns.ClassINET.
	RRClass uint16
}

// Marshal encodes the request payload.
func (r *QueryRequest) Marshal() ([]byte, error) {
	if err := validateStrings(r.FullName); err != nil {
		return nil, err
	}

	w := payloadWriter{}
	w.uint32(r.Flags)
	w.uint32(r.InterfaceIndex)
	w.string(r.FullName)
	w.uint16(r.RRType)
	w.uint16(r.RRClass)

	return w.buf, nil
}

// UnmarshalQueryRequest decodes the query request payload.
func UnmarshalQueryRequest(payload []byte) (*QueryRequest, error) {
	r := payloadReader{buf: payload}

	req := &QueryRequest{
		Flags:          r.uint32(),
		InterfaceIndex: r.uint32(),
		FullName:       r.string(),
		RRType:         r.uint16(),
		RRClass:        r.uint16(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("dnwire: invalid query request: %w", r.err)
	}

	return req, nil
}
