package dnwire

import (
	"fmt"

	"github.com/miekg/dns"
)

// Reply flags.
const (
	// FlagsMoreComing is set if more replies are immediately available.
	FlagsMoreComing uint32 = 0x1

	// FlagsAdd is set if the service or record was added, cleared if removed.
	FlagsAdd uint32 = 0x2
)

// replyHeaderSize is the size of flags, interface index and error code fields.
const replyHeaderSize = 12

// ReplyHeader contains fields common to all replies.
type ReplyHeader struct {
	Flags          uint32
	InterfaceIndex uint32

	// Err is the reply error, nil on success.
	//
	// Remarks:
	//   - Malformed reply body is reported as ErrUnknown.
	Err error
}

// Add returns true if the reply reports added service or record.
func (h *ReplyHeader) Add() bool {
	return h.Flags&FlagsAdd != 0
}

// MoreComing returns true if more replies are immediately available.
func (h *ReplyHeader) MoreComing() bool {
	return h.Flags&FlagsMoreComing != 0
}

// Reply is one of *BrowseReply, *ResolveReply or *QueryReply.
type Reply interface {
	// Common returns fields shared by all replies.
	Common() *ReplyHeader
}

// Common implements Reply.
func (h *ReplyHeader) Common() *ReplyHeader {
	return h
}

// ParseReply decodes the reply frame according to its operation.
func ParseReply(frame Frame) (Reply, error) {
	switch frame.Header.Op {
	case OpBrowseReply:
		return ParseBrowseReply(frame.Payload)
	case OpResolveReply:
		return ParseResolveReply(frame.Payload)
	case OpQueryReply:
		return ParseQueryReply(frame.Payload)
	default:
		return nil, fmt.Errorf("dnwire: unsupported reply: op=%s", frame.Header.Op)
	}
}

// BrowseReply reports added or removed service instance.
type BrowseReply struct {
	ReplyHeader

	Name        string
	ServiceType string
	Domain      string
}

// ResolveReply contains the service instance resolution data.
type ResolveReply struct {
	ReplyHeader

	// FullName is an escaped full service name, e.g. "robot._sftp-ssh._tcp.local.".
	FullName string

	// HostTarget is the target host name, e.g. "robot.local.".
	HostTarget string

	Port uint16

	// Txt contains TXT record segments, e.g. ["ev3dev.robot.user=robot"].
	Txt [][]byte
}

// QueryReply contains a single record.
type QueryReply struct {
	ReplyHeader

	FullName string
	RRType   uint16
	RRClass  uint16
	RData    []byte
	TTL      uint32
}

// RR decodes the record data.
//
// References:
//   - https://github.com/miekg/dns
func (r *QueryReply) RR() (dns.RR, error) {
	if len(r.RData) > 0xffff {
		return nil, fmt.Errorf("dnwire: record data too large: len=%d", len(r.RData))
	}

	hdr := dns.RR_Header{
		Name:     dns.Fqdn(r.FullName),
		Rrtype:   r.RRType,
		Class:    r.RRClass,
		Ttl:      r.TTL,
		Rdlength: uint16(len(r.RData)),
	}

	rr, _, err := dns.UnpackRRWithHeader(hdr, r.RData, 0)
	if err != nil {
		return nil, fmt.Errorf("dnwire: failed to unpack record: %w", err)
	}

	return rr, nil
}

func parseReplyHeader(r *payloadReader) (ReplyHeader, error) {
	if len(r.buf) < replyHeaderSize {
		return ReplyHeader{}, fmt.Errorf("dnwire: short reply: len=%d: %w",
			len(r.buf), errTruncated)
	}

	h := ReplyHeader{
		Flags:          r.uint32(),
		InterfaceIndex: r.uint32(),
	}
	h.Err = toError(int32(r.uint32()))

	return h, nil
}

// finish maps the body decoding error to ErrUnknown, unless the daemon already
// reported an error.
func (h *ReplyHeader) finish(r *payloadReader) {
	if r.err != nil && h.Err == nil {
		h.Err = ErrUnknown
	}
}

// ParseBrowseReply decodes the browse reply payload.
//
// Remarks:
//   - Returns an error only if the common reply fields are missing.
func ParseBrowseReply(payload []byte) (*BrowseReply, error) {
	r := payloadReader{buf: payload}

	h, err := parseReplyHeader(&r)
	if err != nil {
		return nil, err
	}

	reply := &BrowseReply{ReplyHeader: h}
	reply.Name = r.string()
	reply.ServiceType = r.string()
	reply.Domain = r.string()
	reply.finish(&r)

	return reply, nil
}

// ParseResolveReply decodes the resolve reply payload.
//
// Remarks:
//   - Returns an error only if the common reply fields are missing.
func ParseResolveReply(payload []byte) (*ResolveReply, error) {
	r := payloadReader{buf: payload}

	h, err := parseReplyHeader(&r)
	if err != nil {
		return nil, err
	}

	reply := &ResolveReply{ReplyHeader: h}
	reply.FullName = r.string()
	reply.HostTarget = r.string()
	reply.Port = r.uint16()

	txtLen := int(r.uint16())
	if blob := r.bytes(txtLen); r.err == nil {
		reply.Txt, r.err = parseTxt(blob)
	}

	reply.finish(&r)

	return reply, nil
}

// ParseQueryReply decodes the query reply payload.
//
// Remarks:
//   - Returns an error only if the common reply fields are missing.
func ParseQueryReply(payload []byte) (*QueryReply, error) {
	r := payloadReader{buf: payload}

	h, err := parseReplyHeader(&r)
	if err != nil {
		return nil, err
	}

	reply := &QueryReply{ReplyHeader: h}
	reply.FullName = r.string()
	reply.RRType = r.uint16()
	reply.RRClass = r.uint16()
	reply.RData = r.bytes(int(r.uint16()))
	reply.TTL = r.uint32()
	reply.finish(&r)

	return reply, nil
}

func appendReplyHeader(w *payloadWriter, flags, ifIndex uint32, code ServiceError) {
	w.uint32(flags)
	w.uint32(ifIndex)
	w.uint32(uint32(code))
}

// MarshalBrowseReply encodes the browse reply frame, as it's sent by the daemon.
func MarshalBrowseReply(
	flags, ifIndex uint32, code ServiceError, name, serviceType, domain string,
) []byte {
	w := payloadWriter{}
	appendReplyHeader(&w, flags, ifIndex, code)
	w.string(name)
	w.string(serviceType)
	w.string(domain)

	return MarshalFrame(OpBrowseReply, 0, w.buf)
}

// MarshalResolveReply encodes the resolve reply frame, as it's sent by the daemon.
func MarshalResolveReply(
	flags, ifIndex uint32, code ServiceError,
	fullName, hostTarget string, port uint16, txt [][]byte,
) ([]byte, error) {
	blob, err := marshalTxt(txt)
	if err != nil {
		return nil, err
	}

	if len(blob) > 0xffff {
		return nil, fmt.Errorf("dnwire: TXT record too large: len=%d", len(blob))
	}

	w := payloadWriter{}
	appendReplyHeader(&w, flags, ifIndex, code)
	w.string(fullName)
	w.string(hostTarget)
	w.uint16(port)
	w.uint16(uint16(len(blob)))
	w.bytes(blob)

	return MarshalFrame(OpResolveReply, 0, w.buf), nil
}

// MarshalQueryReply encodes the query reply frame, as it's sent by the daemon.
func MarshalQueryReply(
	flags, ifIndex uint32, code ServiceError,
	fullName string, rrtype, rrclass uint16, rdata []byte, ttl uint32,
) []byte {
	w := payloadWriter{}
	appendReplyHeader(&w, flags, ifIndex, code)
	w.string(fullName)
	w.uint16(rrtype)
	w.uint16(rrclass)
	w.uint16(uint16(len(rdata)))
	w.bytes(rdata)
	w.uint32(ttl)

	return MarshalFrame(OpQueryReply, 0, w.buf)
}
