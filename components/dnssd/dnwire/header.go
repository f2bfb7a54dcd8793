package dnwire

import (
	"encoding/binary"
	"fmt"
)

// Version is the only supported IPC protocol version.
const Version uint32 = 1

// HeaderSize is the size of the IPC message header.
const HeaderSize = 28

// MaxDataLen limits the payload size of a single message.
const MaxDataLen = 1 << 16

// FlagsReuseSocket is set for requests which replies are delivered over the
// request connection.
const FlagsReuseSocket uint32 = 1

// Op is an IPC operation code.
type Op uint32

// Request operations.
const (
	OpConnectionRequest     Op = 1
	OpRegRecordRequest      Op = 2
	OpRemoveRecordRequest   Op = 3
	OpEnumerationRequest    Op = 4
	OpRegServiceRequest     Op = 5
	OpBrowseRequest         Op = 6
	OpResolveRequest        Op = 7
	OpQueryRequest          Op = 8
	OpReconfirmRecord       Op = 9
	OpAddRecordRequest      Op = 10
	OpUpdateRecordRequest   Op = 11
	OpSetDomainRequest      Op = 12
	OpGetPropertyRequest    Op = 13
	OpPortMappingRequest    Op = 14
	OpAddrInfoRequest       Op = 15
	OpCancelRequest         Op = 63
	OpEnumerationReply      Op = 64
	OpRegServiceReply       Op = 65
	OpBrowseReply           Op = 66
	OpResolveReply          Op = 67
	OpQueryReply            Op = 68
	OpRegRecordReply        Op = 69
	OpGetPropertyReply      Op = 70
	OpPortMappingReply      Op = 71
	OpAddrInfoReply         Op = 72
)

var opNames = map[Op]string{
	OpBrowseRequest:  "browse-request",
	OpResolveRequest: "resolve-request",
	OpQueryRequest:   "query-request",
	OpBrowseReply:    "browse-reply",
	OpResolveReply:   "resolve-reply",
	OpQueryReply:     "query-reply",
}

// String returns string representation of the operation.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}

	return fmt.Sprintf("op(%d)", uint32(op))
}

// Header is the IPC message header, all fields are big-endian.
type Header struct {
	Version  uint32
	DataLen  uint32
	Flags    uint32
	Op       Op
	Context  [2]uint32
	RegIndex uint32
}

// AppendHeader appends the encoded header to buf.
func AppendHeader(buf []byte, h Header) []byte {
	buf = binary.BigEndian.AppendUint32(buf, h.Version)
	buf = binary.BigEndian.AppendUint32(buf, h.DataLen)
	buf = binary.BigEndian.AppendUint32(buf, h.Flags)
	buf = binary.BigEndian.AppendUint32(buf, uint32(h.Op))
	buf = binary.BigEndian.AppendUint32(buf, h.Context[0])
	buf = binary.BigEndian.AppendUint32(buf, h.Context[1])
	buf = binary.BigEndian.AppendUint32(buf, h.RegIndex)

	return buf
}

// ParseHeader decodes the header from the first HeaderSize bytes of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("dnwire: short header: len=%d", len(buf))
	}

	return Header{
		Version:  binary.BigEndian.Uint32(buf[0:]),
		DataLen:  binary.BigEndian.Uint32(buf[4:]),
		Flags:    binary.BigEndian.Uint32(buf[8:]),
		Op:       Op(binary.BigEndian.Uint32(buf[12:])),
		Context:  [2]uint32{binary.BigEndian.Uint32(buf[16:]), binary.BigEndian.Uint32(buf[20:])},
		RegIndex: binary.BigEndian.Uint32(buf[24:]),
	}, nil
}

// Frame is a single IPC message.
type Frame struct {
	Header  Header
	Payload []byte
}

// MarshalFrame encodes the message with the provided operation and payload.
func MarshalFrame(op Op, flags uint32, payload []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(payload))

	buf = AppendHeader(buf, Header{
		Version: Version,
		DataLen: uint32(len(payload)),
		Flags:   flags,
		Op:      op,
	})

	return append(buf, payload...)
}
