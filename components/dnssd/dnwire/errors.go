package dnwire

import "fmt"

// ServiceError is a status code reported by the mDNS daemon.
//
// References:
//   - dns_sd.h, kDNSServiceErr_* constants.
type ServiceError int32

const (
	ErrNoError           ServiceError = 0
	ErrUnknown           ServiceError = -65537
	ErrNoSuchName        ServiceError = -65538
	ErrNoMemory          ServiceError = -65539
	ErrBadParam          ServiceError = -65540
	ErrBadReference      ServiceError = -65541
	ErrBadState          ServiceError = -65542
	ErrBadFlags          ServiceError = -65543
	ErrUnsupported       ServiceError = -65544
	ErrNotInitialized    ServiceError = -65545
	ErrAlreadyRegistered ServiceError = -65547
	ErrNameConflict      ServiceError = -65548
	ErrInvalid           ServiceError = -65549
	ErrFirewall          ServiceError = -65550
	ErrIncompatible      ServiceError = -65551
	ErrBadInterfaceIndex ServiceError = -65552
	ErrRefused           ServiceError = -65553
	ErrNoSuchRecord      ServiceError = -65554
	ErrNoAuth            ServiceError = -65555
	ErrNoSuchKey         ServiceError = -65556
	ErrNATTraversal      ServiceError = -65557
	ErrDoubleNAT         ServiceError = -65558
	ErrBadTime           ServiceError = -65559
)

var serviceErrorNames = map[ServiceError]string{
	ErrNoError:           "no error",
	ErrUnknown:           "unknown",
	ErrNoSuchName:        "no such name",
	ErrNoMemory:          "no memory",
	ErrBadParam:          "bad param",
	ErrBadReference:      "bad reference",
	ErrBadState:          "bad state",
	ErrBadFlags:          "bad flags",
	ErrUnsupported:       "unsupported",
	ErrNotInitialized:    "not initialized",
	ErrAlreadyRegistered: "already registered",
	ErrNameConflict:      "name conflict",
	ErrInvalid:           "invalid",
	ErrFirewall:          "firewall",
	ErrIncompatible:      "incompatible version",
	ErrBadInterfaceIndex: "bad interface index",
	ErrRefused:           "refused",
	ErrNoSuchRecord:      "no such record",
	ErrNoAuth:            "no auth",
	ErrNoSuchKey:         "no such key",
	ErrNATTraversal:      "NAT traversal",
	ErrDoubleNAT:         "double NAT",
	ErrBadTime:           "bad time",
}

// ErrorFromCode maps the daemon status code to ServiceError.
//
// Remarks:
//   - Codes which are not known are mapped to ErrUnknown.
func ErrorFromCode(code int32) ServiceError {
	if _, ok := serviceErrorNames[ServiceError(code)]; ok {
		return ServiceError(code)
	}

	return ErrUnknown
}

// Code returns the numeric status code.
func (e ServiceError) Code() int32 {
	return int32(e)
}

// Error implements error interface.
func (e ServiceError) Error() string {
	if name, ok := serviceErrorNames[e]; ok {
		return fmt.Sprintf("dns-sd: %s (%d)", name, int32(e))
	}

	return fmt.Sprintf("dns-sd: unknown (%d)", int32(e))
}

// toError returns nil for ErrNoError.
func toError(code int32) error {
	if code == int32(ErrNoError) {
		return nil
	}

	return ErrorFromCode(code)
}
