package dndispatch

import (
	"fmt"
	"strings"

	"github.com/open-control-systems/dnssd-hub/components/status"
)

// Backend is a discovery backend.
type Backend string

const (
	// BackendAuto selects the first available backend.
	BackendAuto Backend = "auto"

	// BackendDaemon is the native mDNS daemon.
	BackendDaemon Backend = "daemon"

	// BackendAvahi is the Avahi daemon over D-Bus.
	BackendAvahi Backend = "avahi"

	// BackendZeroconf is the pure Go multicast implementation.
	BackendZeroconf Backend = "zeroconf"
)

// ParseBackend parses the backend name, empty name means BackendAuto.
func ParseBackend(s string) (Backend, error) {
	switch backend := Backend(strings.ToLower(s)); backend {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendDaemon, BackendAvahi, BackendZeroconf:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q: %w", s, status.StatusInvalidArg)
	}
}
