//go:build unix

package dndispatch

import (
	"golang.org/x/sys/unix"

	"github.com/open-control-systems/dnssd-hub/components/dnssd/dndaemon"
)

// daemonAvailable checks that the daemon socket exists and is a socket.
func daemonAvailable(params dndaemon.Params) bool {
	var st unix.Stat_t

	if err := unix.Stat(params.Dial.SocketPath, &st); err != nil {
		return false
	}

	return st.Mode&unix.S_IFMT == unix.S_IFSOCK
}
