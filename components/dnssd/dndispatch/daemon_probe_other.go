//go:build !unix

package dndispatch

import (
	"net"
	"time"

	"github.com/open-control-systems/dnssd-hub/components/dnssd/dndaemon"
)

const daemonDialTimeout = 100 * time.Millisecond

// daemonAvailable checks that the daemon accepts TCP connections.
func daemonAvailable(params dndaemon.Params) bool {
	conn, err := net.DialTimeout("tcp", params.Dial.TCPAddr, daemonDialTimeout)
	if err != nil {
		return false
	}

	_ = conn.Close()

	return true
}
