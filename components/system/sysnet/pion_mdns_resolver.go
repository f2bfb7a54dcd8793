package sysnet

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/pion/mdns"
	"golang.org/x/net/ipv4"

	"github.com/open-control-systems/dnssd-hub/components/status"
)

// PionMdnsResolver resolves ".local" hostnames to IPv4 addresses with a pure Go mDNS
// implementation.
//
// Remarks:
//   - Used by the fallback discovery backend when a service entry carries the host target
//     but no address, the Go resolver can't be relied on for ".local" names in all
//     environments (e.g. containers without nss-mdns).
//   - The underlying connection is created lazily on the first Resolve() call.
//   - Can be used from multiple goroutines.
//
// References:
//   - https://github.com/pion/mdns
type PionMdnsResolver struct {
	mu     sync.Mutex
	conn   *mdns.Conn
	closed bool
}

// Resolve mDNS hostname, e.g. "robot.local" or "robot.local.".
func (r *PionMdnsResolver) Resolve(ctx context.Context, hostname string) (net.Addr, error) {
	hostname = strings.TrimSuffix(hostname, ".")

	if !strings.HasSuffix(hostname, ".local") {
		return nil, fmt.Errorf("pion-mdns-resolver: unsupported hostname: %s: %w",
			hostname, status.StatusInvalidArg)
	}

	conn, err := r.getConn()
	if err != nil {
		return nil, err
	}

	_, addr, err := conn.Query(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("pion-mdns-resolver: query failed: hostname=%s: %w",
			hostname, err)
	}

	return addr, nil
}

// Close the underlying mDNS connection.
func (r *PionMdnsResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.conn != nil {
		conn := r.conn
		r.conn = nil

		return conn.Close()
	}

	return nil
}

func (r *PionMdnsResolver) getConn() (*mdns.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("pion-mdns-resolver: %w", status.StatusClosed)
	}

	if r.conn != nil {
		return r.conn, nil
	}

	// UDP connection is closed when the mDNS connection is closed.
	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("pion-mdns-resolver: failed to create UDP connection: %w", err)
	}

	mdnsConn, err := mdns.Server(ipv4.NewPacketConn(udpConn), &mdns.Config{})
	if err != nil {
		_ = udpConn.Close()

		return nil, fmt.Errorf("pion-mdns-resolver: failed to create mDNS connection: %w", err)
	}

	r.conn = mdnsConn

	return mdnsConn, nil
}
