package sysnet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-control-systems/dnssd-hub/components/status"
)

type testInterfaceWatcherLister struct {
	addrs []InterfaceAddr
	err   error
}

func (l *testInterfaceWatcherLister) ListAddrs() ([]InterfaceAddr, error) {
	if l.err != nil {
		return nil, l.err
	}

	return l.addrs, nil
}

type testInterfaceWatcherHandler struct {
	events []string
}

func (h *testInterfaceWatcherHandler) HandleAddrAdded(addr InterfaceAddr) {
	h.events = append(h.events, "+"+addr.Key())
}

func (h *testInterfaceWatcherHandler) HandleAddrRemoved(addr InterfaceAddr) {
	h.events = append(h.events, "-"+addr.Key())
}

func TestInterfaceWatcherDiff(t *testing.T) {
	eth0v4 := InterfaceAddr{Index: 2, Name: "eth0", IP: net.IPv4(192, 168, 4, 2)}
	eth0v6 := InterfaceAddr{Index: 2, Name: "eth0", IP: net.ParseIP("fe80::1")}
	usb0v6 := InterfaceAddr{Index: 3, Name: "usb0", IP: net.ParseIP("fe80::2")}

	lister := &testInterfaceWatcherLister{
		addrs: []InterfaceAddr{eth0v6, eth0v4},
	}
	handler := &testInterfaceWatcherHandler{}
	watcher := NewInterfaceWatcher(lister, handler)

	require.Nil(t, watcher.Run())
	require.Equal(t, []string{"+eth0/192.168.4.2", "+eth0/fe80::1"}, handler.events)

	handler.events = nil
	require.Nil(t, watcher.Run())
	require.Empty(t, handler.events)

	lister.addrs = []InterfaceAddr{eth0v6, usb0v6}
	require.Nil(t, watcher.Run())
	require.Equal(t, []string{"-eth0/192.168.4.2", "+usb0/fe80::2"}, handler.events)

	// Known addresses are kept, only the new one is reported.
	handler.events = nil
	lister.addrs = []InterfaceAddr{usb0v6, eth0v6}
	require.Nil(t, watcher.Run())
	require.Empty(t, handler.events)
}

func TestInterfaceWatcherListError(t *testing.T) {
	lister := &testInterfaceWatcherLister{
		addrs: []InterfaceAddr{{Index: 2, Name: "eth0", IP: net.IPv4(10, 0, 0, 1)}},
	}
	handler := &testInterfaceWatcherHandler{}
	watcher := NewInterfaceWatcher(lister, handler)

	require.Nil(t, watcher.Run())
	require.Len(t, handler.events, 1)

	lister.err = status.StatusError
	require.Equal(t, status.StatusError, watcher.Run())
	require.Len(t, handler.events, 1)

	// Failed poll doesn't drop the known addresses.
	lister.err = nil
	require.Nil(t, watcher.Run())
	require.Len(t, handler.events, 1)
}

func TestInterfaceAddrFamily(t *testing.T) {
	v4 := InterfaceAddr{Index: 2, Name: "eth0", IP: net.IPv4(10, 0, 0, 1)}
	require.False(t, v4.IsIPv6())
	require.Equal(t, "eth0/10.0.0.1", v4.Key())

	v6 := InterfaceAddr{Index: 2, Name: "eth0", IP: net.ParseIP("fe80::1")}
	require.True(t, v6.IsIPv6())
	require.Equal(t, "eth0/fe80::1", v6.Key())
}
