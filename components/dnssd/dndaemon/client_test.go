package dndaemon

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/netip"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/open-control-systems/dnssd-hub/components/dnssd/dncore"
	"github.com/open-control-systems/dnssd-hub/components/dnssd/dnwire"
	"github.com/open-control-systems/dnssd-hub/components/status"
)

type testDaemonService struct {
	host string
	port uint16
	txt  []string
	code dnwire.ServiceError
}

type testDaemonServer struct {
	path     string
	listener net.Listener

	mu          sync.Mutex
	browseAck   dnwire.ServiceError
	services    map[string]testDaemonService
	addrs       map[string]net.IP
	browseConns []net.Conn
	conns       []net.Conn
}

func newTestDaemonServer(t *testing.T) *testDaemonServer {
	path := filepath.Join(t.TempDir(), "mdns.sock")

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	s := &testDaemonServer{
		path:     path,
		listener: listener,
		services: make(map[string]testDaemonService),
		addrs:    make(map[string]net.IP),
	}

	go s.serve()

	t.Cleanup(s.close)

	return s
}

func (s *testDaemonServer) params() Params {
	return Params{
		Dial:           dnwire.DialParams{SocketPath: s.path},
		ResolveTimeout: time.Second,
	}
}

func (s *testDaemonServer) setService(name string, service testDaemonService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services[name] = service
}

func (s *testDaemonServer) setAddr(host string, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addrs[host] = net.ParseIP(ip)
}

func (s *testDaemonServer) setBrowseAck(code dnwire.ServiceError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.browseAck = code
}

func (s *testDaemonServer) announce(flags, ifIndex uint32, code dnwire.ServiceError, name string) {
	frame := dnwire.MarshalBrowseReply(flags, ifIndex, code, name, "_sftp-ssh._tcp.", "local.")

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.browseConns {
		_, _ = conn.Write(frame)
	}
}

func (s *testDaemonServer) dropBrowsers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.browseConns {
		_ = conn.Close()
	}
	s.browseConns = nil
}

func (s *testDaemonServer) close() {
	_ = s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *testDaemonServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *testDaemonServer) handle(conn net.Conn) {
	buf := make([]byte, dnwire.HeaderSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return
	}

	header, err := dnwire.ParseHeader(buf)
	if err != nil {
		return
	}

	payload := make([]byte, header.DataLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return
	}

	switch header.Op {
	case dnwire.OpBrowseRequest:
		s.handleBrowse(conn)
	case dnwire.OpResolveRequest:
		s.handleResolve(conn, payload)
	case dnwire.OpQueryRequest:
		s.handleQuery(conn, payload)
	}
}

func (s *testDaemonServer) handleBrowse(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeTestAck(conn, s.browseAck); err != nil {
		return
	}

	if s.browseAck == dnwire.ErrNoError {
		s.browseConns = append(s.browseConns, conn)
	}
}

func (s *testDaemonServer) handleResolve(conn net.Conn, payload []byte) {
	req, err := dnwire.UnmarshalResolveRequest(payload)
	if err != nil {
		return
	}

	if err := writeTestAck(conn, dnwire.ErrNoError); err != nil {
		return
	}

	s.mu.Lock()
	service, ok := s.services[req.Name]
	s.mu.Unlock()

	// Unknown services are never answered.
	if !ok {
		return
	}

	var txt [][]byte
	for _, segment := range service.txt {
		txt = append(txt, []byte(segment))
	}

	frame, err := dnwire.MarshalResolveReply(0, req.InterfaceIndex, service.code,
		req.Name+"."+req.ServiceType+req.Domain, service.host, service.port, txt)
	if err != nil {
		return
	}

	_, _ = conn.Write(frame)
}

func (s *testDaemonServer) handleQuery(conn net.Conn, payload []byte) {
	req, err := dnwire.UnmarshalQueryRequest(payload)
	if err != nil {
		return
	}

	if err := writeTestAck(conn, dnwire.ErrNoError); err != nil {
		return
	}

	s.mu.Lock()
	ip, ok := s.addrs[req.FullName]
	s.mu.Unlock()

	if !ok {
		return
	}

	rdata := ip.To16()
	if req.RRType == dns.TypeA {
		rdata = ip.To4()
	}

	// Stale removal goes first, it must be skipped.
	_, _ = conn.Write(dnwire.MarshalQueryReply(0, req.InterfaceIndex, dnwire.ErrNoError,
		req.FullName, req.RRType, req.RRClass, rdata, 0))

	_, _ = conn.Write(dnwire.MarshalQueryReply(dnwire.FlagsAdd, req.InterfaceIndex,
		dnwire.ErrNoError, req.FullName, req.RRType, req.RRClass, rdata, 120))
}

func writeTestAck(conn net.Conn, code dnwire.ServiceError) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(code))

	_, err := conn.Write(buf[:])
	return err
}

func readTestEvent(t *testing.T, browser dncore.Browser) dncore.Event {
	select {
	case event, ok := <-browser.Events():
		require.True(t, ok)
		return event
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout waiting for event")
	}

	return dncore.Event{}
}

func newTestRobot(server *testDaemonServer) {
	server.setService("robot", testDaemonService{
		host: "robot.local.",
		port: 22,
		txt:  []string{"ev3dev.robot.user=robot", "ev3dev.robot.home=/home/robot"},
	})
	server.setAddr("robot.local.", "192.168.4.2")
}

func TestClientBrowseAddRemove(t *testing.T) {
	server := newTestDaemonServer(t)
	newTestRobot(server)

	client := NewClient(server.params())
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.NoError(t, err)
	require.NoError(t, browser.Start())

	for _, ifIndex := range []uint32{2, 3, 4} {
		server.announce(dnwire.FlagsAdd, ifIndex, dnwire.ErrNoError, "robot")
	}

	event := readTestEvent(t, browser)
	require.Equal(t, dncore.EventAdded, event.Type)
	require.Equal(t, "robot", event.Record.Name)
	require.Equal(t, "_sftp-ssh._tcp", event.Record.ServiceType)
	require.Equal(t, "local", event.Record.Domain)
	require.Equal(t, "robot.local", event.Record.Host)
	require.Equal(t, "192.168.4.2", event.Record.Address)
	require.Equal(t, 22, event.Record.Port)
	require.Equal(t, map[string]string{
		"ev3dev.robot.user": "robot",
		"ev3dev.robot.home": "/home/robot",
	}, event.Record.Txt.Map())

	// Duplicate announcement is ignored.
	server.announce(dnwire.FlagsAdd, 2, dnwire.ErrNoError, "robot")

	// Unknown instance removal is ignored.
	server.announce(0, 7, dnwire.ErrNoError, "printer")

	for _, ifIndex := range []uint32{2, 3, 4} {
		server.announce(0, ifIndex, dnwire.ErrNoError, "robot")
	}

	event = readTestEvent(t, browser)
	require.Equal(t, dncore.EventRemoved, event.Type)
	require.Equal(t, "robot", event.Record.Name)

	require.NoError(t, browser.Destroy())

	_, ok := <-browser.Events()
	require.False(t, ok)
}

func TestClientBrowseRejected(t *testing.T) {
	server := newTestDaemonServer(t)
	server.setBrowseAck(dnwire.ErrBadParam)

	client := NewClient(server.params())
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.Nil(t, browser)
	require.ErrorIs(t, err, dnwire.ErrBadParam)
}

func TestClientBrowseInvalidOptions(t *testing.T) {
	client := NewClient(Params{})
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{})
	require.Nil(t, browser)
	require.ErrorIs(t, err, status.StatusInvalidArg)
}

func TestClientBrowseNoDaemon(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := NewClient(Params{Dial: dnwire.DialParams{
		SocketPath: filepath.Join(t.TempDir(), "missing.sock"),
		TCPAddr:    addr,
	}})
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.Nil(t, browser)
	require.Error(t, err)
}

func TestBrowserErrors(t *testing.T) {
	server := newTestDaemonServer(t)
	newTestRobot(server)
	server.setService("broken", testDaemonService{code: dnwire.ErrNoSuchRecord})

	client := NewClient(server.params())
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.NoError(t, err)
	require.NoError(t, browser.Start())

	server.announce(0, 0, dnwire.ErrRefused, "")

	event := readTestEvent(t, browser)
	require.Equal(t, dncore.EventError, event.Type)
	require.False(t, event.Fatal)
	require.ErrorIs(t, event.Err, dnwire.ErrRefused)

	server.announce(dnwire.FlagsAdd, 2, dnwire.ErrNoError, "broken")

	event = readTestEvent(t, browser)
	require.Equal(t, dncore.EventError, event.Type)
	require.False(t, event.Fatal)
	require.ErrorIs(t, event.Err, dnwire.ErrNoSuchRecord)

	server.announce(dnwire.FlagsAdd, 2, dnwire.ErrNoError, "robot")

	event = readTestEvent(t, browser)
	require.Equal(t, dncore.EventAdded, event.Type)
	require.Equal(t, "robot", event.Record.Name)
}

func TestBrowserResolveTimeout(t *testing.T) {
	server := newTestDaemonServer(t)

	params := server.params()
	params.ResolveTimeout = 50 * time.Millisecond

	client := NewClient(params)
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.NoError(t, err)
	require.NoError(t, browser.Start())

	server.announce(dnwire.FlagsAdd, 2, dnwire.ErrNoError, "silent")

	event := readTestEvent(t, browser)
	require.Equal(t, dncore.EventError, event.Type)
	require.False(t, event.Fatal)
	require.ErrorIs(t, event.Err, context.DeadlineExceeded)
}

func TestBrowserIPv6Zone(t *testing.T) {
	server := newTestDaemonServer(t)
	server.setService("robot", testDaemonService{host: "robot.local.", port: 22})
	server.setAddr("robot.local.", "fe80::1")

	client := NewClient(server.params())
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{
		Service:   "sftp-ssh",
		IPVersion: dncore.IPv6,
	})
	require.NoError(t, err)
	require.NoError(t, browser.Start())

	server.announce(dnwire.FlagsAdd, 1, dnwire.ErrNoError, "robot")

	event := readTestEvent(t, browser)
	require.Equal(t, dncore.EventAdded, event.Type)
	require.Equal(t, dncore.IPv6, event.Record.IPVersion)

	addr, err := netip.ParseAddr(event.Record.Address)
	require.NoError(t, err)
	require.Equal(t, "fe80::1", addr.WithZone("").String())
	require.NotEmpty(t, addr.Zone())
}

func TestBrowserDaemonGone(t *testing.T) {
	server := newTestDaemonServer(t)

	client := NewClient(server.params())
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.NoError(t, err)
	require.NoError(t, browser.Start())

	server.dropBrowsers()

	event := readTestEvent(t, browser)
	require.Equal(t, dncore.EventError, event.Type)
	require.True(t, event.Fatal)

	require.NoError(t, browser.Destroy())
}

func TestBrowserLifecycle(t *testing.T) {
	server := newTestDaemonServer(t)

	client := NewClient(server.params())
	defer client.Destroy()

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.NoError(t, err)
	require.NotEmpty(t, browser.ID())

	require.NoError(t, browser.Start())
	require.ErrorIs(t, browser.Start(), status.StatusInvalidState)

	require.NoError(t, browser.Stop())
	require.NoError(t, browser.Stop())
	require.ErrorIs(t, browser.Start(), status.StatusInvalidState)

	require.NoError(t, browser.Destroy())
	require.NoError(t, browser.Destroy())

	_, ok := <-browser.Events()
	require.False(t, ok)
}

func TestClientDestroy(t *testing.T) {
	server := newTestDaemonServer(t)

	client := NewClient(server.params())

	var browsers []dncore.Browser
	for i := 0; i < 2; i++ {
		browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
		require.NoError(t, err)
		require.NoError(t, browser.Start())

		browsers = append(browsers, browser)
	}

	// Not started browser is destroyed as well.
	idle, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "ipp"})
	require.NoError(t, err)
	browsers = append(browsers, idle)

	require.NoError(t, client.Destroy())

	for _, browser := range browsers {
		_, ok := <-browser.Events()
		require.False(t, ok)
	}

	browser, err := client.Browse(context.Background(), dncore.BrowseOptions{Service: "sftp-ssh"})
	require.Nil(t, browser)
	require.ErrorIs(t, err, status.StatusClosed)
}
