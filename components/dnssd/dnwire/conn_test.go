package dnwire

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testDaemonRequest struct {
	header  Header
	payload []byte
}

type testDaemonPeer struct {
	conn net.Conn
}

func (p *testDaemonPeer) readRequest() (testDaemonRequest, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(p.conn, buf); err != nil {
		return testDaemonRequest{}, err
	}

	header, err := ParseHeader(buf)
	if err != nil {
		return testDaemonRequest{}, err
	}

	payload := make([]byte, header.DataLen)
	if _, err := io.ReadFull(p.conn, payload); err != nil {
		return testDaemonRequest{}, err
	}

	return testDaemonRequest{header: header, payload: payload}, nil
}

func (p *testDaemonPeer) writeAck(code ServiceError) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(code))

	_, err := p.conn.Write(buf[:])
	return err
}

func newTestDaemonPipe(t *testing.T) (*Conn, *testDaemonPeer) {
	client, server := net.Pipe()

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	return NewConn(client), &testDaemonPeer{conn: server}
}

func TestConnBrowse(t *testing.T) {
	conn, peer := newTestDaemonPipe(t)

	reqCh := make(chan testDaemonRequest, 1)
	errCh := make(chan error, 1)

	go func() {
		req, err := peer.readRequest()
		if err != nil {
			errCh <- err
			return
		}
		reqCh <- req

		if err := peer.writeAck(ErrNoError); err != nil {
			errCh <- err
			return
		}

		var stream []byte
		stream = append(stream, MarshalBrowseReply(FlagsAdd|FlagsMoreComing, 2, ErrNoError,
			"robot", "_sftp-ssh._tcp.", "local.")...)
		stream = append(stream, MarshalBrowseReply(0, 2, ErrNoError,
			"robot", "_sftp-ssh._tcp.", "local.")...)

		// Deliver replies byte by byte.
		for _, b := range stream {
			if _, err := peer.conn.Write([]byte{b}); err != nil {
				errCh <- err
				return
			}
		}

		errCh <- nil
	}()

	err := conn.Browse(context.Background(), &BrowseRequest{ServiceType: "_sftp-ssh._tcp"})
	require.NoError(t, err)

	req := <-reqCh
	require.Equal(t, OpBrowseRequest, req.header.Op)
	require.Equal(t, FlagsReuseSocket, req.header.Flags)
	require.Equal(t, Version, req.header.Version)

	browseReq, err := UnmarshalBrowseRequest(req.payload)
	require.NoError(t, err)
	require.Equal(t, "_sftp-ssh._tcp", browseReq.ServiceType)

	reply, err := conn.ReadBrowseReply(context.Background())
	require.NoError(t, err)
	require.True(t, reply.Add())
	require.Equal(t, "robot", reply.Name)

	reply, err = conn.ReadBrowseReply(context.Background())
	require.NoError(t, err)
	require.False(t, reply.Add())

	require.NoError(t, <-errCh)
}

func TestConnRequestRejected(t *testing.T) {
	conn, peer := newTestDaemonPipe(t)

	go func() {
		if _, err := peer.readRequest(); err != nil {
			return
		}
		_ = peer.writeAck(ErrBadParam)
	}()

	err := conn.Resolve(context.Background(), &ResolveRequest{
		Name:        "robot",
		ServiceType: "_sftp-ssh._tcp.",
		Domain:      "local.",
	})
	require.ErrorIs(t, err, ErrBadParam)
}

func TestConnVersionMismatch(t *testing.T) {
	conn, peer := newTestDaemonPipe(t)

	go func() {
		if _, err := peer.readRequest(); err != nil {
			return
		}
		if err := peer.writeAck(ErrNoError); err != nil {
			return
		}

		frame := MarshalFrame(OpQueryReply, 0, make([]byte, 8))
		binary.BigEndian.PutUint32(frame[0:], 3)

		_, _ = peer.conn.Write(frame)
	}()

	err := conn.QueryRecord(context.Background(), &QueryRequest{FullName: "robot.local."})
	require.NoError(t, err)

	reply, err := conn.ReadQueryReply(context.Background())
	require.Nil(t, reply)
	require.ErrorIs(t, err, ErrIncompatible)
}

func TestConnUnexpectedReply(t *testing.T) {
	conn, peer := newTestDaemonPipe(t)

	go func() {
		_, _ = peer.conn.Write(MarshalBrowseReply(FlagsAdd, 0, ErrNoError, "a", "b", "c"))
	}()

	reply, err := conn.ReadResolveReply(context.Background())
	require.Nil(t, reply)
	require.Error(t, err)
}

func TestConnReadCanceled(t *testing.T) {
	conn, _ := newTestDaemonPipe(t)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := conn.ReadFrame(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConnDaemonClosed(t *testing.T) {
	conn, peer := newTestDaemonPipe(t)
	require.NoError(t, peer.conn.Close())

	_, err := conn.ReadFrame(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDialUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdns.sock")

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		peer := &testDaemonPeer{conn: conn}
		if _, err := peer.readRequest(); err != nil {
			return
		}
		_ = peer.writeAck(ErrNoError)
	}()

	conn, err := Dial(context.Background(), DialParams{SocketPath: path})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Browse(context.Background(), &BrowseRequest{
		ServiceType: "_ipp._tcp",
	}))
}

func TestDialTCPFallback(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	conn, err := Dial(context.Background(), DialParams{
		SocketPath: filepath.Join(t.TempDir(), "missing.sock"),
		TCPAddr:    listener.Addr().String(),
	})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestConnProcessReply(t *testing.T) {
	conn, peer := newTestDaemonPipe(t)

	go func() {
		frame, err := MarshalResolveReply(0, 3, ErrNoError,
			"robot._sftp-ssh._tcp.local.", "robot.local.", 22, nil)
		if err != nil {
			return
		}
		_, _ = peer.conn.Write(frame)

		frame = MarshalFrame(OpRegServiceReply, 0, make([]byte, 12))
		_, _ = peer.conn.Write(frame)
	}()

	var replies []Reply
	handler := func(reply Reply) {
		replies = append(replies, reply)
	}

	require.NoError(t, conn.ProcessReply(context.Background(), handler))
	require.Len(t, replies, 1)

	resolve, ok := replies[0].(*ResolveReply)
	require.True(t, ok)
	require.Equal(t, uint16(22), resolve.Port)
	require.Equal(t, uint32(3), resolve.Common().InterfaceIndex)

	require.Error(t, conn.ProcessReply(context.Background(), handler))
	require.Len(t, replies, 1)
}
