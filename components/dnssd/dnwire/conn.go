package dnwire

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Default daemon endpoints.
const (
	DefaultSocketPath = "/var/run/mDNSResponder"
	DefaultTCPAddr    = "127.0.0.1:5354"
)

// DialParams defines how to connect to the daemon.
type DialParams struct {
	// SocketPath is the Unix domain socket of the daemon.
	SocketPath string

	// TCPAddr is used when the Unix socket doesn't exist.
	TCPAddr string
}

func (p DialParams) withDefaults() DialParams {
	if p.SocketPath == "" {
		p.SocketPath = DefaultSocketPath
	}
	if p.TCPAddr == "" {
		p.TCPAddr = DefaultTCPAddr
	}

	return p
}

// Dial opens a new connection to the daemon.
//
// Remarks:
//   - Each request requires its own connection, since replies are delivered over
//     the connection the request was sent on.
func Dial(ctx context.Context, params DialParams) (*Conn, error) {
	params = params.withDefaults()

	network, addr := "tcp", params.TCPAddr
	if _, err := os.Stat(params.SocketPath); err == nil {
		network, addr = "unix", params.SocketPath
	}

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dnwire: failed to connect: network=%s addr=%s: %w",
			network, addr, err)
	}

	return NewConn(conn), nil
}

// Conn is a single request connection to the daemon.
//
// Remarks:
//   - Not safe for concurrent use, except Close() which can be called at any time
//     to unblock the pending read.
type Conn struct {
	conn    net.Conn
	decoder FrameDecoder
	buf     []byte
}

// NewConn is an initialization of Conn.
//
// Parameters:
//   - conn - connection to the daemon.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		buf:  make([]byte, 4096),
	}
}

// Close closes the connection, the daemon cancels the request.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Browse sends the browse request and waits for the daemon to accept it.
func (c *Conn) Browse(ctx context.Context, req *BrowseRequest) error {
	payload, err := req.Marshal()
	if err != nil {
		return err
	}

	return c.request(ctx, OpBrowseRequest, payload)
}

// Resolve sends the resolve request and waits for the daemon to accept it.
func (c *Conn) Resolve(ctx context.Context, req *ResolveRequest) error {
	payload, err := req.Marshal()
	if err != nil {
		return err
	}

	return c.request(ctx, OpResolveRequest, payload)
}

// QueryRecord sends the query request and waits for the daemon to accept it.
func (c *Conn) QueryRecord(ctx context.Context, req *QueryRequest) error {
	payload, err := req.Marshal()
	if err != nil {
		return err
	}

	return c.request(ctx, OpQueryRequest, payload)
}

// ReadFrame blocks until a complete reply frame is received.
func (c *Conn) ReadFrame(ctx context.Context) (Frame, error) {
	var frame Frame

	err := c.withContext(ctx, func() error {
		for {
			f, ok, err := c.decoder.Next()
			if err != nil {
				return err
			}
			if ok {
				frame = f
				return nil
			}

			n, err := c.conn.Read(c.buf)
			if n > 0 {
				c.decoder.Feed(c.buf[:n])
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return fmt.Errorf("dnwire: connection closed by daemon: %w", io.ErrUnexpectedEOF)
				}

				return err
			}
		}
	})

	return frame, err
}

// ProcessReply blocks until a complete reply is received, decodes it and passes
// it to the handler.
//
// Remarks:
//   - The handler isn't called if the reply has unsupported version or operation.
func (c *Conn) ProcessReply(ctx context.Context, handler func(Reply)) error {
	frame, err := c.ReadFrame(ctx)
	if err != nil {
		return err
	}

	reply, err := ParseReply(frame)
	if err != nil {
		return err
	}

	handler(reply)

	return nil
}

// ReadBrowseReply reads the next browse reply.
func (c *Conn) ReadBrowseReply(ctx context.Context) (*BrowseReply, error) {
	frame, err := c.readOp(ctx, OpBrowseReply)
	if err != nil {
		return nil, err
	}

	return ParseBrowseReply(frame.Payload)
}

// ReadResolveReply reads the next resolve reply.
func (c *Conn) ReadResolveReply(ctx context.Context) (*ResolveReply, error) {
	frame, err := c.readOp(ctx, OpResolveReply)
	if err != nil {
		return nil, err
	}

	return ParseResolveReply(frame.Payload)
}

// ReadQueryReply reads the next query reply.
func (c *Conn) ReadQueryReply(ctx context.Context) (*QueryReply, error) {
	frame, err := c.readOp(ctx, OpQueryReply)
	if err != nil {
		return nil, err
	}

	return ParseQueryReply(frame.Payload)
}

func (c *Conn) readOp(ctx context.Context, op Op) (Frame, error) {
	frame, err := c.ReadFrame(ctx)
	if err != nil {
		return Frame{}, err
	}

	if frame.Header.Op != op {
		return Frame{}, fmt.Errorf("dnwire: unexpected reply: want=%s got=%s",
			op, frame.Header.Op)
	}

	return frame, nil
}

func (c *Conn) request(ctx context.Context, op Op, payload []byte) error {
	if len(payload) > MaxDataLen {
		return fmt.Errorf("dnwire: request too large: len=%d", len(payload))
	}

	return c.withContext(ctx, func() error {
		if _, err := c.conn.Write(MarshalFrame(op, FlagsReuseSocket, payload)); err != nil {
			return fmt.Errorf("dnwire: failed to send %s: %w", op, err)
		}

		var ack [4]byte
		if _, err := io.ReadFull(c.conn, ack[:]); err != nil {
			return fmt.Errorf("dnwire: failed to read %s status: %w", op, err)
		}

		if err := toError(int32(binary.BigEndian.Uint32(ack[:]))); err != nil {
			return fmt.Errorf("dnwire: %s rejected: %w", op, err)
		}

		return nil
	})
}

func (c *Conn) withContext(ctx context.Context, fn func() error) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})

	err := fn()

	if stop() {
		_ = c.conn.SetDeadline(time.Time{})
	}

	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("dnwire: %w: %w", ctxErr, err)
	}

	// Connection deadline is only set from the context deadline, which may
	// fire slightly later than the connection one.
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("dnwire: %w: %w", context.DeadlineExceeded, err)
	}

	return err
}
