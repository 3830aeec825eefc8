package connection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/ChronosX88/newsd/internal/protocol"
	"github.com/google/uuid"
)

const bufferSize = 4096

// Connection is a buffered byte channel to one peer. Every way the peer can
// go away surfaces as protocol.ErrConnectionClosed.
type Connection struct {
	id   string
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	fd   int
}

func New(conn net.Conn) *Connection {
	c := &Connection{
		id:   uuid.NewString(),
		conn: conn,
		r:    bufio.NewReaderSize(conn, bufferSize),
		w:    bufio.NewWriterSize(conn, bufferSize),
		fd:   -1,
	}
	// The descriptor outlives the Control callback. It stays valid until Close,
	// and only the owner of the Connection polls it, never after closing.
	if sc, ok := conn.(syscall.Conn); ok {
		if rc, err := sc.SyscallConn(); err == nil {
			rc.Control(func(fd uintptr) {
				c.fd = int(fd)
			})
		}
	}
	return c
}

func Dial(address string, timeout time.Duration) (*Connection, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return New(conn), nil
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Fd returns the descriptor used for readiness polling, or -1 when the
// underlying connection does not expose one.
func (c *Connection) Fd() int {
	return c.fd
}

// Buffered returns the number of bytes already received but not yet consumed.
func (c *Connection) Buffered() int {
	return c.r.Buffered()
}

func (c *Connection) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, mapError(err)
	}
	return b, nil
}

func (c *Connection) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil {
		return n, mapError(err)
	}
	return n, nil
}

func (c *Connection) WriteByte(b byte) error {
	return mapError(c.w.WriteByte(b))
}

func (c *Connection) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	return n, mapError(err)
}

func (c *Connection) Flush() error {
	return mapError(c.w.Flush())
}

// SetReadDeadline bounds the reads of the current frame. A zero duration
// clears the deadline.
func (c *Connection) SetReadDeadline(d time.Duration) error {
	if d <= 0 {
		return c.conn.SetReadDeadline(time.Time{})
	}
	return c.conn.SetReadDeadline(time.Now().Add(d))
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return protocol.ErrConnectionClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: read timed out", protocol.ErrConnectionClosed)
	default:
		return err
	}
}
