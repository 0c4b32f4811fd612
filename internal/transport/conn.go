package transport

import (
	"bufio"
	"io"
	"sync"

	"github.com/krich11/mls-delivery-service/internal/proto"
)

// Conn is one framed connection. Frame writes are serialized with a
// mutex: a connection's request replies and relay deliveries pushed by
// other connections' handlers may interleave.
type Conn struct {
	stream io.ReadWriteCloser
	r      *bufio.Reader
	remote string

	wmu     sync.Mutex
	extra   []io.Closer
	closeMu sync.Mutex
	closed  bool
}

func newConn(stream io.ReadWriteCloser, remote string, extra ...io.Closer) *Conn {
	return &Conn{
		stream: stream,
		r:      proto.NewFrameReader(stream),
		remote: remote,
		extra:  extra,
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// ReadFrame reads the next raw frame. It returns proto.ErrOversized for a
// frame above the size cap, with the connection still usable.
func (c *Conn) ReadFrame() ([]byte, error) {
	return proto.ReadFrame(c.r)
}

// WriteFrame sends v as one frame.
func (c *Conn) WriteFrame(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return proto.WriteFrame(c.stream, v)
}

// WriteRawFrame sends pre-encoded JSON as one frame.
func (c *Conn) WriteRawFrame(data []byte) error {
	if len(data)+1 > proto.MaxFrameSize {
		return proto.ErrOversized
	}
	framed := make([]byte, 0, len(data)+1)
	framed = append(append(framed, data...), '\n')
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.stream.Write(framed)
	return err
}

// Close closes the underlying stream (and, for QUIC, the session).
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.stream.Close()
	for _, cl := range c.extra {
		_ = cl.Close()
	}
	return err
}
