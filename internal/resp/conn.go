package resp

import (
	"bufio"
	"errors"
	"io"
	"net"
)

// ErrConnectionReset is returned by ReadFrame when the peer closes the
// socket mid-frame (EOF with bytes still buffered).
var ErrConnectionReset = errors.New("resp: connection reset by peer")

// Conn reads and writes Frame values over a net.Conn, hiding the byte-level
// RESP framing from callers. Reads grow an internal buffer on demand;
// writes go through a buffered writer flushed once per frame.
type Conn struct {
	nc      net.Conn
	w       *bufio.Writer
	dec     *Decoder
	scratch []byte
}

// NewConn wraps nc with a 4 KiB write buffer and decode buffer.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		nc:      nc,
		w:       bufio.NewWriterSize(nc, 4096),
		dec:     NewDecoder(),
		scratch: make([]byte, 4096),
	}
}

// ReadFrame reads a single Frame from the underlying connection, blocking
// until a full frame is available. It returns (nil, nil) on a clean peer
// close (EOF with no partially buffered frame).
func (c *Conn) ReadFrame() (*Frame, error) {
	for {
		frame, ok, err := c.dec.Decode()
		if err != nil {
			return nil, err
		}
		if ok {
			return &frame, nil
		}
		n, err := c.nc.Read(c.scratch)
		if n > 0 {
			c.dec.Append(c.scratch[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if c.dec.Buffered() == 0 {
					return nil, nil
				}
				return nil, ErrConnectionReset
			}
			return nil, err
		}
	}
}

// WriteFrame encodes and flushes f to the connection.
func (c *Conn) WriteFrame(f Frame) error {
	return WriteTo(c.w, f)
}

// Close closes the underlying connection, unblocking any in-flight Read.
func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr is a convenience passthrough used for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }
