package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// TCPStream is a Stream over a net.Conn.
type TCPStream struct {
	conn         net.Conn
	buf          []byte
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewTCPStream wraps c. readBufferSize <= 0 uses DefaultReadBufferSize;
// writeTimeout <= 0 disables write deadlines.
func NewTCPStream(c net.Conn, readBufferSize int, writeTimeout time.Duration) *TCPStream {
	if readBufferSize <= 0 {
		readBufferSize = DefaultReadBufferSize
	}
	return &TCPStream{
		conn:         c,
		buf:          make([]byte, readBufferSize),
		writeTimeout: writeTimeout,
	}
}

// Read returns the bytes of one read from the connection.
func (s *TCPStream) Read() ([]byte, error) {
	n, err := s.conn.Read(s.buf)
	if n > 0 {
		// Bytes read alongside an error are delivered first; the error
		// repeats on the next Read.
		return append([]byte(nil), s.buf[:n]...), nil
	}
	if isClosed(err) {
		return nil, ErrClosed
	}
	return nil, err
}

// Write writes all of p.
func (s *TCPStream) Write(p []byte) error {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := s.conn.Write(p)
	if isClosed(err) {
		return ErrClosed
	}
	return err
}

// Close closes the connection. It is safe to call more than once.
func (s *TCPStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// SetReadDeadline sets the deadline of the next Read.
func (s *TCPStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// RemoteAddr returns the peer address.
func (s *TCPStream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Kind returns "tcp".
func (s *TCPStream) Kind() string { return "tcp" }

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
