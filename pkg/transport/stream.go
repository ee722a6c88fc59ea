// Package transport adapts byte-stream and message-oriented connections to
// the Stream interface the server and client pump protocol bytes through.
package transport

import (
	"errors"
	"time"
)

// DefaultReadBufferSize is the read size used by TCP streams.
const DefaultReadBufferSize = 32 * 1024

// ErrClosed is returned by operations on a closed Stream.
var ErrClosed = errors.New("transport: stream closed")

// Stream is a bidirectional connection to a peer.
//
// Read returns the next bytes available; the returned slice is owned by the
// caller. A peer that closed cleanly yields io.EOF. Read and Write may be
// called from different goroutines, but neither concurrently with itself.
type Stream interface {
	Read() ([]byte, error)
	Write(p []byte) error
	Close() error

	// SetReadDeadline bounds the next Read. A zero time disables the deadline.
	SetReadDeadline(t time.Time) error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string

	// Kind names the transport ("tcp" or "websocket").
	Kind() string
}
