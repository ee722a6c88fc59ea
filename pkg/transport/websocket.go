package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketStream is a Stream over a WebSocket connection. Protocol bytes
// travel in binary messages; message boundaries carry no meaning.
type WebSocketStream struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketStream wraps c. writeTimeout <= 0 disables write deadlines.
func NewWebSocketStream(c *websocket.Conn, writeTimeout time.Duration) *WebSocketStream {
	return &WebSocketStream{conn: c, writeTimeout: writeTimeout}
}

// Read returns the payload of the next binary message. A normal close
// from the peer is reported as io.EOF.
func (s *WebSocketStream) Read() ([]byte, error) {
	for {
		mt, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil, ErrClosed
			}
			return nil, err
		}
		switch mt {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			return msg, nil
		default:
			return nil, fmt.Errorf("transport: unexpected websocket message type %d", mt)
		}
	}
}

// Write sends p as one binary message.
func (s *WebSocketStream) Write(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (s *WebSocketStream) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// SetReadDeadline sets the deadline of the next Read.
func (s *WebSocketStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// RemoteAddr returns the peer address.
func (s *WebSocketStream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Kind returns "websocket".
func (s *WebSocketStream) Kind() string { return "websocket" }

// IsUnexpectedClose reports whether err is a WebSocket close other than a
// normal or going-away closure.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNormalClosure)
}
