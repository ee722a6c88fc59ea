package transport

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestTCPStream(t *testing.T) {
	a, b := net.Pipe()
	left := NewTCPStream(a, 4, time.Second)
	right := NewTCPStream(b, 0, 0)
	defer right.Close()

	if left.Kind() != "tcp" {
		t.Errorf("Kind = %q", left.Kind())
	}

	go func() {
		_ = left.Write([]byte("hello"))
		_ = left.Close()
	}()

	var got []byte
	for {
		p, err := right.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read error: %v", err)
		}
		got = append(got, p...)
	}
	if string(got) != "hello" {
		t.Errorf("read %q, want hello", got)
	}

	if err := left.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if _, err := left.Read(); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close error = %v, want ErrClosed", err)
	}
}

func TestTCPStreamReadBufferCopies(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	s := NewTCPStream(b, 8, 0)
	defer s.Close()

	go func() {
		_, _ = a.Write([]byte("abcd"))
		_, _ = a.Write([]byte("wxyz"))
	}()

	first, err := s.Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	second, err := s.Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(first) != "abcd" || string(second) != "wxyz" {
		t.Errorf("reads = %q, %q", first, second)
	}
}

func newWebSocketPair(t *testing.T) (client, server *WebSocketStream) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade error: %v", err)
			return
		}
		accepted <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	select {
	case s := <-accepted:
		return NewWebSocketStream(c, time.Second), NewWebSocketStream(s, time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not accept")
		return nil, nil
	}
}

func TestWebSocketStream(t *testing.T) {
	client, server := newWebSocketPair(t)
	if client.Kind() != "websocket" {
		t.Errorf("Kind = %q", client.Kind())
	}
	if server.RemoteAddr() == "" {
		t.Error("empty RemoteAddr")
	}

	if err := client.Write([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, err := server.Read()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(got) != 2 || got[0] != 0x01 || got[1] != 0x02 {
		t.Errorf("Read = %x", got)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := server.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Read after peer close error = %v, want io.EOF", err)
	}
	_ = server.Close()
}

func TestWebSocketStreamRejectsText(t *testing.T) {
	client, server := newWebSocketPair(t)
	defer client.Close()
	defer server.Close()

	if err := client.conn.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatalf("WriteMessage error: %v", err)
	}
	if _, err := server.Read(); err == nil {
		t.Fatal("expected error for text message")
	}
}

func TestIsUnexpectedClose(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&websocket.CloseError{Code: websocket.CloseNormalClosure}, false},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, false},
		{&websocket.CloseError{Code: websocket.CloseProtocolError}, true},
		{io.EOF, false},
	}
	for _, tc := range tests {
		if got := IsUnexpectedClose(tc.err); got != tc.want {
			t.Errorf("IsUnexpectedClose(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
