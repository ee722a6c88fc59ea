package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/rmi"
	"github.com/vango-dev/photon/pkg/transport"
	"github.com/vango-dev/photon/pkg/variant"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(m *Metrics) *Config {
	cfg := DefaultConfig()
	cfg.HTTPAddress = ""
	cfg.HeartbeatInterval = 0
	cfg.HandshakeTimeout = 5 * time.Second
	cfg.WriteTimeout = time.Second
	cfg.Logger = quietLogger()
	cfg.Conn.Logger = quietLogger()
	cfg.Metrics = m
	return cfg
}

func testRegistry(m *Metrics) *rmi.Registry {
	opts := []rmi.Option{rmi.WithLogger(quietLogger())}
	if m != nil {
		opts = append(opts, rmi.WithObserver(m))
	}
	reg := rmi.NewRegistry(opts...)
	reg.MustRegister("echo", rmi.Func1(func(_ context.Context, s string) (string, error) {
		return s, nil
	}))
	return reg
}

// peer is the client end of a served connection, driven by hand.
type peer struct {
	t       *testing.T
	stream  transport.Stream
	conn    *conn.Conn
	replies []*conn.Invocation
}

func newPeer(t *testing.T, stream transport.Stream, requireHandshake bool) *peer {
	t.Helper()
	p := &peer{t: t, stream: stream}
	cfg := conn.DefaultConfig()
	cfg.RequireHandshake = requireHandshake
	cfg.Logger = quietLogger()
	p.conn = conn.New(conn.RoleClient, conn.ApplicationFunc(func(_ *conn.Conn, inv *conn.Invocation) bool {
		p.replies = append(p.replies, inv)
		return true
	}), cfg)
	return p
}

func (p *peer) flush() {
	p.t.Helper()
	if out := p.conn.TakeOutput(); len(out) > 0 {
		if err := p.stream.Write(out); err != nil {
			p.t.Fatalf("peer write error: %v", err)
		}
	}
}

// pumpUntil feeds inbound bytes to the peer until cond holds.
func (p *peer) pumpUntil(cond func() bool) error {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		_ = p.stream.SetReadDeadline(deadline)
		data, err := p.stream.Read()
		if err != nil {
			return err
		}
		if err := p.conn.OnInboundData(data); err != nil {
			return err
		}
		p.flush()
	}
	return nil
}

func (p *peer) handshake() {
	p.t.Helper()
	if err := p.conn.Start(); err != nil {
		p.t.Fatalf("Start error: %v", err)
	}
	p.flush()
	if err := p.pumpUntil(p.conn.Established); err != nil {
		p.t.Fatalf("handshake error: %v", err)
	}
}

func (p *peer) call(m *protocol.RemoteMethodInfo) (value, fault *variant.Variant) {
	p.t.Helper()
	id, err := p.conn.SendRemoteMethod(0, m)
	if err != nil {
		p.t.Fatalf("SendRemoteMethod error: %v", err)
	}
	p.flush()
	n := len(p.replies)
	if err := p.pumpUntil(func() bool { return len(p.replies) > n }); err != nil {
		p.t.Fatalf("waiting for reply: %v", err)
	}
	reply := p.replies[n]
	if reply.Header.MessageID != id {
		p.t.Fatalf("reply id = %d, want %d", reply.Header.MessageID, id)
	}
	value, fault, err = protocol.ParseReturn(reply.Method)
	if err != nil {
		p.t.Fatalf("ParseReturn error: %v", err)
	}
	return value, fault
}

// servePipe serves one side of a net.Pipe and returns the other side and
// a channel receiving ServeStream's result.
func servePipe(t *testing.T, srv *Server) (transport.Stream, <-chan error) {
	t.Helper()
	a, b := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- srv.ServeStream(transport.NewTCPStream(a, 0, time.Second))
	}()
	client := transport.NewTCPStream(b, 0, time.Second)
	t.Cleanup(func() { _ = client.Close() })
	return client, done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("ServeStream did not return")
		return nil
	}
}

func TestServeStreamCall(t *testing.T) {
	metrics := NewMetrics()
	srv := New(testRegistry(metrics), testConfig(metrics))
	stream, done := servePipe(t, srv)

	p := newPeer(t, stream, true)
	p.handshake()

	value, fault := p.call(protocol.NewRemoteMethod(variant.TypeString, "echo", variant.NewString("ping")))
	if !fault.IsNull() || value.Str() != "ping" {
		t.Errorf("echo = (%s, %s)", value, fault)
	}
	_, fault = p.call(protocol.NewRemoteMethod(variant.TypeString, "nope"))
	if fault.Str() != rmi.FaultMethodNotFound {
		t.Errorf("nope fault = %s", fault)
	}
	if srv.ConnCount() != 1 {
		t.Errorf("ConnCount = %d, want 1", srv.ConnCount())
	}

	if err := p.conn.Close(protocol.CloseNormal, ""); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	p.flush()
	if err := waitResult(t, done); err != nil {
		t.Errorf("ServeStream error = %v, want nil", err)
	}

	if got := testutil.ToFloat64(metrics.callsTotal.WithLabelValues("echo", "ok")); got != 1 {
		t.Errorf("echo calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.callsTotal.WithLabelValues("nope", "fault")); got != 1 {
		t.Errorf("nope faults = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.connectionsActive.WithLabelValues("tcp")); got != 0 {
		t.Errorf("active connections = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.stateTransitions.WithLabelValues("Established")); got != 1 {
		t.Errorf("established transitions = %v, want 1", got)
	}
}

func TestProtocolErrorClosesConnection(t *testing.T) {
	metrics := NewMetrics()
	srv := New(testRegistry(metrics), testConfig(metrics))
	stream, done := servePipe(t, srv)

	p := newPeer(t, stream, false)
	// Chunk header on unregistered channel 5.
	if err := stream.Write([]byte{0x05, 0x00, 0x01}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := p.pumpUntil(func() bool { return false }); !errors.Is(err, conn.ErrPeerClosed) {
		t.Errorf("peer error = %v, want ErrPeerClosed", err)
	}

	err := waitResult(t, done)
	if protocol.CodeOf(err) != protocol.CodeUnknownChannel {
		t.Errorf("ServeStream error = %v, want UnknownChannel", err)
	}
	if got := testutil.ToFloat64(metrics.protocolErrors.WithLabelValues("UnknownChannel")); got != 1 {
		t.Errorf("protocol errors = %v, want 1", got)
	}
}

func TestCallBeforeHandshakeFails(t *testing.T) {
	srv := New(testRegistry(nil), testConfig(nil))
	stream, done := servePipe(t, srv)

	p := newPeer(t, stream, false)
	if _, err := p.conn.SendRemoteMethod(0, protocol.NewRemoteMethod(variant.TypeString, "echo", variant.NewString("x"))); err != nil {
		t.Fatalf("SendRemoteMethod error: %v", err)
	}
	p.flush()
	_ = p.pumpUntil(func() bool { return false })

	if err := waitResult(t, done); protocol.CodeOf(err) != protocol.CodeUnexpectedMessage {
		t.Errorf("ServeStream error = %v, want UnexpectedMessage", err)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	cfg := testConfig(nil)
	cfg.HandshakeTimeout = 50 * time.Millisecond
	srv := New(testRegistry(nil), cfg)
	stream, done := servePipe(t, srv)

	p := newPeer(t, stream, false)
	if err := p.pumpUntil(func() bool { return false }); !errors.Is(err, conn.ErrPeerClosed) {
		t.Errorf("peer error = %v, want ErrPeerClosed", err)
	}
	if err := waitResult(t, done); err != nil {
		t.Errorf("ServeStream error = %v, want nil", err)
	}
}

func TestMaxConnections(t *testing.T) {
	metrics := NewMetrics()
	cfg := testConfig(metrics)
	cfg.MaxConnections = 1
	srv := New(testRegistry(metrics), cfg)

	stream, done := servePipe(t, srv)
	p := newPeer(t, stream, true)
	p.handshake()

	a, b := net.Pipe()
	defer b.Close()
	err := srv.ServeStream(transport.NewTCPStream(a, 0, time.Second))
	if !errors.Is(err, ErrTooManyConnections) {
		t.Errorf("second ServeStream error = %v, want ErrTooManyConnections", err)
	}
	if got := testutil.ToFloat64(metrics.connectionsRejected.WithLabelValues("tcp")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}

	_ = p.conn.Close(protocol.CloseNormal, "")
	p.flush()
	_ = waitResult(t, done)
}

func TestShutdownNotifiesPeers(t *testing.T) {
	srv := New(testRegistry(nil), testConfig(nil))
	stream, done := servePipe(t, srv)
	p := newPeer(t, stream, true)
	p.handshake()

	shutdownErr := make(chan error, 1)
	go func() {
		shutdownErr <- srv.Shutdown(context.Background())
	}()

	if err := p.pumpUntil(func() bool { return false }); !errors.Is(err, conn.ErrPeerClosed) {
		t.Errorf("peer error = %v, want ErrPeerClosed", err)
	}
	if err := waitResult(t, done); err != nil {
		t.Errorf("ServeStream error = %v", err)
	}
	select {
	case err := <-shutdownErr:
		if err != nil {
			t.Errorf("Shutdown error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	a, b := net.Pipe()
	defer b.Close()
	if err := srv.ServeStream(transport.NewTCPStream(a, 0, time.Second)); !errors.Is(err, ErrServerClosed) {
		t.Errorf("ServeStream after Shutdown error = %v", err)
	}
}

func TestShutdownDoesNotWaitForBusyHandler(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })

	reg := testRegistry(nil)
	reg.MustRegister("block", rmi.Func0(func(context.Context) (rmi.Void, error) {
		close(started)
		<-unblock
		return rmi.Void{}, nil
	}))
	srv := New(reg, testConfig(nil))
	stream, _ := servePipe(t, srv)
	p := newPeer(t, stream, true)
	p.handshake()

	if _, err := p.conn.SendRemoteMethod(0, protocol.NewRemoteMethod(variant.TypeVoid, "block")); err != nil {
		t.Fatalf("SendRemoteMethod error: %v", err)
	}
	p.flush()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("block was not invoked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	begin := time.Now()
	err := srv.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Errorf("Shutdown took %s with a 200ms deadline", elapsed)
	}
}

func TestServeTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	srv := New(testRegistry(nil), testConfig(nil))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	stream := transport.NewTCPStream(c, 0, time.Second)
	defer stream.Close()

	p := newPeer(t, stream, true)
	p.handshake()
	value, _ := p.call(protocol.NewRemoteMethod(variant.TypeString, "echo", variant.NewString("tcp")))
	if value.Str() != "tcp" {
		t.Errorf("echo = %s", value)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	select {
	case err := <-serveErr:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve error = %v, want ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestHTTPHandler(t *testing.T) {
	metrics := NewMetrics()
	srv := New(testRegistry(metrics), testConfig(metrics))
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(hs.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var body healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if body.Status != "ok" || body.Connections != 0 {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("websocket", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial error: %v", err)
		}
		stream := transport.NewWebSocketStream(c, time.Second)
		defer stream.Close()

		p := newPeer(t, stream, true)
		p.handshake()
		value, fault := p.call(protocol.NewRemoteMethod(variant.TypeString, "echo", variant.NewString("ws")))
		if !fault.IsNull() || value.Str() != "ws" {
			t.Errorf("echo = (%s, %s)", value, fault)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(hs.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET error: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		for _, want := range []string{
			`photon_connections_total{transport="websocket"} 1`,
			`photon_rmi_calls_total{method="echo",status="ok"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("metrics missing %q", want)
			}
		}
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{HeartbeatInterval: 0}).withDefaults()
	if cfg.Address != ":6666" || cfg.WebSocketPath != "/ws" || cfg.Conn == nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.HeartbeatInterval != 0 {
		t.Errorf("HeartbeatInterval = %v, want 0", cfg.HeartbeatInterval)
	}
	if cfg.HTTPAddress != "" {
		t.Errorf("HTTPAddress = %q, want empty", cfg.HTTPAddress)
	}

	orig := DefaultConfig()
	clone := orig.Clone()
	clone.Conn.Channels = append(clone.Conn.Channels, 4)
	if len(orig.Conn.Channels) != 0 {
		t.Error("Clone shares the connection config")
	}
}
