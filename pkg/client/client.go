// Package client connects to a photon server, performs the handshake and
// makes synchronous remote method calls.
//
//	c, err := client.Dial(ctx, "localhost:6666", nil)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	v, err := c.Call(ctx, "blob.get", variant.TypeByteArray, variant.NewString("key"))
//
// A Client is safe for concurrent use; replies are matched to calls by
// message id.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/rmi"
	"github.com/vango-dev/photon/pkg/transport"
	"github.com/vango-dev/photon/pkg/variant"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("client: connection closed")

// Config holds client configuration.
type Config struct {
	// Conn configures the connection state machine.
	// Default: conn.DefaultConfig().
	Conn *conn.Config

	// HandshakeTimeout bounds Dial and NewClient.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each write to the server.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadBufferSize is the TCP read size.
	// Default: 32KB.
	ReadBufferSize int

	// Application receives calls initiated by the server. Without one they
	// are answered with a "Method not found" fault.
	Application conn.Application

	// Logger is the client logger.
	// Default: slog.Default() with component=client.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Conn:             conn.DefaultConfig(),
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadBufferSize:   transport.DefaultReadBufferSize,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Conn = c.Conn.Clone()
	return &clone
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	out := c.Clone()
	if out == nil {
		out = d
	}
	if out.Conn == nil {
		out.Conn = d.Conn
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.Logger == nil {
		out.Logger = slog.Default().With("component", "client")
	}
	return out
}

// Client is a connection to a photon server.
type Client struct {
	cfg    *Config
	stream transport.Stream
	logger *slog.Logger

	mu      sync.Mutex // guards conn, pending and err
	conn    *conn.Conn
	pending map[uint16]chan rmi.Result
	err     error

	writeMu     sync.Mutex
	established chan struct{}
	estOnce     sync.Once
	done        chan struct{}
	doneOnce    sync.Once
}

// Dial connects to a server over TCP and completes the handshake.
func Dial(ctx context.Context, address string, cfg *Config) (*Client, error) {
	cfg = cfg.withDefaults()
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", address, err)
	}
	return NewClient(ctx, transport.NewTCPStream(nc, cfg.ReadBufferSize, cfg.WriteTimeout), cfg)
}

// DialWebSocket connects to a server's WebSocket endpoint, such as
// "ws://localhost:6667/ws", and completes the handshake.
func DialWebSocket(ctx context.Context, url string, cfg *Config) (*Client, error) {
	cfg = cfg.withDefaults()
	wc, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	return NewClient(ctx, transport.NewWebSocketStream(wc, cfg.WriteTimeout), cfg)
}

// NewClient runs the client side of the protocol over stream and waits for
// the handshake to complete. The stream is closed if it fails.
func NewClient(ctx context.Context, stream transport.Stream, cfg *Config) (*Client, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With("remote", stream.RemoteAddr(), "transport", stream.Kind())

	c := &Client{
		cfg:         cfg,
		stream:      stream,
		logger:      logger,
		pending:     make(map[uint16]chan rmi.Result),
		established: make(chan struct{}),
		done:        make(chan struct{}),
	}
	connCfg := cfg.Conn.Clone()
	connCfg.Logger = logger
	c.conn = conn.New(conn.RoleClient, c, connCfg)

	c.mu.Lock()
	err := c.conn.Start()
	out := c.conn.TakeOutput()
	if c.conn.Established() {
		c.markEstablished()
	}
	c.mu.Unlock()
	if err == nil {
		err = c.write(out)
	}
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	go c.readLoop()

	timer := time.NewTimer(cfg.HandshakeTimeout)
	defer timer.Stop()
	select {
	case <-c.established:
		logger.Debug("connected", "version", c.Version())
		return c, nil
	case <-c.done:
		return nil, fmt.Errorf("client: handshake: %w", c.Err())
	case <-ctx.Done():
		c.shutdown(ctx.Err())
		return nil, ctx.Err()
	case <-timer.C:
		err := fmt.Errorf("client: handshake timed out after %s", cfg.HandshakeTimeout)
		c.shutdown(err)
		return nil, err
	}
}

// Version returns the negotiated protocol version.
func (c *Client) Version() protocol.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Version()
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call invokes method with params and waits for its result. A faulted call
// returns a *rmi.FaultError. Void methods return a Null value.
func (c *Client) Call(ctx context.Context, method string, ret variant.Type, params ...*variant.Variant) (*variant.Variant, error) {
	res, err := c.Invoke(ctx, protocol.NewRemoteMethod(ret, method, params...))
	if err != nil {
		return nil, err
	}
	if err := res.Err(method); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Invoke sends m on channel 0 and waits for the result. The error is
// non-nil only if no result arrived.
func (c *Client) Invoke(ctx context.Context, m *protocol.RemoteMethodInfo) (rmi.Result, error) {
	ch := make(chan rmi.Result, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return rmi.Result{}, err
	}
	if next := c.conn.NextMessageID(); c.pending[next] != nil {
		c.mu.Unlock()
		return rmi.Result{}, fmt.Errorf("client: message id %d still in flight", next)
	}
	id, err := c.conn.SendRemoteMethod(0, m)
	if err != nil {
		c.mu.Unlock()
		return rmi.Result{}, err
	}
	c.pending[id] = ch
	out := c.conn.TakeOutput()
	c.mu.Unlock()

	if err := c.write(out); err != nil {
		c.forget(id)
		c.shutdown(err)
		return rmi.Result{}, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-c.done:
		c.forget(id)
		return rmi.Result{}, c.Err()
	case <-ctx.Done():
		c.forget(id)
		return rmi.Result{}, ctx.Err()
	}
}

func (c *Client) forget(id uint16) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// OnRemoteMethodInvoke implements conn.Application. It runs inside
// OnInboundData with c.mu held.
func (c *Client) OnRemoteMethodInvoke(cn *conn.Conn, inv *conn.Invocation) bool {
	if !protocol.IsReturn(inv.Method) {
		if c.cfg.Application != nil {
			return c.cfg.Application.OnRemoteMethodInvoke(cn, inv)
		}
		c.logger.Debug("server call without application", "method", inv.Method.Name)
		return cn.Reply(inv, nil, variant.NewString(rmi.FaultMethodNotFound)) == nil
	}

	value, fault, err := protocol.ParseReturn(inv.Method)
	if err != nil {
		c.logger.Warn("malformed return", "message_id", inv.Header.MessageID, "error", err)
		return false
	}
	ch, ok := c.pending[inv.Header.MessageID]
	if !ok {
		c.logger.Debug("return for unknown call", "message_id", inv.Header.MessageID)
		return true
	}
	delete(c.pending, inv.Header.MessageID)
	ch <- rmi.Result{Value: value, Fault: fault}
	return true
}

func (c *Client) readLoop() {
	for {
		data, err := c.stream.Read()
		if err != nil {
			c.shutdown(err)
			return
		}

		c.mu.Lock()
		err = c.conn.OnInboundData(data)
		out := c.conn.TakeOutput()
		if c.conn.Established() {
			c.markEstablished()
		}
		c.mu.Unlock()

		if werr := c.write(out); werr != nil {
			c.shutdown(werr)
			return
		}
		if err != nil {
			c.shutdown(err)
			return
		}
	}
}

func (c *Client) markEstablished() {
	c.estOnce.Do(func() { close(c.established) })
}

func (c *Client) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.Write(p)
}

// shutdown records why the connection ended, closes the stream and wakes
// every waiting call.
func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	if c.err == nil {
		switch {
		case errors.Is(cause, io.EOF), errors.Is(cause, transport.ErrClosed):
			c.err = ErrClosed
		default:
			c.err = cause
		}
		if !errors.Is(c.err, ErrClosed) && !errors.Is(c.err, conn.ErrPeerClosed) {
			c.logger.Warn("connection failed", "error", c.err)
		}
	}
	c.mu.Unlock()

	_ = c.stream.Close()
	c.doneOnce.Do(func() { close(c.done) })
}

// Close sends a close notification and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil
	}
	err := c.conn.Close(protocol.CloseNormal, "")
	out := c.conn.TakeOutput()
	c.mu.Unlock()
	if err == nil {
		_ = c.write(out)
	}
	c.shutdown(ErrClosed)
	return nil
}
