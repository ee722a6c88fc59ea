package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/transport"
)

// Config holds configuration for the server.
type Config struct {
	// Address is the TCP address protocol clients connect to.
	// Default: ":6666".
	Address string

	// HTTPAddress serves the WebSocket endpoint, metrics and health checks.
	// Empty disables the HTTP side.
	// Default: ":6667".
	HTTPAddress string

	// WebSocketPath is the route upgraded to protocol streams.
	// Default: "/ws".
	WebSocketPath string

	// MetricsPath is the route serving Prometheus metrics when Metrics is set.
	// Default: "/metrics".
	MetricsPath string

	// MaxConnections caps concurrent connections across both transports.
	// 0 means unlimited. Default: 1024.
	MaxConnections int

	// ReadBufferSize is the TCP read size.
	// Default: 32KB.
	ReadBufferSize int

	// Timeouts

	// HandshakeTimeout closes connections that have not completed the
	// handshake in time. Default: 10 seconds.
	HandshakeTimeout time.Duration

	// IdleTimeout closes established connections that send nothing.
	// Default: 5 minutes.
	IdleTimeout time.Duration

	// WriteTimeout bounds each write to a peer.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between server pings on established
	// connections. 0 disables heartbeats. Default: 30 seconds.
	HeartbeatInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown in Run.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// CheckOrigin validates the Origin header of WebSocket upgrades.
	// Default: allow all origins.
	CheckOrigin func(r *http.Request) bool

	// Conn is the template for every connection's state machine. Its Logger
	// and Metrics are replaced per connection.
	Conn *conn.Config

	// Metrics records server and protocol metrics. Nil disables metrics.
	Metrics *Metrics

	// Logger is the server logger.
	// Default: slog.Default() with component=server.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":6666",
		HTTPAddress:       ":6667",
		WebSocketPath:     "/ws",
		MetricsPath:       "/metrics",
		MaxConnections:    1024,
		ReadBufferSize:    transport.DefaultReadBufferSize,
		HandshakeTimeout:  10 * time.Second,
		IdleTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		CheckOrigin:       func(*http.Request) bool { return true },
		Conn:              conn.DefaultConfig(),
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

// withDefaults fills unset fields. Durations left at zero take their
// defaults, except HeartbeatInterval where zero disables heartbeats.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	out := c.Clone()
	if out == nil {
		out = d
	}
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.WebSocketPath == "" {
		out.WebSocketPath = d.WebSocketPath
	}
	if out.MetricsPath == "" {
		out.MetricsPath = d.MetricsPath
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.Conn == nil {
		out.Conn = d.Conn
	}
	if out.Logger == nil {
		out.Logger = slog.Default().With("component", "server")
	}
	return out
}
