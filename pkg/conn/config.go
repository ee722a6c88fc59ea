package conn

import (
	"log/slog"

	"github.com/vango-dev/photon/pkg/protocol"
)

// DefaultMaxMessageSize is the default largest message payload accepted (8MB).
const DefaultMaxMessageSize = 8 * 1024 * 1024

// Config holds configuration for one connection.
type Config struct {
	// Versions lists the protocol versions offered or accepted during the
	// handshake. Default: protocol.SupportedVersions().
	Versions []protocol.Version

	// RequireHandshake makes RMI and media messages fail until the handshake
	// completes. When false both sides start Established.
	// Default: true, but only through DefaultConfig. A zero Config such as
	// &Config{} leaves it false and skips the handshake, so start from
	// DefaultConfig when the handshake is wanted.
	RequireHandshake bool

	// Channels lists additional channel ids to register. Channel 0 always
	// exists.
	Channels []uint16

	// MaxChunkSize is the payload size outbound messages are split at.
	// Default: protocol.DefaultChunkSize.
	MaxChunkSize int

	// MaxMessageSize is the largest inbound message payload.
	// Default: 8MB.
	MaxMessageSize int

	// Limits bounds decoded values inside messages.
	// Default: protocol.DefaultLimits().
	Limits protocol.Limits

	// Logger receives connection events.
	// Default: slog.Default() with component=conn.
	Logger *slog.Logger

	// Metrics records traffic and error counters. Default: no-op.
	Metrics Recorder

	// OnStateChange is called after every handshake state transition.
	OnStateChange func(c *Conn, from, to State)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Versions:         protocol.SupportedVersions(),
		RequireHandshake: true,
		MaxChunkSize:     protocol.DefaultChunkSize,
		MaxMessageSize:   DefaultMaxMessageSize,
		Limits:           protocol.DefaultLimits(),
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Versions = append([]protocol.Version(nil), c.Versions...)
	clone.Channels = append([]uint16(nil), c.Channels...)
	return &clone
}

// withDefaults fills unset fields.
func (c *Config) withDefaults() *Config {
	out := c.Clone()
	if out == nil {
		out = DefaultConfig()
	}
	if len(out.Versions) == 0 {
		out.Versions = protocol.SupportedVersions()
	}
	if out.MaxChunkSize <= 0 {
		out.MaxChunkSize = protocol.DefaultChunkSize
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = DefaultMaxMessageSize
	}
	if out.Logger == nil {
		out.Logger = slog.Default().With("component", "conn")
	}
	if out.Metrics == nil {
		out.Metrics = nopRecorder{}
	}
	return out
}
