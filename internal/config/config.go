package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/photon/internal/errors"
	"github.com/vango-dev/photon/pkg/blobstore"
	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "photon.json"

	// DefaultAddress is the default TCP listen address.
	DefaultAddress = ":6666"

	// DefaultHTTPAddress is the default WebSocket and metrics address.
	DefaultHTTPAddress = ":6667"
)

// Blob backends.
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Config represents the complete photon.json configuration.
type Config struct {
	// Server contains listener and connection lifecycle settings.
	Server ServerConfig `json:"server"`

	// Protocol contains framing and decoding settings.
	Protocol ProtocolConfig `json:"protocol"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics"`

	// Blob configures the blob.* remote methods.
	Blob BlobConfig `json:"blob"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains server settings. Durations use time.ParseDuration
// syntax, e.g. "30s".
type ServerConfig struct {
	Address string `json:"address,omitempty"`

	// HTTPAddress serves WebSocket, metrics and health endpoints. An empty
	// string disables the HTTP side.
	HTTPAddress string `json:"httpAddress"`

	WebSocketPath     string `json:"webSocketPath,omitempty"`
	MaxConnections    int    `json:"maxConnections"`
	ReadBufferSize    int    `json:"readBufferSize,omitempty"`
	HandshakeTimeout  string `json:"handshakeTimeout,omitempty"`
	IdleTimeout       string `json:"idleTimeout,omitempty"`
	WriteTimeout      string `json:"writeTimeout,omitempty"`
	HeartbeatInterval string `json:"heartbeatInterval,omitempty"`
	ShutdownTimeout   string `json:"shutdownTimeout,omitempty"`
}

// ProtocolConfig contains protocol settings.
type ProtocolConfig struct {
	MaxChunkSize     int      `json:"maxChunkSize,omitempty"`
	MaxMessageSize   int      `json:"maxMessageSize,omitempty"`
	Versions         []uint16 `json:"versions,omitempty"`
	Channels         []uint16 `json:"channels,omitempty"`
	RequireHandshake bool     `json:"requireHandshake"`
	MaxAllocation    int      `json:"maxAllocation,omitempty"`
	MaxCollection    int      `json:"maxCollection,omitempty"`
	MaxDepth         int      `json:"maxDepth,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
	Path      string `json:"path,omitempty"`
}

// BlobConfig contains blob store settings.
type BlobConfig struct {
	Enabled bool `json:"enabled"`

	// Backend is memory or s3.
	Backend string `json:"backend,omitempty"`

	Bucket          string `json:"bucket,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"accessKeyID,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	UsePathStyle    bool   `json:"usePathStyle,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           DefaultAddress,
			HTTPAddress:       DefaultHTTPAddress,
			WebSocketPath:     "/ws",
			MaxConnections:    1024,
			ReadBufferSize:    32 * 1024,
			HandshakeTimeout:  "10s",
			IdleTimeout:       "5m",
			WriteTimeout:      "10s",
			HeartbeatInterval: "30s",
			ShutdownTimeout:   "30s",
		},
		Protocol: ProtocolConfig{
			MaxChunkSize:     protocol.DefaultChunkSize,
			MaxMessageSize:   conn.DefaultMaxMessageSize,
			RequireHandshake: true,
			MaxAllocation:    protocol.DefaultMaxAllocation,
			MaxCollection:    protocol.DefaultMaxCollection,
			MaxDepth:         protocol.DefaultMaxDepth,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "photon",
			Path:      "/metrics",
		},
		Blob: BlobConfig{
			Enabled: true,
			Backend: BackendMemory,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for photon.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. Fields missing
// from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ConfigNotFound).
				WithDetail("No photon.json found at " + path)
		}
		return nil, errors.New(errors.ConfigReadFailed).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.ConfigInvalidJSON).
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that photon.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault loads photon.json from dir when it exists and returns the
// defaults otherwise.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.ConfigReadFailed).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.ConfigReadFailed).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields. HTTPAddress and
// numeric zero limits that mean "disabled" are left alone.
func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Server.WebSocketPath == "" {
		c.Server.WebSocketPath = d.Server.WebSocketPath
	}
	if c.Server.ReadBufferSize <= 0 {
		c.Server.ReadBufferSize = d.Server.ReadBufferSize
	}
	if c.Server.HandshakeTimeout == "" {
		c.Server.HandshakeTimeout = d.Server.HandshakeTimeout
	}
	if c.Server.IdleTimeout == "" {
		c.Server.IdleTimeout = d.Server.IdleTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Protocol.MaxChunkSize <= 0 {
		c.Protocol.MaxChunkSize = d.Protocol.MaxChunkSize
	}
	if c.Protocol.MaxMessageSize <= 0 {
		c.Protocol.MaxMessageSize = d.Protocol.MaxMessageSize
	}
	if c.Protocol.MaxAllocation <= 0 {
		c.Protocol.MaxAllocation = d.Protocol.MaxAllocation
	}
	if c.Protocol.MaxCollection <= 0 {
		c.Protocol.MaxCollection = d.Protocol.MaxCollection
	}
	if c.Protocol.MaxDepth <= 0 {
		c.Protocol.MaxDepth = d.Protocol.MaxDepth
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}

	if c.Blob.Backend == "" {
		c.Blob.Backend = d.Blob.Backend
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateAddress("server.address", c.Server.Address); err != nil {
		return err
	}
	if c.Server.HTTPAddress != "" {
		if err := validateAddress("server.httpAddress", c.Server.HTTPAddress); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(c.Server.WebSocketPath, "/") {
		return invalidValue("server.webSocketPath", "must start with /")
	}
	if c.Server.MaxConnections < 0 {
		return invalidValue("server.maxConnections", "must not be negative")
	}

	durations := []struct {
		field string
		value string
	}{
		{"server.handshakeTimeout", c.Server.HandshakeTimeout},
		{"server.idleTimeout", c.Server.IdleTimeout},
		{"server.writeTimeout", c.Server.WriteTimeout},
		{"server.heartbeatInterval", c.Server.HeartbeatInterval},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return invalidValue(d.field, fmt.Sprintf("%q is not a duration", d.value))
		}
		if v < 0 {
			return invalidValue(d.field, "must not be negative")
		}
	}

	if c.Protocol.MaxChunkSize > int(protocol.MaxChunkSize) {
		return invalidValue("protocol.maxChunkSize", fmt.Sprintf("must be at most %d", protocol.MaxChunkSize))
	}
	for _, ch := range c.Protocol.Channels {
		if ch == 0 || uint32(ch) > protocol.MaxChannelID {
			return invalidValue("protocol.channels", fmt.Sprintf("channel %d outside 1..%d", ch, protocol.MaxChannelID))
		}
	}
	for _, v := range c.Protocol.Versions {
		if v == 0 {
			return invalidValue("protocol.versions", "version 0 is reserved")
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return errors.New(errors.ConfigInvalidLog).WithField("log.level").
			WithDetailf("%q is not a log level", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New(errors.ConfigInvalidLog).WithField("log.format").
			WithDetailf("%q is not a log format", c.Log.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalidValue("metrics.path", "must start with /")
	}

	if c.Blob.Enabled {
		switch c.Blob.Backend {
		case BackendMemory:
		case BackendS3:
			if c.Blob.Bucket == "" {
				return invalidValue("blob.bucket", "required for the s3 backend")
			}
			if c.Blob.Region == "" {
				return invalidValue("blob.region", "required for the s3 backend")
			}
		default:
			return errors.New(errors.ConfigInvalidBackend).WithField("blob.backend").
				WithDetailf("unknown backend %q", c.Blob.Backend)
		}
	}
	return nil
}

func validateAddress(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.New(errors.ConfigInvalidAddress).WithField(field).
			WithDetailf("%q: %v", addr, err)
	}
	return nil
}

func invalidValue(field, detail string) error {
	return errors.New(errors.ConfigInvalidValue).WithField(field).WithDetail(detail)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// ConnConfig returns the per-connection settings.
func (c *Config) ConnConfig() *conn.Config {
	cfg := conn.DefaultConfig()
	if len(c.Protocol.Versions) > 0 {
		cfg.Versions = make([]protocol.Version, len(c.Protocol.Versions))
		for i, v := range c.Protocol.Versions {
			cfg.Versions[i] = protocol.Version(v)
		}
	}
	cfg.RequireHandshake = c.Protocol.RequireHandshake
	cfg.Channels = append([]uint16(nil), c.Protocol.Channels...)
	cfg.MaxChunkSize = c.Protocol.MaxChunkSize
	cfg.MaxMessageSize = c.Protocol.MaxMessageSize
	cfg.Limits = protocol.Limits{
		MaxAllocation: c.Protocol.MaxAllocation,
		MaxCollection: c.Protocol.MaxCollection,
		MaxDepth:      c.Protocol.MaxDepth,
	}
	return cfg
}

// ServerConfig returns the server settings. Metrics and Logger are left for
// the caller. Unparseable durations fall back to the defaults; call Validate
// first to report them.
func (c *Config) ServerConfig() *server.Config {
	cfg := server.DefaultConfig()
	cfg.Address = c.Server.Address
	cfg.HTTPAddress = c.Server.HTTPAddress
	cfg.WebSocketPath = c.Server.WebSocketPath
	cfg.MetricsPath = c.Metrics.Path
	cfg.MaxConnections = c.Server.MaxConnections
	cfg.ReadBufferSize = c.Server.ReadBufferSize
	cfg.HandshakeTimeout = parseDuration(c.Server.HandshakeTimeout, cfg.HandshakeTimeout)
	cfg.IdleTimeout = parseDuration(c.Server.IdleTimeout, cfg.IdleTimeout)
	cfg.WriteTimeout = parseDuration(c.Server.WriteTimeout, cfg.WriteTimeout)
	cfg.HeartbeatInterval = parseDuration(c.Server.HeartbeatInterval, 0)
	cfg.ShutdownTimeout = parseDuration(c.Server.ShutdownTimeout, cfg.ShutdownTimeout)
	cfg.Conn = c.ConnConfig()
	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// BlobStore builds the configured store. It returns nil when blobs are
// disabled.
func (c *Config) BlobStore() (blobstore.Store, error) {
	if !c.Blob.Enabled {
		return nil, nil
	}
	switch c.Blob.Backend {
	case BackendMemory:
		return blobstore.NewMemoryStore(), nil
	case BackendS3:
		client := blobstore.NewS3Client(blobstore.S3Config{
			Region:          c.Blob.Region,
			Endpoint:        c.Blob.Endpoint,
			UsePathStyle:    c.Blob.UsePathStyle,
			AccessKeyID:     c.Blob.AccessKeyID,
			SecretAccessKey: c.Blob.SecretAccessKey,
		})
		return blobstore.NewS3Store(client, c.Blob.Bucket, c.Blob.Prefix), nil
	default:
		return nil, errors.New(errors.ConfigInvalidBackend).WithField("blob.backend").
			WithDetailf("unknown backend %q", c.Blob.Backend)
	}
}
