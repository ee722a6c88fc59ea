package conn

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/vango-dev/photon/pkg/protocol"
)

// ErrPeerClosed is returned by OnInboundData after the peer sent a close
// control message. The caller should close the transport.
var ErrPeerClosed = errors.New("conn: peer closed the connection")

// Invocation is one inbound remote method call.
type Invocation struct {
	ChannelID uint16
	Header    protocol.MessageHeader
	Method    *protocol.RemoteMethodInfo
}

// Application receives decoded remote method calls.
type Application interface {
	// OnRemoteMethodInvoke handles inv. Returning false rejects the call,
	// which fails the connection.
	OnRemoteMethodInvoke(c *Conn, inv *Invocation) bool
}

// ApplicationFunc adapts a function to Application.
type ApplicationFunc func(c *Conn, inv *Invocation) bool

// OnRemoteMethodInvoke calls f(c, inv).
func (f ApplicationFunc) OnRemoteMethodInvoke(c *Conn, inv *Invocation) bool {
	return f(c, inv)
}

// MediaReceiver is implemented by applications that accept Video and Audio
// messages. The payload is only valid for the duration of the call.
type MediaReceiver interface {
	OnMediaMessage(c *Conn, channelID uint16, h protocol.MessageHeader, payload []byte) bool
}

// channelContext is the reassembly state of one channel.
type channelContext struct {
	id     uint16
	header protocol.MessageHeader // Length 0 means no header pending
	buf    []byte
}

// Conn is the protocol state machine of one connection. It performs no I/O:
// inbound bytes are handed to OnInboundData and outbound bytes are collected
// with TakeOutput.
//
// A Conn is not safe for concurrent use.
type Conn struct {
	role   Role
	state  State
	cfg    *Config
	app    Application
	logger *slog.Logger

	// Inbound
	reading     readingState
	chunkHeader protocol.ChunkHeader
	input       []byte
	channels    map[uint16]*channelContext
	err         error

	// Outbound
	output        []byte
	chunker       *protocol.Chunker
	nextMessageID uint16
	started       time.Time

	version    protocol.Version
	peerClosed bool
	lastPong   uint64
}

// New creates a connection state machine. app may be nil for connections
// that never receive calls. A nil cfg uses DefaultConfig().
func New(role Role, app Application, cfg *Config) *Conn {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	c := &Conn{
		role:     role,
		cfg:      cfg,
		app:      app,
		logger:   cfg.Logger.With("role", role.String()),
		channels: make(map[uint16]*channelContext),
		chunker:  protocol.NewChunker(cfg.MaxChunkSize),
		started:  time.Now(),
	}
	c.channels[0] = &channelContext{id: 0}
	for _, id := range cfg.Channels {
		_ = c.RegisterChannel(id)
	}

	switch {
	case !cfg.RequireHandshake:
		c.state = StateEstablished
	case role == RoleServer:
		c.state = StateWaitingForHello
	default:
		c.state = StateInitial
	}
	return c
}

// Role returns the side of the connection.
func (c *Conn) Role() Role {
	return c.role
}

// State returns the handshake state.
func (c *Conn) State() State {
	return c.state
}

// Established reports whether the handshake has completed.
func (c *Conn) Established() bool {
	return c.state == StateEstablished
}

// Version returns the negotiated protocol version, or 0 before the
// handshake completes.
func (c *Conn) Version() protocol.Version {
	return c.version
}

// Logger returns the connection's logger.
func (c *Conn) Logger() *slog.Logger {
	return c.logger
}

// Err returns the error that failed the connection, if any.
func (c *Conn) Err() error {
	return c.err
}

// LastPong returns the timestamp carried by the last pong received.
func (c *Conn) LastPong() uint64 {
	return c.lastPong
}

// RegisterChannel makes id available for inbound chunks. Registering an
// existing channel is a no-op.
func (c *Conn) RegisterChannel(id uint16) error {
	if uint32(id) > protocol.MaxChannelID {
		return protocol.Errorf(protocol.CodeValueOutOfRange, "channel id %d exceeds %d", id, protocol.MaxChannelID)
	}
	if _, ok := c.channels[id]; !ok {
		c.channels[id] = &channelContext{id: id}
	}
	return nil
}

// HasChannel reports whether id is registered.
func (c *Conn) HasChannel(id uint16) bool {
	_, ok := c.channels[id]
	return ok
}

// Channels returns the registered channel ids in ascending order.
func (c *Conn) Channels() []uint16 {
	ids := make([]uint16, 0, len(c.channels))
	for id := range c.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OnInboundData consumes newly received bytes. Incomplete chunks and
// messages are retained until more bytes arrive.
//
// A non-nil error is final: either a protocol error or ErrPeerClosed. The
// caller must close the connection, and every later call returns the same
// error.
func (c *Conn) OnInboundData(data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.cfg.Metrics.BytesReceived(len(data))
	c.input = append(c.input, data...)

	updated, err := c.readChunks()
	if err != nil {
		return c.fail(err)
	}

	for _, id := range updated {
		if err := c.readMessages(c.channels[id]); err != nil {
			return c.fail(err)
		}
		if c.peerClosed {
			c.err = ErrPeerClosed
			return c.err
		}
	}
	if len(c.input) == 0 {
		c.input = nil
	}
	return nil
}

func (c *Conn) fail(err error) error {
	c.err = err
	c.cfg.Metrics.ProtocolError(protocol.CodeOf(err))
	c.logger.Warn("protocol error",
		"error", err,
		"kind", protocol.CodeOf(err).String(),
		"state", c.state.String())
	return err
}

// readChunks moves every complete chunk from the input into its channel
// buffer and returns the updated channel ids in ascending order.
func (c *Conn) readChunks() ([]uint16, error) {
	seen := make(map[uint16]bool)
	var updated []uint16

	for len(c.input) > 0 {
		switch c.reading {
		case expectingChunkHeader:
			h, n, err := protocol.DecodeChunkHeader(c.input)
			if protocol.IsInsufficient(err) {
				return sortIDs(updated), nil
			}
			if err != nil {
				return nil, err
			}
			if _, ok := c.channels[h.ChannelID]; !ok {
				return nil, protocol.Errorf(protocol.CodeUnknownChannel, "chunk %d on channel %d", h.ChunkID, h.ChannelID)
			}
			c.input = c.input[n:]
			c.chunkHeader = *h
			if h.ChunkSize > 0 {
				c.reading = expectingChunkData
			}

		case expectingChunkData:
			size := int(c.chunkHeader.ChunkSize)
			if len(c.input) < size {
				return sortIDs(updated), nil
			}
			ch := c.channels[c.chunkHeader.ChannelID]
			ch.buf = append(ch.buf, c.input[:size]...)
			c.input = c.input[size:]
			c.reading = expectingChunkHeader
			c.cfg.Metrics.ChunkReceived(ch.id, size)

			if !seen[ch.id] {
				seen[ch.id] = true
				updated = append(updated, ch.id)
			}
		}
	}
	return sortIDs(updated), nil
}

func sortIDs(ids []uint16) []uint16 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// readMessages dispatches every complete message buffered on ch.
func (c *Conn) readMessages(ch *channelContext) error {
	for len(ch.buf) > 0 {
		if ch.header.Length == 0 {
			h, n, err := protocol.DecodeMessageHeader(ch.buf)
			if protocol.IsInsufficient(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if int64(h.Length) > int64(c.cfg.MaxMessageSize) {
				return protocol.Errorf(protocol.CodeAllocationTooLarge,
					"message %d length %d exceeds limit %d", h.MessageID, h.Length, c.cfg.MaxMessageSize)
			}
			ch.header = *h
			ch.buf = ch.buf[n:]
		}

		length := int(ch.header.Length)
		if len(ch.buf) < length {
			return nil
		}
		h := ch.header
		payload := ch.buf[:length]
		ch.buf = ch.buf[length:]
		ch.header = protocol.MessageHeader{}

		if err := c.dispatch(ch.id, h, payload); err != nil {
			return err
		}
		if c.peerClosed {
			return nil
		}
	}
	ch.buf = nil
	return nil
}

// dispatch routes one complete message by type.
func (c *Conn) dispatch(channel uint16, h protocol.MessageHeader, payload []byte) error {
	c.cfg.Metrics.MessageReceived(h.Type)

	switch h.Type {
	case protocol.MessageControl, protocol.MessageRMI:
		m, err := protocol.DecodeRemoteMethodExact(payload, c.cfg.Limits)
		if err != nil {
			return err
		}
		if h.Type == protocol.MessageControl {
			return c.onControl(channel, h, m)
		}
		return c.onRemoteMethod(channel, h, m)

	default:
		return c.onMedia(channel, h, payload)
	}
}

func (c *Conn) onRemoteMethod(channel uint16, h protocol.MessageHeader, m *protocol.RemoteMethodInfo) error {
	if c.cfg.RequireHandshake && c.state != StateEstablished {
		return protocol.Errorf(protocol.CodeUnexpectedMessage, "remote method %q before handshake (state %s)", m.Name, c.state)
	}
	if c.app == nil {
		return protocol.Errorf(protocol.CodeCallRejected, "no application for %q", m.Name)
	}
	inv := &Invocation{ChannelID: channel, Header: h, Method: m}
	if !c.app.OnRemoteMethodInvoke(c, inv) {
		return protocol.Errorf(protocol.CodeCallRejected, "application rejected %q", m.Name)
	}
	return nil
}

func (c *Conn) onMedia(channel uint16, h protocol.MessageHeader, payload []byte) error {
	if c.cfg.RequireHandshake && c.state != StateEstablished {
		return protocol.Errorf(protocol.CodeUnexpectedMessage, "%s message before handshake (state %s)", h.Type, c.state)
	}
	mr, ok := c.app.(MediaReceiver)
	if !ok {
		c.logger.Debug("media message dropped", "type", h.Type.String(), "channel", channel, "bytes", len(payload))
		return nil
	}
	if !mr.OnMediaMessage(c, channel, h, payload) {
		return protocol.Errorf(protocol.CodeCallRejected, "application rejected %s message %d", h.Type, h.MessageID)
	}
	return nil
}

func (c *Conn) setState(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.cfg.Metrics.StateChanged(to)
	c.logger.Debug("handshake state", "from", from.String(), "to", to.String())
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(c, from, to)
	}
}
