package conn

import (
	"time"

	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/variant"
)

// Start begins the handshake. It queues hello for a client in StateInitial
// and does nothing otherwise.
func (c *Conn) Start() error {
	if c.role != RoleClient || c.state != StateInitial {
		return nil
	}
	if err := c.sendControl(protocol.NewHello()); err != nil {
		return err
	}
	c.setState(StateWaitingForHelloReply)
	return nil
}

// SendRemoteMethod queues m as an RMI message on channel and returns the
// message id it was assigned.
func (c *Conn) SendRemoteMethod(channel uint16, m *protocol.RemoteMethodInfo) (uint16, error) {
	if c.cfg.RequireHandshake && c.state != StateEstablished {
		return 0, protocol.Errorf(protocol.CodeUnexpectedMessage, "cannot call %q before handshake (state %s)", m.Name, c.state)
	}
	id := c.allocMessageID()
	if err := c.sendMethod(channel, protocol.MessageRMI, id, m); err != nil {
		return 0, err
	}
	return id, nil
}

// SendMedia queues a Video or Audio payload on channel.
func (c *Conn) SendMedia(channel uint16, t protocol.MessageType, payload []byte) (uint16, error) {
	if t != protocol.MessageVideo && t != protocol.MessageAudio {
		return 0, protocol.Errorf(protocol.CodeInvalidMessageType, "%s is not a media type", t)
	}
	if c.cfg.RequireHandshake && c.state != StateEstablished {
		return 0, protocol.Errorf(protocol.CodeUnexpectedMessage, "cannot send %s before handshake (state %s)", t, c.state)
	}
	id := c.allocMessageID()
	if err := c.send(channel, t, id, payload); err != nil {
		return 0, err
	}
	return id, nil
}

// Reply queues the result of inv. The reply carries the invocation's
// message id on the invocation's channel.
func (c *Conn) Reply(inv *Invocation, value, fault *variant.Variant) error {
	return c.sendMethod(inv.ChannelID, protocol.MessageRMI, inv.Header.MessageID, protocol.NewReturn(value, fault))
}

// Ping queues a ping carrying the current Unix time in milliseconds.
func (c *Conn) Ping() error {
	if c.state != StateEstablished {
		return protocol.Errorf(protocol.CodeUnexpectedMessage, "cannot ping before handshake (state %s)", c.state)
	}
	return c.sendControl(protocol.NewPing(uint64(time.Now().UnixMilli())))
}

// Close queues a close notification. The caller flushes the output and
// then closes the transport.
func (c *Conn) Close(reason protocol.CloseReason, message string) error {
	return c.sendControl(protocol.NewClose(reason, message))
}

// TakeOutput returns and clears the bytes queued for sending.
func (c *Conn) TakeOutput() []byte {
	out := c.output
	c.output = nil
	if len(out) > 0 {
		c.cfg.Metrics.BytesSent(len(out))
	}
	return out
}

// HasOutput reports whether bytes are queued for sending.
func (c *Conn) HasOutput() bool {
	return len(c.output) > 0
}

func (c *Conn) sendControl(m *protocol.RemoteMethodInfo) error {
	return c.sendMethod(controlChannel, protocol.MessageControl, c.allocMessageID(), m)
}

func (c *Conn) sendMethod(channel uint16, t protocol.MessageType, id uint16, m *protocol.RemoteMethodInfo) error {
	payload, err := m.Encode()
	if err != nil {
		return err
	}
	return c.send(channel, t, id, payload)
}

func (c *Conn) send(channel uint16, t protocol.MessageType, id uint16, payload []byte) error {
	if !c.HasChannel(channel) {
		return protocol.Errorf(protocol.CodeUnknownChannel, "send on unregistered channel %d", channel)
	}
	msg, err := protocol.EncodeMessage(protocol.MessageHeader{
		MessageID: id,
		Timestamp: c.timestamp(),
		Type:      t,
	}, payload)
	if err != nil {
		return err
	}
	out, err := c.chunker.AppendChunks(c.output, channel, msg)
	if err != nil {
		return err
	}
	c.output = out
	c.cfg.Metrics.MessageSent(t)
	return nil
}

// allocMessageID returns the next outbound message id, wrapping after
// protocol.MaxMessageID.
// NextMessageID returns the id the next queued message will carry.
func (c *Conn) NextMessageID() uint16 {
	return c.nextMessageID
}

func (c *Conn) allocMessageID() uint16 {
	id := c.nextMessageID
	if uint32(id) >= protocol.MaxMessageID {
		c.nextMessageID = 0
	} else {
		c.nextMessageID++
	}
	return id
}

// timestamp returns milliseconds since the connection was created, wrapped
// to the DUI[4] range.
func (c *Conn) timestamp() uint32 {
	ms := uint64(time.Since(c.started).Milliseconds())
	return uint32(ms % (uint64(protocol.MaxTimestamp) + 1))
}
