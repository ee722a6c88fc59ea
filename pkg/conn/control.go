package conn

import (
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/variant"
)

// controlChannel carries every control message.
const controlChannel uint16 = 0

// onControl advances the handshake or handles an established-state control
// message.
func (c *Conn) onControl(channel uint16, h protocol.MessageHeader, m *protocol.RemoteMethodInfo) error {
	if channel != controlChannel {
		return protocol.Errorf(protocol.CodeUnexpectedMessage, "control message %q on channel %d", m.Name, channel)
	}
	if m.Name == protocol.MethodClose {
		return c.onClose(m)
	}

	switch c.state {
	case StateWaitingForHello:
		if !m.MatchPrototype(variant.TypeVoid, protocol.MethodHello) {
			return handshakeFailed(c.state, m)
		}
		if err := c.sendControl(protocol.NewHelloReply()); err != nil {
			return err
		}
		c.setState(StateWaitingForVersionList)

	case StateWaitingForVersionList:
		offered, err := protocol.ParseVersionList(m)
		if err != nil {
			return err
		}
		v, ok := protocol.SelectVersion(c.cfg.Versions, offered)
		if !ok {
			return protocol.Errorf(protocol.CodeHandshakeFailed, "no common version in %v (have %v)", offered, c.cfg.Versions)
		}
		if err := c.sendControl(protocol.NewVersionSelected(v)); err != nil {
			return err
		}
		c.version = v
		c.setState(StateEstablished)

	case StateWaitingForHelloReply:
		if !m.MatchPrototype(variant.TypeVoid, protocol.MethodHelloReply) {
			return handshakeFailed(c.state, m)
		}
		if err := c.sendControl(protocol.NewVersionList(c.cfg.Versions)); err != nil {
			return err
		}
		c.setState(StateWaitingForVersionSelected)

	case StateWaitingForVersionSelected:
		v, err := protocol.ParseVersionSelected(m)
		if err != nil {
			return err
		}
		if !protocol.ContainsVersion(c.cfg.Versions, v) {
			return protocol.Errorf(protocol.CodeHandshakeFailed, "server selected version %d, offered %v", v, c.cfg.Versions)
		}
		c.version = v
		c.setState(StateEstablished)

	case StateEstablished:
		return c.onEstablishedControl(m)

	default:
		return handshakeFailed(c.state, m)
	}
	return nil
}

func (c *Conn) onEstablishedControl(m *protocol.RemoteMethodInfo) error {
	switch m.Name {
	case protocol.MethodPing:
		ts, err := protocol.ParsePingPong(m)
		if err != nil {
			return err
		}
		return c.sendControl(protocol.NewPong(ts))

	case protocol.MethodPong:
		ts, err := protocol.ParsePingPong(m)
		if err != nil {
			return err
		}
		c.lastPong = ts
		return nil

	default:
		return protocol.Errorf(protocol.CodeUnexpectedMessage, "unknown control method %q", m.Name)
	}
}

func (c *Conn) onClose(m *protocol.RemoteMethodInfo) error {
	reason, msg, err := protocol.ParseClose(m)
	if err != nil {
		return err
	}
	c.logger.Debug("peer closed", "reason", reason.String(), "message", msg)
	c.peerClosed = true
	return nil
}

func handshakeFailed(state State, m *protocol.RemoteMethodInfo) error {
	return protocol.Errorf(protocol.CodeHandshakeFailed, "unexpected %q in state %s", m.Name, state)
}
