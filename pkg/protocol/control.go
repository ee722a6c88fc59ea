package protocol

import (
	"github.com/vango-dev/photon/pkg/variant"
)

// Control methods available once the handshake is established.
const (
	MethodPing  = "photon.control.ping"
	MethodPong  = "photon.control.pong"
	MethodClose = "photon.control.close"
)

// MethodReturn carries the result of an RMI call back to the caller. It is
// sent as an RMI message with the messageId of the call it answers.
const MethodReturn = "photon.return"

// CloseReason indicates why a connection is being closed.
type CloseReason uint8

const (
	CloseNormal         CloseReason = 0x00 // Normal closure
	CloseGoingAway      CloseReason = 0x01 // Client/server going away
	CloseServerShutdown CloseReason = 0x02 // Server shutting down
	CloseProtocolError  CloseReason = 0x03 // Peer sent malformed data
	CloseError          CloseReason = 0x04 // Error occurred
)

// String returns the string representation of the close reason.
func (cr CloseReason) String() string {
	switch cr {
	case CloseNormal:
		return "Normal"
	case CloseGoingAway:
		return "GoingAway"
	case CloseServerShutdown:
		return "ServerShutdown"
	case CloseProtocolError:
		return "ProtocolError"
	case CloseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// NewPing creates a ping carrying a millisecond timestamp.
func NewPing(timestamp uint64) *RemoteMethodInfo {
	return NewRemoteMethod(variant.TypeVoid, MethodPing, variant.NewUint64(timestamp))
}

// NewPong creates the answer to a ping, echoing its timestamp.
func NewPong(timestamp uint64) *RemoteMethodInfo {
	return NewRemoteMethod(variant.TypeVoid, MethodPong, variant.NewUint64(timestamp))
}

// NewClose creates a close notification.
func NewClose(reason CloseReason, message string) *RemoteMethodInfo {
	return NewRemoteMethod(variant.TypeVoid, MethodClose, variant.NewUint8(uint8(reason)), variant.NewString(message))
}

// ParsePingPong extracts the timestamp of a ping or pong.
func ParsePingPong(m *RemoteMethodInfo) (uint64, error) {
	if !m.MatchPrototype(variant.TypeVoid, MethodPing, variant.TypeUint64) &&
		!m.MatchPrototype(variant.TypeVoid, MethodPong, variant.TypeUint64) {
		return 0, Errorf(CodeUnexpectedMessage, "malformed %s", m.Name)
	}
	return m.Param(0).Uint64(), nil
}

// ParseClose extracts the reason and message of a close notification.
func ParseClose(m *RemoteMethodInfo) (CloseReason, string, error) {
	if !m.MatchPrototype(variant.TypeVoid, MethodClose, variant.TypeUint8, variant.TypeString) {
		return 0, "", Errorf(CodeUnexpectedMessage, "malformed %s", m.Name)
	}
	return CloseReason(m.Param(0).Uint8()), m.Param(1).Str(), nil
}

// NewReturn creates a call result message. Exactly one of value and fault
// is expected to be non-Null; a Void result has both Null.
func NewReturn(value, fault *variant.Variant) *RemoteMethodInfo {
	if value == nil {
		value = variant.Null()
	}
	if fault == nil {
		fault = variant.Null()
	}
	return NewRemoteMethod(variant.TypeVoid, MethodReturn, value, fault)
}

// IsReturn reports whether m is a call result message.
func IsReturn(m *RemoteMethodInfo) bool {
	return m.Name == MethodReturn
}

// ParseReturn extracts the value and fault of a call result message.
func ParseReturn(m *RemoteMethodInfo) (value, fault *variant.Variant, err error) {
	if m.Name != MethodReturn || m.ReturnType != variant.TypeVoid || len(m.Params) != 2 {
		return nil, nil, Errorf(CodeUnexpectedMessage, "malformed %s", m.Name)
	}
	value, fault = m.Param(0), m.Param(1)
	if value == nil {
		value = variant.Null()
	}
	if fault == nil {
		fault = variant.Null()
	}
	return value, fault, nil
}
