package conn

import "github.com/vango-dev/photon/pkg/protocol"

// Recorder receives connection traffic counts. Implementations must be safe
// for concurrent use when shared between connections.
type Recorder interface {
	BytesReceived(n int)
	BytesSent(n int)
	ChunkReceived(channel uint16, size int)
	MessageReceived(t protocol.MessageType)
	MessageSent(t protocol.MessageType)
	ProtocolError(code protocol.ErrorCode)
	StateChanged(to State)
}

type nopRecorder struct{}

func (nopRecorder) BytesReceived(int)                    {}
func (nopRecorder) BytesSent(int)                        {}
func (nopRecorder) ChunkReceived(uint16, int)            {}
func (nopRecorder) MessageReceived(protocol.MessageType) {}
func (nopRecorder) MessageSent(protocol.MessageType)     {}
func (nopRecorder) ProtocolError(protocol.ErrorCode)     {}
func (nopRecorder) StateChanged(State)                   {}
