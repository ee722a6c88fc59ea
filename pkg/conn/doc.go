// Package conn implements the per-connection protocol state machine.
//
// A Conn owns the channel table and reassembly buffers of one connection.
// Inbound bytes are handed to OnInboundData in whatever pieces the transport
// delivers them; complete chunks are moved into their channel's buffer and
// complete messages are dispatched by type:
//
//   - Control messages drive the handshake and ping/pong/close
//   - RemoteMethodInvoke messages go to the Application
//   - Video and Audio messages go to the Application if it implements
//     MediaReceiver, and are dropped otherwise
//
// Outbound messages are chunked into an output buffer drained by TakeOutput.
//
// # Handshake
//
// All handshake messages travel on channel 0:
//
//	client: Initial ──hello──▶ WaitingForHelloReply ──versionList──▶ WaitingForVersionSelected ──▶ Established
//	server: WaitingForHello ──helloReply──▶ WaitingForVersionList ──versionSelected──▶ Established
//
// # Concurrency
//
// A Conn performs no I/O and starts no goroutines. It must only be used from
// one goroutine at a time; independent connections share nothing.
package conn
