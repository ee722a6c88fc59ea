// Package protocol implements the photon binary wire format.
//
// A connection carries one byte stream split into chunks. Every chunk is
// tagged with a channel id, and chunks of one channel are concatenated into
// that channel's message stream. Messages start with a header that gives
// their type and payload length.
//
// # Wire Format
//
// Chunks:
//
//	┌──────────────────┬─────────────────┬───────────────────┬──────────────┐
//	│ ChannelID DUI[2] │ ChunkID DUI[4]  │ ChunkSize DUI[3]  │ payload      │
//	└──────────────────┴─────────────────┴───────────────────┴──────────────┘
//
// Messages, inside a channel's reassembled stream:
//
//	┌──────────────────┬──────────────────┬────────────────────┬───────────────┬─────────┐
//	│ MessageID DUI[2] │ Timestamp DUI[4] │ Reserved:3 Type:5  │ Length DUI[4] │ payload │
//	└──────────────────┴──────────────────┴────────────────────┴───────────────┴─────────┘
//
// Control and RemoteMethodInvoke payloads are a RemoteMethodInfo:
//
//	[ReturnType: u8][Name: DUI[4] length + UTF-8][Params: DUI[4] count + values]
//
// # Encoding
//
//   - DUI[N]: bounded variable-length unsigned integer of at most N bytes.
//     The first N-1 bytes carry 7 bits and a continuation flag; byte N
//     carries 8 bits.
//   - Values: a type tag byte followed by a payload. Strings and byte arrays
//     are DUI[4] length-prefixed, arrays are DUI[4] count-prefixed, integers
//     are fixed-width big-endian.
//
// # Errors
//
// Decoding distinguishes two outcomes. ErrInsufficientData means the window
// ended early and the caller should wait for more bytes. Any *Error is a
// protocol error and the connection must be closed.
//
// # Usage
//
// Encoding a call:
//
//	m := protocol.NewRemoteMethod(variant.TypeUint32, "blob.put",
//	    variant.NewString("k"), variant.NewByteArray(data))
//	payload, err := m.Encode()
//
// Decoding a value:
//
//	v, n, err := protocol.DecodeVariant(buf)
//	if protocol.IsInsufficient(err) {
//	    // wait for more bytes
//	}
package protocol
