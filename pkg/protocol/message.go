package protocol

// MessageType identifies how a message payload is interpreted.
type MessageType uint8

const (
	MessageControl MessageType = 0 // Connection control (handshake, ping, close)
	MessageRMI     MessageType = 1 // Remote method invoke
	MessageVideo   MessageType = 2 // Video media payload
	MessageAudio   MessageType = 3 // Audio media payload
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageControl:
		return "Control"
	case MessageRMI:
		return "RemoteMethodInvoke"
	case MessageVideo:
		return "Video"
	case MessageAudio:
		return "Audio"
	default:
		return "Unknown"
	}
}

// Valid reports whether mt is one of the defined message types.
func (mt MessageType) Valid() bool {
	return mt <= MessageAudio
}

// Message header constants.
const (
	// MaxMessageID is the largest message id; outbound ids wrap after it.
	MaxMessageID = MaxDUI2

	// MaxTimestamp is the largest timestamp in milliseconds.
	MaxTimestamp = MaxDUI4

	// MaxMessageLength is the largest payload a message header can announce.
	MaxMessageLength = MaxDUI4

	// MaxMessageHeaderSize is the worst-case encoded message header size.
	MaxMessageHeaderSize = 2 + 4 + 1 + 4
)

// MessageHeader starts every message within a channel's byte stream.
//
// Wire format:
//
//	┌──────────────────┬──────────────────┬────────────────────┬───────────────────┐
//	│ MessageID DUI[2] │ Timestamp DUI[4] │ Reserved:3 Type:5  │ Length DUI[4]     │
//	└──────────────────┴──────────────────┴────────────────────┴───────────────────┘
type MessageHeader struct {
	MessageID uint16
	Timestamp uint32 // milliseconds
	Reserved  uint8  // 3 bits
	Type      MessageType
	Length    uint32
}

// Encode encodes the message header to bytes.
func (h *MessageHeader) Encode() ([]byte, error) {
	e := NewEncoderWithCap(MaxMessageHeaderSize)
	if err := h.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo encodes the message header using the provided encoder.
func (h *MessageHeader) EncodeTo(e *Encoder) error {
	if h.Reserved > 0x07 {
		return Errorf(CodeValueOutOfRange, "reserved bits %d exceed 3 bits", h.Reserved)
	}
	if h.Type > 0x1F {
		return Errorf(CodeValueOutOfRange, "message type %d exceeds 5 bits", h.Type)
	}
	if err := e.WriteDUI(2, uint32(h.MessageID)); err != nil {
		return err
	}
	if err := e.WriteDUI(4, h.Timestamp); err != nil {
		return err
	}
	e.WriteByte(h.Reserved<<5 | byte(h.Type))
	return e.WriteDUI(4, h.Length)
}

// DecodeMessageHeader decodes a message header from the front of data.
// Returns the header and the number of bytes consumed.
func DecodeMessageHeader(data []byte) (*MessageHeader, int, error) {
	d := NewDecoder(data)
	h, err := DecodeMessageHeaderFrom(d)
	if err != nil {
		return nil, 0, err
	}
	return h, d.Position(), nil
}

// DecodeMessageHeaderFrom decodes a message header from the decoder.
// Unknown message types and zero lengths are protocol errors.
func DecodeMessageHeaderFrom(d *Decoder) (*MessageHeader, error) {
	id, err := d.ReadDUI(2)
	if err != nil {
		return nil, err
	}
	ts, err := d.ReadDUI(4)
	if err != nil {
		return nil, err
	}
	b, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	length, err := d.ReadDUI(4)
	if err != nil {
		return nil, err
	}

	h := &MessageHeader{
		MessageID: uint16(id),
		Timestamp: ts,
		Reserved:  b >> 5,
		Type:      MessageType(b & 0x1F),
		Length:    length,
	}
	if !h.Type.Valid() {
		return nil, Errorf(CodeInvalidMessageType, "message type %d", h.Type)
	}
	if h.Length == 0 {
		return nil, Errorf(CodeEmptyMessage, "message %d has zero length", h.MessageID)
	}
	return h, nil
}

// EncodeMessage returns h followed by payload, with h.Length set from the
// payload size. An empty payload is rejected since receivers treat a zero
// length as malformed.
func EncodeMessage(h MessageHeader, payload []byte) ([]byte, error) {
	e := NewEncoderWithCap(MaxMessageHeaderSize + len(payload))
	if err := EncodeMessageTo(e, h, payload); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeMessageTo writes h and payload using the provided encoder.
func EncodeMessageTo(e *Encoder, h MessageHeader, payload []byte) error {
	if len(payload) == 0 {
		return Errorf(CodeEmptyMessage, "message %d has no payload", h.MessageID)
	}
	if uint64(len(payload)) > uint64(MaxMessageLength) {
		return Errorf(CodeValueOutOfRange, "message length %d exceeds %d", len(payload), MaxMessageLength)
	}
	h.Length = uint32(len(payload))
	if err := h.EncodeTo(e); err != nil {
		return err
	}
	e.WriteBytes(payload)
	return nil
}
