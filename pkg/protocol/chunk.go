package protocol

// Chunk constants.
const (
	// MaxChannelID is the largest channel id a chunk header can carry.
	MaxChannelID = MaxDUI2

	// MaxChunkID is the largest chunk id; the outbound counter wraps to 0 after it.
	MaxChunkID = MaxDUI4

	// MaxChunkSize is the largest chunk payload a header can announce.
	MaxChunkSize = MaxDUI3

	// DefaultChunkSize is the payload size outbound messages are split at.
	DefaultChunkSize = 16 * 1024

	// MaxChunkHeaderSize is the worst-case encoded chunk header size.
	MaxChunkHeaderSize = 2 + 4 + 3
)

// ChunkHeader precedes every chunk on the wire.
//
// Wire format:
//
//	┌──────────────────┬─────────────────┬───────────────────┐
//	│ ChannelID DUI[2] │ ChunkID DUI[4]  │ ChunkSize DUI[3]  │
//	└──────────────────┴─────────────────┴───────────────────┘
//	│ ChunkSize payload bytes                                │
//	└────────────────────────────────────────────────────────┘
//
// ChunkID is carried opaquely; receivers never validate it.
type ChunkHeader struct {
	ChannelID uint16
	ChunkID   uint32
	ChunkSize uint32
}

// Encode encodes the chunk header to bytes.
func (h *ChunkHeader) Encode() ([]byte, error) {
	e := NewEncoderWithCap(MaxChunkHeaderSize)
	if err := h.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo encodes the chunk header using the provided encoder.
func (h *ChunkHeader) EncodeTo(e *Encoder) error {
	if err := e.WriteDUI(2, uint32(h.ChannelID)); err != nil {
		return err
	}
	if err := e.WriteDUI(4, h.ChunkID); err != nil {
		return err
	}
	return e.WriteDUI(3, h.ChunkSize)
}

// DecodeChunkHeader decodes a chunk header from the front of data.
// Returns the header and the number of bytes consumed.
func DecodeChunkHeader(data []byte) (*ChunkHeader, int, error) {
	d := NewDecoder(data)
	h, err := DecodeChunkHeaderFrom(d)
	if err != nil {
		return nil, 0, err
	}
	return h, d.Position(), nil
}

// DecodeChunkHeaderFrom decodes a chunk header from the decoder.
func DecodeChunkHeaderFrom(d *Decoder) (*ChunkHeader, error) {
	channel, err := d.ReadDUI(2)
	if err != nil {
		return nil, err
	}
	id, err := d.ReadDUI(4)
	if err != nil {
		return nil, err
	}
	size, err := d.ReadDUI(3)
	if err != nil {
		return nil, err
	}
	return &ChunkHeader{ChannelID: uint16(channel), ChunkID: id, ChunkSize: size}, nil
}

// Chunker splits encoded messages into chunks. It owns the outbound chunk id
// counter of one connection and is not safe for concurrent use.
type Chunker struct {
	maxSize int
	nextID  uint32
}

// NewChunker creates a chunker that emits payloads of at most maxSize bytes.
// A non-positive maxSize selects DefaultChunkSize; values above MaxChunkSize
// are capped.
func NewChunker(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if maxSize > int(MaxChunkSize) {
		maxSize = int(MaxChunkSize)
	}
	return &Chunker{maxSize: maxSize}
}

// MaxSize returns the maximum chunk payload size.
func (c *Chunker) MaxSize() int {
	return c.maxSize
}

// NextID returns the chunk id the next chunk will carry.
func (c *Chunker) NextID() uint32 {
	return c.nextID
}

// AppendChunks appends msg to dst as one or more chunks on channel.
// An empty msg produces no chunks.
func (c *Chunker) AppendChunks(dst []byte, channel uint16, msg []byte) ([]byte, error) {
	if uint32(channel) > MaxChannelID {
		return dst, Errorf(CodeValueOutOfRange, "channel id %d exceeds %d", channel, MaxChannelID)
	}
	for len(msg) > 0 {
		n := len(msg)
		if n > c.maxSize {
			n = c.maxSize
		}
		h := ChunkHeader{ChannelID: channel, ChunkID: c.nextID, ChunkSize: uint32(n)}
		var err error
		if dst, err = AppendDUI(dst, 2, uint32(h.ChannelID)); err != nil {
			return dst, err
		}
		if dst, err = AppendDUI(dst, 4, h.ChunkID); err != nil {
			return dst, err
		}
		if dst, err = AppendDUI(dst, 3, h.ChunkSize); err != nil {
			return dst, err
		}
		dst = append(dst, msg[:n]...)
		msg = msg[n:]

		if c.nextID == MaxChunkID {
			c.nextID = 0
		} else {
			c.nextID++
		}
	}
	return dst, nil
}
