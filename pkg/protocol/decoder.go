package protocol

// Decoder is a cursor over a byte window. Every read either consumes the
// requested bytes or returns ErrInsufficientData without advancing past the
// end, so callers can discard a failed decode and retry later with more
// bytes appended to the same window.
type Decoder struct {
	buf    []byte
	pos    int
	limits Limits
	depth  depthContext
}

// NewDecoder creates a new decoder over buf with the default limits.
func NewDecoder(buf []byte) *Decoder {
	return NewDecoderWithLimits(buf, DefaultLimits())
}

// NewDecoderWithLimits creates a decoder with custom limits. Zero fields
// take their defaults.
func NewDecoderWithLimits(buf []byte, limits Limits) *Decoder {
	limits = limits.withDefaults()
	return &Decoder{
		buf:    buf,
		limits: limits,
		depth:  depthContext{max: limits.MaxDepth},
	}
}

// Limits returns the limits in effect.
func (d *Decoder) Limits() Limits {
	return d.limits
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

// Skip advances the position by n bytes.
func (d *Decoder) Skip(n int) error {
	if n > d.Remaining() {
		return ErrInsufficientData
	}
	d.pos += n
	return nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrInsufficientData
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes and returns them.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n > d.Remaining() {
		return nil, ErrInsufficientData
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadDUI reads a DUI[n] value.
func (d *Decoder) ReadDUI(n int) (uint32, error) {
	v, read, err := DecodeDUI(d.buf[d.pos:], n)
	if err != nil {
		return 0, err
	}
	d.pos += read
	return v, nil
}

// readLength reads a DUI[4] byte length and checks it against the
// allocation limit before the remaining window.
func (d *Decoder) readLength() (int, error) {
	n, err := d.ReadDUI(4)
	if err != nil {
		return 0, err
	}
	if int(n) > d.limits.MaxAllocation {
		return 0, Errorf(CodeAllocationTooLarge, "length %d exceeds limit %d", n, d.limits.MaxAllocation)
	}
	if int(n) > d.Remaining() {
		return 0, ErrInsufficientData
	}
	return int(n), nil
}

// ReadCount reads a DUI[4] element count. Every element occupies at least
// one byte, so a count larger than the remaining window is insufficient.
func (d *Decoder) ReadCount() (int, error) {
	n, err := d.ReadDUI(4)
	if err != nil {
		return 0, err
	}
	if int(n) > d.limits.MaxCollection {
		return 0, Errorf(CodeAllocationTooLarge, "count %d exceeds limit %d", n, d.limits.MaxCollection)
	}
	if int(n) > d.Remaining() {
		return 0, ErrInsufficientData
	}
	return int(n), nil
}

// ReadString reads a DUI[4] length-prefixed UTF-8 string.
func (d *Decoder) ReadString() (string, error) {
	n, err := d.readLength()
	if err != nil {
		return "", err
	}
	s := string(d.buf[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

// ReadLenBytes reads DUI[4] length-prefixed bytes into a fresh slice.
func (d *Decoder) ReadLenBytes() ([]byte, error) {
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+n])
	d.pos += n
	return b, nil
}

// ReadUint16 reads a big-endian uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadUint32 reads a big-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadUint64 reads a big-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7]), nil
}
