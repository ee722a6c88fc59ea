package protocol

// Encoder is the byte sink for serialization. It appends to an internal
// buffer and never fails on its own; only value range checks can fail.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

// NewEncoderWithCap creates a new encoder with the specified initial capacity.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte.
// Note: This intentionally doesn't return error (unlike io.ByteWriter)
// because our buffer is unbounded and can always append.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends raw bytes.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteDUI appends v as DUI[n].
func (e *Encoder) WriteDUI(n int, v uint32) error {
	buf, err := AppendDUI(e.buf, n, v)
	if err != nil {
		return err
	}
	e.buf = buf
	return nil
}

// WriteLength appends a DUI[4] length, failing if n does not fit.
func (e *Encoder) WriteLength(n int) error {
	if n < 0 || uint64(n) > uint64(MaxDUI4) {
		return Errorf(CodeValueOutOfRange, "length %d exceeds DUI[4] max %d", n, MaxDUI4)
	}
	return e.WriteDUI(4, uint32(n))
}

// WriteString appends a DUI[4] length-prefixed UTF-8 string.
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteLength(len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return nil
}

// WriteLenBytes appends DUI[4] length-prefixed bytes.
func (e *Encoder) WriteLenBytes(b []byte) error {
	if err := e.WriteLength(len(b)); err != nil {
		return err
	}
	e.buf = append(e.buf, b...)
	return nil
}

// WriteUint16 appends a uint16 in big-endian byte order.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

// WriteUint32 appends a uint32 in big-endian byte order.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint64 appends a uint64 in big-endian byte order.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
