package protocol

// DUI[N] is a bounded variable-length unsigned integer of at most N bytes.
// Each of the first N-1 bytes carries 7 bits with the high bit as the
// continuation flag; byte N, when reached, carries a full 8 bits.
const (
	MaxDUI1 uint32 = 255
	MaxDUI2 uint32 = 32767
	MaxDUI3 uint32 = 4194303
	MaxDUI4 uint32 = 536870911
)

// DUIMax returns the largest value DUI[n] can represent, or 0 if n is not
// one of 1..4.
func DUIMax(n int) uint32 {
	switch n {
	case 1:
		return MaxDUI1
	case 2:
		return MaxDUI2
	case 3:
		return MaxDUI3
	case 4:
		return MaxDUI4
	default:
		return 0
	}
}

func checkDUIWidth(n int) {
	if n < 1 || n > 4 {
		panic("protocol: DUI width must be 1..4")
	}
}

// AppendDUI appends v encoded as DUI[n] to dst.
// Returns a ValueOutOfRange protocol error if v > DUIMax(n).
func AppendDUI(dst []byte, n int, v uint32) ([]byte, error) {
	checkDUIWidth(n)
	if v > DUIMax(n) {
		return dst, Errorf(CodeValueOutOfRange, "%d exceeds DUI[%d] max %d", v, n, DUIMax(n))
	}
	for i := 1; i < n; i++ {
		if v < 0x80 {
			return append(dst, byte(v)), nil
		}
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v)), nil
}

// DecodeDUI decodes a DUI[n] from the front of buf.
// Returns (value, bytesRead, nil), or ErrInsufficientData if buf ends first.
func DecodeDUI(buf []byte, n int) (uint32, int, error) {
	checkDUIWidth(n)
	var v uint32
	for i := 0; i < n; i++ {
		if i >= len(buf) {
			return 0, 0, ErrInsufficientData
		}
		b := buf[i]
		if i == n-1 {
			v |= uint32(b) << (7 * uint(i))
			return v, i + 1, nil
		}
		v |= uint32(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return v, n, nil
}

// DUILen returns the number of bytes DUI[n] uses to encode v.
// The result is undefined if v > DUIMax(n).
func DUILen(n int, v uint32) int {
	checkDUIWidth(n)
	for i := 1; i < n; i++ {
		if v < 0x80 {
			return i
		}
		v >>= 7
	}
	return n
}
