package variant

import "fmt"

// Integer is the set of Go types a Variant integer can be coerced to.
type Integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

func widthMask(t Type) uint64 {
	switch t.Width() {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	case 4:
		return 0xFFFFFFFF
	default:
		return ^uint64(0)
	}
}

// IntegerValue returns the stored bit pattern, masked to its declared width
// and reinterpreted as int64. It panics if v is not an integer.
//
// Int8(-128) yields 128, not -128: the source sign is not preserved.
func (v *Variant) IntegerValue() int64 {
	t := v.Type()
	if !t.IsInteger() {
		panic(fmt.Sprintf("variant: %s is not an integer value", t))
	}
	return int64(v.bits & widthMask(t))
}

// As coerces an integer variant to T by truncating or extending the masked
// 64-bit accumulator. There is no overflow check. It panics if v is not an
// integer.
func As[T Integer](v *Variant) T {
	return T(v.IntegerValue())
}
