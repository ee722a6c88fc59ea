package variant

import "bytes"

// Equal reports whether a and b are structurally equal. Types must match
// exactly; Null always equals Null, and a nil element equals Null.
func Equal(a, b *Variant) bool {
	if a == b {
		return true
	}
	ta, tb := a.Type(), b.Type()
	if ta != tb {
		return false
	}
	switch ta {
	case TypeNull:
		return true
	case TypeByteArray:
		return bytes.Equal(a.bytes, b.bytes)
	case TypeString:
		return a.str == b.str
	case TypeArray:
		return a.arr.Equal(b.arr)
	case TypeKVArray:
		return a.kv.Equal(b.kv)
	default:
		return a.bits == b.bits
	}
}

// Equal reports whether a holds the same elements as other.
func (a Array) Equal(other Array) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if !Equal(a[i], other[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether kv holds the same entries, in the same order, as other.
func (kv KVArray) Equal(other KVArray) bool {
	if len(kv) != len(other) {
		return false
	}
	for i := range kv {
		if kv[i].Key != other[i].Key || !Equal(kv[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}
