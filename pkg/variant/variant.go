package variant

import "fmt"

// Array is an ordered sequence of optional Variant references.
// A nil element is treated as Null.
type Array []*Variant

// Entry is one key/value pair of a KVArray.
type Entry struct {
	Key   string
	Value *Variant
}

// KVArray is an ordered sequence of entries. Duplicate keys are permitted and
// order is significant.
type KVArray []Entry

// Variant is a tagged union over the protocol value types.
// The zero value is Null.
type Variant struct {
	typ Type

	// Exactly one of these is meaningful, selected by typ.
	bytes []byte
	str   string
	arr   Array
	kv    KVArray
	bits  uint64 // integer bit pattern, masked to the declared width
}

// Null returns a new Null variant.
func Null() *Variant { return &Variant{} }

// NewByteArray returns a ByteArray variant that takes ownership of b.
func NewByteArray(b []byte) *Variant {
	v := &Variant{}
	v.SetByteArray(b)
	return v
}

// NewString returns a String variant.
func NewString(s string) *Variant {
	v := &Variant{}
	v.SetString(s)
	return v
}

// NewArray returns an Array variant holding elems. The elements are shared,
// not copied.
func NewArray(elems ...*Variant) *Variant {
	v := &Variant{}
	v.SetArray(Array(elems))
	return v
}

// NewArrayOf returns an Array variant that takes ownership of a.
func NewArrayOf(a Array) *Variant {
	v := &Variant{}
	v.SetArray(a)
	return v
}

// NewKVArray returns a KVArray variant that takes ownership of kv.
func NewKVArray(kv KVArray) *Variant {
	v := &Variant{}
	v.SetKVArray(kv)
	return v
}

// NewInt8 returns an Int8 variant.
func NewInt8(n int8) *Variant { return newInt(TypeInt8, uint64(uint8(n))) }

// NewUint8 returns a Uint8 variant.
func NewUint8(n uint8) *Variant { return newInt(TypeUint8, uint64(n)) }

// NewInt16 returns an Int16 variant.
func NewInt16(n int16) *Variant { return newInt(TypeInt16, uint64(uint16(n))) }

// NewUint16 returns a Uint16 variant.
func NewUint16(n uint16) *Variant { return newInt(TypeUint16, uint64(n)) }

// NewInt32 returns an Int32 variant.
func NewInt32(n int32) *Variant { return newInt(TypeInt32, uint64(uint32(n))) }

// NewUint32 returns a Uint32 variant.
func NewUint32(n uint32) *Variant { return newInt(TypeUint32, uint64(n)) }

// NewInt64 returns an Int64 variant.
func NewInt64(n int64) *Variant { return newInt(TypeInt64, uint64(n)) }

// NewUint64 returns a Uint64 variant.
func NewUint64(n uint64) *Variant { return newInt(TypeUint64, n) }

func newInt(t Type, bits uint64) *Variant {
	v := &Variant{}
	v.SetInteger(t, bits)
	return v
}

// Type returns the active type. A nil Variant is Null.
func (v *Variant) Type() Type {
	if v == nil || v.typ == 0 {
		return TypeNull
	}
	return v.typ
}

// Is reports whether the active type is t.
func (v *Variant) Is(t Type) bool {
	return v.Type() == t
}

// IsNull reports whether v is Null (or nil).
func (v *Variant) IsNull() bool {
	return v.Type() == TypeNull
}

// reset discards the current representation.
func (v *Variant) reset(t Type) {
	*v = Variant{typ: t}
}

// SetNull discards the payload and makes v Null.
func (v *Variant) SetNull() { v.reset(0) }

// SetByteArray replaces the payload with b, taking ownership of it.
func (v *Variant) SetByteArray(b []byte) {
	v.reset(TypeByteArray)
	v.bytes = b
}

// SetString replaces the payload with s.
func (v *Variant) SetString(s string) {
	v.reset(TypeString)
	v.str = s
}

// SetArray replaces the payload with a, taking ownership of the slice.
func (v *Variant) SetArray(a Array) {
	v.reset(TypeArray)
	v.arr = a
}

// SetKVArray replaces the payload with kv, taking ownership of the slice.
func (v *Variant) SetKVArray(kv KVArray) {
	v.reset(TypeKVArray)
	v.kv = kv
}

// SetInteger replaces the payload with an integer of type t built from the
// low-order bits of bits. It panics if t is not an integer type.
func (v *Variant) SetInteger(t Type, bits uint64) {
	if !t.IsInteger() {
		panic(fmt.Sprintf("variant: SetInteger with non-integer type %s", t))
	}
	v.reset(t)
	v.bits = bits & widthMask(t)
}

// Set replaces v with a copy of other. Container elements stay shared.
func (v *Variant) Set(other *Variant) {
	if other == nil {
		v.SetNull()
		return
	}
	if other == v {
		return
	}
	*v = *other
}

// Clone returns a shallow copy of v: containers get a new backing slice but
// elements remain shared.
func (v *Variant) Clone() *Variant {
	c := &Variant{}
	if v == nil {
		return c
	}
	*c = *v
	switch v.typ {
	case TypeByteArray:
		c.bytes = append([]byte(nil), v.bytes...)
	case TypeArray:
		c.arr = append(Array(nil), v.arr...)
	case TypeKVArray:
		c.kv = append(KVArray(nil), v.kv...)
	}
	return c
}

func (v *Variant) must(t Type) {
	if got := v.Type(); got != t {
		panic(fmt.Sprintf("variant: type mismatch: have %s, want %s", got, t))
	}
}

// Bytes returns the ByteArray payload. It panics if v is not a ByteArray.
func (v *Variant) Bytes() []byte {
	v.must(TypeByteArray)
	return v.bytes
}

// Str returns the String payload. It panics if v is not a String.
func (v *Variant) Str() string {
	v.must(TypeString)
	return v.str
}

// Array returns the Array payload. It panics if v is not an Array.
func (v *Variant) Array() Array {
	v.must(TypeArray)
	return v.arr
}

// KVArray returns the KVArray payload. It panics if v is not a KVArray.
func (v *Variant) KVArray() KVArray {
	v.must(TypeKVArray)
	return v.kv
}

// Int8 returns the Int8 payload. It panics if v is not an Int8.
func (v *Variant) Int8() int8 { v.must(TypeInt8); return int8(v.bits) }

// Uint8 returns the Uint8 payload. It panics if v is not a Uint8.
func (v *Variant) Uint8() uint8 { v.must(TypeUint8); return uint8(v.bits) }

// Int16 returns the Int16 payload. It panics if v is not an Int16.
func (v *Variant) Int16() int16 { v.must(TypeInt16); return int16(v.bits) }

// Uint16 returns the Uint16 payload. It panics if v is not a Uint16.
func (v *Variant) Uint16() uint16 { v.must(TypeUint16); return uint16(v.bits) }

// Int32 returns the Int32 payload. It panics if v is not an Int32.
func (v *Variant) Int32() int32 { v.must(TypeInt32); return int32(v.bits) }

// Uint32 returns the Uint32 payload. It panics if v is not a Uint32.
func (v *Variant) Uint32() uint32 { v.must(TypeUint32); return uint32(v.bits) }

// Int64 returns the Int64 payload. It panics if v is not an Int64.
func (v *Variant) Int64() int64 { v.must(TypeInt64); return int64(v.bits) }

// Uint64 returns the Uint64 payload. It panics if v is not a Uint64.
func (v *Variant) Uint64() uint64 { v.must(TypeUint64); return v.bits }

// Release returns the payload and converts v to Null. The result is one of
// []byte, string, Array, KVArray, an integer of the declared Go width, or nil
// for Null.
func (v *Variant) Release() any {
	if v == nil {
		return nil
	}
	var out any
	switch v.Type() {
	case TypeByteArray:
		out = v.bytes
	case TypeString:
		out = v.str
	case TypeArray:
		out = v.arr
	case TypeKVArray:
		out = v.kv
	case TypeInt8:
		out = int8(v.bits)
	case TypeUint8:
		out = uint8(v.bits)
	case TypeInt16:
		out = int16(v.bits)
	case TypeUint16:
		out = uint16(v.bits)
	case TypeInt32:
		out = int32(v.bits)
	case TypeUint32:
		out = uint32(v.bits)
	case TypeInt64:
		out = int64(v.bits)
	case TypeUint64:
		out = v.bits
	}
	v.SetNull()
	return out
}

// Get returns the value at index i, or nil if absent or out of range.
func (a Array) Get(i int) *Variant {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// Lookup returns the value of the first entry with the given key.
func (kv KVArray) Lookup(key string) (*Variant, bool) {
	for _, e := range kv {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
