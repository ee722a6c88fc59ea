// Package variant implements the dynamically-typed value used as the payload
// unit of the photon wire protocol.
//
// A Variant holds exactly one of:
//
//   - ByteArray: raw bytes
//   - String: UTF-8 text
//   - Array: ordered sequence of optional *Variant references
//   - KVArray: ordered sequence of {key, optional *Variant} entries
//   - Int8/Uint8/Int16/Uint16/Int32/Uint32/Int64/Uint64
//   - Null
//
// The zero Variant, and a nil *Variant, are Null. Array and KVArray elements
// are shared pointers; a nil element is distinguishable in memory but is
// treated as Null when compared or serialized.
//
// # Accessors
//
// Typed accessors (Bytes, Str, Array, KVArray, Int8, ...) require an exact type
// match and panic otherwise; requesting the wrong type is a bug in the caller,
// not bad input. Integer coercion goes through As:
//
//	v := variant.NewUint8(128)
//	variant.As[int8](v)   // -128
//	variant.As[uint16](v) // 128
//
// The stored bit pattern is masked to its declared width before coercion, so
// sign is only reintroduced at the target width.
package variant
