package variant

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// String returns a debug rendering of v, for example
// Array[Uint64(44), Null, String("hello")].
func (v *Variant) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v *Variant) format(b *strings.Builder) {
	t := v.Type()
	switch t {
	case TypeNull:
		b.WriteString("Null")
	case TypeByteArray:
		b.WriteString("ByteArray(")
		b.WriteString(hex.EncodeToString(v.bytes))
		b.WriteByte(')')
	case TypeString:
		b.WriteString("String(")
		b.WriteString(strconv.Quote(v.str))
		b.WriteByte(')')
	case TypeArray:
		b.WriteString("Array[")
		for i, e := range v.arr {
			if i > 0 {
				b.WriteString(", ")
			}
			e.format(b)
		}
		b.WriteByte(']')
	case TypeKVArray:
		b.WriteString("KVArray{")
		for i, e := range v.kv {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(e.Key))
			b.WriteString(": ")
			e.Value.format(b)
		}
		b.WriteByte('}')
	default:
		b.WriteString(t.String())
		b.WriteByte('(')
		switch t {
		case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
			b.WriteString(strconv.FormatInt(signed(t, v.bits), 10))
		default:
			b.WriteString(strconv.FormatUint(v.bits, 10))
		}
		b.WriteByte(')')
	}
}

func signed(t Type, bits uint64) int64 {
	switch t {
	case TypeInt8:
		return int64(int8(bits))
	case TypeInt16:
		return int64(int16(bits))
	case TypeInt32:
		return int64(int32(bits))
	default:
		return int64(bits)
	}
}

// Parse builds a scalar Variant from a literal of the form "prefix:value".
//
//	null            Null
//	s:hello         String
//	hex:deadbeef    ByteArray
//	b64:3q2+7w==    ByteArray
//	i8:-5 u8:33     Int8 / Uint8 (likewise i16 u16 i32 u32 i64 u64)
//
// A literal without a known prefix is parsed as a String.
func Parse(lit string) (*Variant, error) {
	if lit == "null" {
		return Null(), nil
	}
	prefix, value, ok := strings.Cut(lit, ":")
	if !ok {
		return NewString(lit), nil
	}
	switch prefix {
	case "s", "str":
		return NewString(value), nil
	case "hex":
		b, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("variant: parse %q: %w", lit, err)
		}
		return NewByteArray(b), nil
	case "b64":
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("variant: parse %q: %w", lit, err)
		}
		return NewByteArray(b), nil
	}

	t, ok := intPrefixes[prefix]
	if !ok {
		return NewString(lit), nil
	}
	bitSize := t.Width() * 8
	if t == TypeInt8 || t == TypeInt16 || t == TypeInt32 || t == TypeInt64 {
		n, err := strconv.ParseInt(value, 0, bitSize)
		if err != nil {
			return nil, fmt.Errorf("variant: parse %q: %w", lit, err)
		}
		return newInt(t, uint64(n)), nil
	}
	n, err := strconv.ParseUint(value, 0, bitSize)
	if err != nil {
		return nil, fmt.Errorf("variant: parse %q: %w", lit, err)
	}
	return newInt(t, n), nil
}

var intPrefixes = map[string]Type{
	"i8":  TypeInt8,
	"u8":  TypeUint8,
	"i16": TypeInt16,
	"u16": TypeUint16,
	"i32": TypeInt32,
	"u32": TypeUint32,
	"i64": TypeInt64,
	"u64": TypeUint64,
}
