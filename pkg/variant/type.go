package variant

import "strings"

// Type identifies the active representation of a Variant. The numeric values
// are the wire type codes.
type Type uint8

const (
	TypeVoid      Type = 0x00 // Return-type marker only; never the type of a value
	TypeByteArray Type = 0x01
	TypeString    Type = 0x02
	TypeArray     Type = 0x03
	TypeKVArray   Type = 0x04
	TypeInt8      Type = 0x05
	TypeUint8     Type = 0x06
	TypeInt16     Type = 0x07
	TypeUint16    Type = 0x08
	TypeInt32     Type = 0x09
	TypeUint32    Type = 0x0A
	TypeInt64     Type = 0x0B
	TypeUint64    Type = 0x0C
	TypeNull      Type = 0x0D
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "Void"
	case TypeByteArray:
		return "ByteArray"
	case TypeString:
		return "String"
	case TypeArray:
		return "Array"
	case TypeKVArray:
		return "KVArray"
	case TypeInt8:
		return "Int8"
	case TypeUint8:
		return "Uint8"
	case TypeInt16:
		return "Int16"
	case TypeUint16:
		return "Uint16"
	case TypeInt32:
		return "Int32"
	case TypeUint32:
		return "Uint32"
	case TypeInt64:
		return "Int64"
	case TypeUint64:
		return "Uint64"
	case TypeNull:
		return "Null"
	default:
		return "Unknown"
	}
}

// ParseType returns the type named name, matching String case-insensitively.
func ParseType(name string) (Type, bool) {
	for t := TypeVoid; t <= TypeNull; t++ {
		if strings.EqualFold(t.String(), name) {
			return t, true
		}
	}
	return 0, false
}

// Valid reports whether t is the type of a value (ByteArray..Null).
func (t Type) Valid() bool {
	return t >= TypeByteArray && t <= TypeNull
}

// ValidReturn reports whether t may be used as a declared return type.
func (t Type) ValidReturn() bool {
	return t == TypeVoid || t.Valid()
}

// IsInteger reports whether t is one of the eight integer types.
func (t Type) IsInteger() bool {
	return t >= TypeInt8 && t <= TypeUint64
}

// Width returns the byte width of an integer type, or 0 for other types.
func (t Type) Width() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32:
		return 4
	case TypeInt64, TypeUint64:
		return 8
	default:
		return 0
	}
}
