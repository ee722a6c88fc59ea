package protocol

import (
	"github.com/vango-dev/photon/pkg/variant"
)

// EncodeVariant encodes v as a tagged value.
func EncodeVariant(v *variant.Variant) ([]byte, error) {
	e := NewEncoder()
	if err := EncodeVariantTo(e, v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeVariantTo encodes v using the provided encoder.
// A nil v, and any nil container element, is written as Null.
func EncodeVariantTo(e *Encoder, v *variant.Variant) error {
	t := v.Type()
	e.WriteByte(byte(t))
	return encodePayload(e, v, t)
}

func encodePayload(e *Encoder, v *variant.Variant, t variant.Type) error {
	switch t {
	case variant.TypeNull:
		return nil
	case variant.TypeByteArray:
		return e.WriteLenBytes(v.Bytes())
	case variant.TypeString:
		return e.WriteString(v.Str())
	case variant.TypeArray:
		return encodeArray(e, v.Array())
	case variant.TypeKVArray:
		kv := v.KVArray()
		if err := e.WriteLength(len(kv)); err != nil {
			return err
		}
		for _, entry := range kv {
			if err := e.WriteString(entry.Key); err != nil {
				return err
			}
			if err := EncodeVariantTo(e, entry.Value); err != nil {
				return err
			}
		}
		return nil
	}

	bits := uint64(v.IntegerValue())
	switch t.Width() {
	case 1:
		e.WriteByte(byte(bits))
	case 2:
		e.WriteUint16(uint16(bits))
	case 4:
		e.WriteUint32(uint32(bits))
	default:
		e.WriteUint64(bits)
	}
	return nil
}

// DecodeVariant decodes one tagged value from the front of data.
// Returns the value and the number of bytes consumed.
func DecodeVariant(data []byte) (*variant.Variant, int, error) {
	d := NewDecoder(data)
	v, err := DecodeVariantFrom(d)
	if err != nil {
		return nil, 0, err
	}
	return v, d.Position(), nil
}

// DecodeVariantFrom decodes one tagged value from the decoder.
func DecodeVariantFrom(d *Decoder) (*variant.Variant, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	t := variant.Type(tag)
	if !t.Valid() {
		return nil, Errorf(CodeInvalidType, "unknown variant type 0x%02x", tag)
	}
	v := &variant.Variant{}
	if err := decodePayload(d, v, t); err != nil {
		return nil, err
	}
	return v, nil
}

func decodePayload(d *Decoder, v *variant.Variant, t variant.Type) error {
	switch t {
	case variant.TypeNull:
		v.SetNull()
		return nil

	case variant.TypeByteArray:
		b, err := d.ReadLenBytes()
		if err != nil {
			return err
		}
		v.SetByteArray(b)
		return nil

	case variant.TypeString:
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil

	case variant.TypeArray:
		arr, err := decodeArray(d)
		if err != nil {
			return err
		}
		v.SetArray(arr)
		return nil

	case variant.TypeKVArray:
		if err := d.depth.enter(); err != nil {
			return err
		}
		defer d.depth.leave()

		count, err := d.ReadCount()
		if err != nil {
			return err
		}
		kv := make(variant.KVArray, 0, count)
		for i := 0; i < count; i++ {
			key, err := d.ReadString()
			if err != nil {
				return err
			}
			val, err := DecodeVariantFrom(d)
			if err != nil {
				return err
			}
			kv = append(kv, variant.Entry{Key: key, Value: val})
		}
		v.SetKVArray(kv)
		return nil
	}

	var bits uint64
	var err error
	switch t.Width() {
	case 1:
		var b byte
		b, err = d.ReadByte()
		bits = uint64(b)
	case 2:
		var n uint16
		n, err = d.ReadUint16()
		bits = uint64(n)
	case 4:
		var n uint32
		n, err = d.ReadUint32()
		bits = uint64(n)
	default:
		bits, err = d.ReadUint64()
	}
	if err != nil {
		return err
	}
	v.SetInteger(t, bits)
	return nil
}

// decodeArray reads an untagged Array payload: count then tagged elements.
func decodeArray(d *Decoder) (variant.Array, error) {
	if err := d.depth.enter(); err != nil {
		return nil, err
	}
	defer d.depth.leave()

	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	arr := make(variant.Array, 0, count)
	for i := 0; i < count; i++ {
		elem, err := DecodeVariantFrom(d)
		if err != nil {
			return nil, err
		}
		arr = append(arr, elem)
	}
	return arr, nil
}

// encodeArray writes an untagged Array payload.
func encodeArray(e *Encoder, arr variant.Array) error {
	if err := e.WriteLength(len(arr)); err != nil {
		return err
	}
	for _, elem := range arr {
		if err := EncodeVariantTo(e, elem); err != nil {
			return err
		}
	}
	return nil
}
