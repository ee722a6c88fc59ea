package protocol

import (
	"github.com/vango-dev/photon/pkg/variant"
)

// RemoteMethodInfo is a method call: name, declared return type, and
// positional arguments. It is the payload of Control and RMI messages.
//
// Wire format:
//
//	[ReturnType: u8][Name: DUI[4] len + UTF-8][Params: DUI[4] count + tagged values]
//
// ReturnType is a variant type tag or variant.TypeVoid.
type RemoteMethodInfo struct {
	Name       string
	ReturnType variant.Type
	Params     variant.Array
}

// NewRemoteMethod creates a method call descriptor.
func NewRemoteMethod(ret variant.Type, name string, params ...*variant.Variant) *RemoteMethodInfo {
	return &RemoteMethodInfo{Name: name, ReturnType: ret, Params: variant.Array(params)}
}

// Param returns the parameter at index i, or nil if absent.
func (m *RemoteMethodInfo) Param(i int) *variant.Variant {
	return m.Params.Get(i)
}

// ParamTypes returns the type tag of every parameter. Absent parameters
// report TypeNull.
func (m *RemoteMethodInfo) ParamTypes() []variant.Type {
	types := make([]variant.Type, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type()
	}
	return types
}

// MatchPrototype reports whether m has the given name, return type, and
// exact positional parameter types.
func (m *RemoteMethodInfo) MatchPrototype(ret variant.Type, name string, params ...variant.Type) bool {
	if m.Name != name || m.ReturnType != ret || len(m.Params) != len(params) {
		return false
	}
	for i, t := range params {
		if m.Params[i].Type() != t {
			return false
		}
	}
	return true
}

// Encode encodes the descriptor to bytes.
func (m *RemoteMethodInfo) Encode() ([]byte, error) {
	e := NewEncoder()
	if err := m.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo encodes the descriptor using the provided encoder.
func (m *RemoteMethodInfo) EncodeTo(e *Encoder) error {
	if !m.ReturnType.ValidReturn() {
		return Errorf(CodeInvalidReturnType, "return type 0x%02x", byte(m.ReturnType))
	}
	e.WriteByte(byte(m.ReturnType))
	if err := e.WriteString(m.Name); err != nil {
		return err
	}
	return encodeArray(e, m.Params)
}

// DecodeRemoteMethod decodes a descriptor from the front of data.
// Returns the descriptor and the number of bytes consumed.
func DecodeRemoteMethod(data []byte) (*RemoteMethodInfo, int, error) {
	d := NewDecoder(data)
	m, err := DecodeRemoteMethodFrom(d)
	if err != nil {
		return nil, 0, err
	}
	return m, d.Position(), nil
}

// DecodeRemoteMethodFrom decodes a descriptor from the decoder.
func DecodeRemoteMethodFrom(d *Decoder) (*RemoteMethodInfo, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ret := variant.Type(tag)
	if !ret.ValidReturn() {
		return nil, Errorf(CodeInvalidReturnType, "return type 0x%02x", tag)
	}
	name, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	params, err := decodeArray(d)
	if err != nil {
		return nil, err
	}
	return &RemoteMethodInfo{Name: name, ReturnType: ret, Params: params}, nil
}

// DecodeRemoteMethodExact decodes a descriptor that must occupy all of data.
// Because data is a complete message payload, running out of bytes or
// leaving bytes unread is a LengthMismatch protocol error.
func DecodeRemoteMethodExact(data []byte, limits Limits) (*RemoteMethodInfo, error) {
	d := NewDecoderWithLimits(data, limits)
	m, err := DecodeRemoteMethodFrom(d)
	if err != nil {
		if IsInsufficient(err) {
			return nil, Errorf(CodeLengthMismatch, "payload shorter than declared message length")
		}
		return nil, err
	}
	if !d.EOF() {
		return nil, Errorf(CodeLengthMismatch, "%d bytes left after remote method", d.Remaining())
	}
	return m, nil
}

// String returns a debug rendering such as "Uint32 blob.put(String("k"), ...)".
func (m *RemoteMethodInfo) String() string {
	s := m.ReturnType.String() + " " + m.Name + "("
	for i, p := range m.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	return s + ")"
}
