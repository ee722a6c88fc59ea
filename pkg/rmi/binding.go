package rmi

import (
	"context"

	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/variant"
)

// Handler is a native method body. It receives arguments whose types have
// already been checked against the binding's signature. A returned error
// becomes the call's fault.
type Handler func(ctx context.Context, args variant.Array) (*variant.Variant, error)

// Binding adapts a native function to dynamically typed calls. It holds the
// function together with the declared return type and the expected type of
// every positional parameter.
type Binding struct {
	ret    variant.Type
	params []variant.Type
	fn     Handler
}

// NewBinding creates a binding with an explicit signature.
func NewBinding(ret variant.Type, params []variant.Type, fn Handler) *Binding {
	return &Binding{
		ret:    ret,
		params: append([]variant.Type(nil), params...),
		fn:     fn,
	}
}

// ReturnType returns the declared return type.
func (b *Binding) ReturnType() variant.Type {
	return b.ret
}

// ParamTypes returns a copy of the declared parameter types.
func (b *Binding) ParamTypes() []variant.Type {
	return append([]variant.Type(nil), b.params...)
}

// Invoke type-checks m against the binding and calls the native function.
// Mismatches are reported as faults, never as Go errors.
func (b *Binding) Invoke(ctx context.Context, m *protocol.RemoteMethodInfo) Result {
	if len(m.Params) != len(b.params) || m.ReturnType != b.ret {
		return Fault(FaultSignatureMismatch)
	}
	for i, want := range b.params {
		if m.Params[i].Type() != want {
			return Fault(FaultParameterMismatch)
		}
	}

	v, err := b.fn(ctx, m.Params)
	if err != nil {
		return Fault(err.Error())
	}
	if b.ret == variant.TypeVoid {
		return Ok(nil)
	}
	if !v.Is(b.ret) && !v.IsNull() {
		return Faultf("return value %s does not match declared %s", v.Type(), b.ret)
	}
	return Ok(v)
}
