package rmi

import (
	"context"

	"github.com/vango-dev/photon/pkg/variant"
)

// Param is the set of Go types a typed binding can receive. Each maps to
// exactly one variant type.
type Param interface {
	[]byte | string | variant.Array | variant.KVArray |
		int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64
}

// Return is the set of Go types a typed binding can return. Void declares a
// method without a return value.
type Return interface {
	Param | Void
}

// Void is the return type of methods that produce no value.
type Void struct{}

// tagOf returns the variant type a Go type maps to.
func tagOf[T Return]() variant.Type {
	var zero T
	switch any(zero).(type) {
	case []byte:
		return variant.TypeByteArray
	case string:
		return variant.TypeString
	case variant.Array:
		return variant.TypeArray
	case variant.KVArray:
		return variant.TypeKVArray
	case int8:
		return variant.TypeInt8
	case uint8:
		return variant.TypeUint8
	case int16:
		return variant.TypeInt16
	case uint16:
		return variant.TypeUint16
	case int32:
		return variant.TypeInt32
	case uint32:
		return variant.TypeUint32
	case int64:
		return variant.TypeInt64
	case uint64:
		return variant.TypeUint64
	default:
		return variant.TypeVoid
	}
}

// valueAs extracts a T from v. The caller has checked v's type against
// tagOf[T], so the accessor cannot panic.
func valueAs[T Param](v *variant.Variant) T {
	var out any
	switch tagOf[T]() {
	case variant.TypeByteArray:
		out = v.Bytes()
	case variant.TypeString:
		out = v.Str()
	case variant.TypeArray:
		out = v.Array()
	case variant.TypeKVArray:
		out = v.KVArray()
	case variant.TypeInt8:
		out = v.Int8()
	case variant.TypeUint8:
		out = v.Uint8()
	case variant.TypeInt16:
		out = v.Int16()
	case variant.TypeUint16:
		out = v.Uint16()
	case variant.TypeInt32:
		out = v.Int32()
	case variant.TypeUint32:
		out = v.Uint32()
	case variant.TypeInt64:
		out = v.Int64()
	case variant.TypeUint64:
		out = v.Uint64()
	}
	return out.(T)
}

// fromValue wraps a native return value.
func fromValue[T Return](x T) *variant.Variant {
	switch x := any(x).(type) {
	case []byte:
		return variant.NewByteArray(x)
	case string:
		return variant.NewString(x)
	case variant.Array:
		return variant.NewArrayOf(x)
	case variant.KVArray:
		return variant.NewKVArray(x)
	case int8:
		return variant.NewInt8(x)
	case uint8:
		return variant.NewUint8(x)
	case int16:
		return variant.NewInt16(x)
	case uint16:
		return variant.NewUint16(x)
	case int32:
		return variant.NewInt32(x)
	case uint32:
		return variant.NewUint32(x)
	case int64:
		return variant.NewInt64(x)
	case uint64:
		return variant.NewUint64(x)
	default:
		return nil
	}
}

func wrap[R Return](v R, err error) (*variant.Variant, error) {
	if err != nil {
		return nil, err
	}
	return fromValue(v), nil
}

// Func0 binds a native function without parameters.
func Func0[R Return](fn func(ctx context.Context) (R, error)) *Binding {
	return NewBinding(tagOf[R](), nil, func(ctx context.Context, _ variant.Array) (*variant.Variant, error) {
		r, err := fn(ctx)
		return wrap(r, err)
	})
}

// Func1 binds a native function of one parameter.
func Func1[A Param, R Return](fn func(ctx context.Context, a A) (R, error)) *Binding {
	params := []variant.Type{tagOf[A]()}
	return NewBinding(tagOf[R](), params, func(ctx context.Context, args variant.Array) (*variant.Variant, error) {
		r, err := fn(ctx, valueAs[A](args[0]))
		return wrap(r, err)
	})
}

// Func2 binds a native function of two parameters.
func Func2[A, B Param, R Return](fn func(ctx context.Context, a A, b B) (R, error)) *Binding {
	params := []variant.Type{tagOf[A](), tagOf[B]()}
	return NewBinding(tagOf[R](), params, func(ctx context.Context, args variant.Array) (*variant.Variant, error) {
		r, err := fn(ctx, valueAs[A](args[0]), valueAs[B](args[1]))
		return wrap(r, err)
	})
}

// Func3 binds a native function of three parameters.
//
// Example:
//
//	b := rmi.Func3(func(ctx context.Context, prefix string, n int32, suffix string) (string, error) {
//	    return fmt.Sprint(prefix, n, suffix), nil
//	})
func Func3[A, B, C Param, R Return](fn func(ctx context.Context, a A, b B, c C) (R, error)) *Binding {
	params := []variant.Type{tagOf[A](), tagOf[B](), tagOf[C]()}
	return NewBinding(tagOf[R](), params, func(ctx context.Context, args variant.Array) (*variant.Variant, error) {
		r, err := fn(ctx, valueAs[A](args[0]), valueAs[B](args[1]), valueAs[C](args[2]))
		return wrap(r, err)
	})
}

// Func4 binds a native function of four parameters.
func Func4[A, B, C, D Param, R Return](fn func(ctx context.Context, a A, b B, c C, d D) (R, error)) *Binding {
	params := []variant.Type{tagOf[A](), tagOf[B](), tagOf[C](), tagOf[D]()}
	return NewBinding(tagOf[R](), params, func(ctx context.Context, args variant.Array) (*variant.Variant, error) {
		r, err := fn(ctx, valueAs[A](args[0]), valueAs[B](args[1]), valueAs[C](args[2]), valueAs[D](args[3]))
		return wrap(r, err)
	})
}
