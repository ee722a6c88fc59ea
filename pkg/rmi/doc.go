// Package rmi binds native Go functions to remote method names.
//
// A Binding checks a call's return type, arity and parameter types against
// the declared signature before invoking the function. Typed bindings are
// built with Func0 through Func4:
//
//	reg := rmi.NewRegistry()
//	reg.MustRegister("math.add", rmi.Func2(func(ctx context.Context, a, b int32) (int32, error) {
//	    return a + b, nil
//	}))
//
// A Registry implements conn.Application: every inbound call is dispatched
// and its Result is queued as a photon.return reply carrying the call's
// message id. Faults are values, not connection errors; a call that raises
// a fault leaves the connection usable.
package rmi
