package rmi

import (
	"fmt"

	"github.com/vango-dev/photon/pkg/variant"
)

// Standard fault messages.
const (
	FaultSignatureMismatch = "Parameter or return value mismatch"
	FaultParameterMismatch = "Parameter mismatch"
	FaultMethodNotFound    = "Method not found"
)

// Result is the outcome of a call. Exactly one of Value and Fault is
// non-Null, except for Void methods where both are Null.
type Result struct {
	Value *variant.Variant
	Fault *variant.Variant
}

// Ok returns a successful result. A nil v is Null.
func Ok(v *variant.Variant) Result {
	if v == nil {
		v = variant.Null()
	}
	return Result{Value: v, Fault: variant.Null()}
}

// Fault returns a faulted result carrying msg.
func Fault(msg string) Result {
	return Result{Value: variant.Null(), Fault: variant.NewString(msg)}
}

// Faultf returns a faulted result with a formatted message.
func Faultf(format string, args ...any) Result {
	return Fault(fmt.Sprintf(format, args...))
}

// Faulted reports whether the call raised a fault.
func (r Result) Faulted() bool {
	return !r.Fault.IsNull()
}

// FaultMessage returns the fault as text. String faults are returned as is;
// other fault values use their debug rendering.
func (r Result) FaultMessage() string {
	if r.Fault.Is(variant.TypeString) {
		return r.Fault.Str()
	}
	return r.Fault.String()
}

// Err returns a *FaultError for a faulted result, or nil.
func (r Result) Err(method string) error {
	if !r.Faulted() {
		return nil
	}
	return &FaultError{Method: method, Message: r.FaultMessage()}
}

// FaultError is returned to callers whose remote call raised a fault.
type FaultError struct {
	Method  string
	Message string
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	if e.Method == "" {
		return "rmi: fault: " + e.Message
	}
	return fmt.Sprintf("rmi: %s: fault: %s", e.Method, e.Message)
}
