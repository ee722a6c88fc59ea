package protocol

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when the available bytes end before the
// value being decoded does. It is never a protocol error: the caller keeps
// the bytes and retries once more data has arrived.
var ErrInsufficientData = errors.New("protocol: insufficient data")

// ErrorCode classifies a protocol error.
type ErrorCode uint16

const (
	CodeUnknown            ErrorCode = 0x0000 // Unknown error
	CodeInvalidType        ErrorCode = 0x0001 // Unknown variant type tag
	CodeInvalidReturnType  ErrorCode = 0x0002 // Unknown remote method return type
	CodeValueOutOfRange    ErrorCode = 0x0003 // Value does not fit its DUI width or bit field
	CodeAllocationTooLarge ErrorCode = 0x0004 // Length or count above configured limits
	CodeDepthExceeded      ErrorCode = 0x0005 // Containers nested too deeply
	CodeUnknownChannel     ErrorCode = 0x0010 // Chunk references an unregistered channel
	CodeLengthMismatch     ErrorCode = 0x0011 // Declared length differs from bytes consumed
	CodeInvalidMessageType ErrorCode = 0x0012 // Message type outside the known set
	CodeEmptyMessage       ErrorCode = 0x0013 // Message header with zero length
	CodeHandshakeFailed    ErrorCode = 0x0020 // Control message invalid for the handshake state
	CodeUnexpectedMessage  ErrorCode = 0x0021 // Message not allowed in the current state
	CodeCallRejected       ErrorCode = 0x0022 // Application rejected a remote method invoke
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case CodeInvalidType:
		return "InvalidType"
	case CodeInvalidReturnType:
		return "InvalidReturnType"
	case CodeValueOutOfRange:
		return "ValueOutOfRange"
	case CodeAllocationTooLarge:
		return "AllocationTooLarge"
	case CodeDepthExceeded:
		return "DepthExceeded"
	case CodeUnknownChannel:
		return "UnknownChannel"
	case CodeLengthMismatch:
		return "LengthMismatch"
	case CodeInvalidMessageType:
		return "InvalidMessageType"
	case CodeEmptyMessage:
		return "EmptyMessage"
	case CodeHandshakeFailed:
		return "HandshakeFailed"
	case CodeUnexpectedMessage:
		return "UnexpectedMessage"
	case CodeCallRejected:
		return "CallRejected"
	default:
		return "Unknown"
	}
}

// Error is a protocol error: malformed content, a schema mismatch, or a
// framing inconsistency. It is always fatal to the connection.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Errorf creates a protocol error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "protocol: " + e.Code.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInsufficient reports whether err means more bytes are needed.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// IsProtocolError reports whether err is (or wraps) a protocol error.
func IsProtocolError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// CodeOf returns the code of a protocol error, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}
