package chat

import (
	"errors"
	"fmt"
)

// ErrorType categorizes transport errors.
type ErrorType string

const (
	// ErrConnectTimeout means the connection handshake exceeded the configured
	// timeout. Distinct from generic caller cancellation.
	ErrConnectTimeout ErrorType = "connect_timeout"

	// ErrClosedDuringReceive means the peer closed the connection while a
	// one-shot read was waiting for a message.
	ErrClosedDuringReceive ErrorType = "closed_during_receive"

	// ErrNotConnected means an operation that requires an established session
	// was invoked while disconnected. The caller is expected to await
	// connection; there is no implicit queueing or retry.
	ErrNotConnected ErrorType = "not_connected"

	// ErrPlayback means the playback adapter failed while rendering audio.
	ErrPlayback ErrorType = "playback_error"

	// ErrTransport is any other transport-level failure.
	ErrTransport ErrorType = "transport_error"
)

// Error is a categorized transport error.
type Error struct {
	Type    ErrorType
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches errors by type so callers can use errors.Is with a bare
// &Error{Type: ...} target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewError creates an Error with the given type and message.
func NewError(typ ErrorType, message string) *Error {
	return &Error{Type: typ, Message: message}
}

// WrapError wraps an underlying error with a categorized Error.
func WrapError(typ ErrorType, message string, err error) *Error {
	return &Error{Type: typ, Message: message, Wrapped: err}
}

// IsType reports whether err is (or wraps) an Error of the given type.
func IsType(err error, typ ErrorType) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Type == typ
}
