package workshop

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic dispatch. The remote server maps
// kinds to HTTP statuses; tools map them to structured result errors.
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindEscape        Kind = "escape"
	KindNotFound      Kind = "not_found"
	KindExists        Kind = "exists"
	KindIO            Kind = "io_error"
	KindProvider      Kind = "provider_error"
	KindToolArguments Kind = "tool_arguments_invalid"
	KindToolExecution Kind = "tool_execution_error"
	KindUnauthorized  Kind = "unauthorized"
	KindBusy          Kind = "busy"
	KindCancelled     Kind = "cancelled"
	KindInternal      Kind = "internal"
)

// Error is the structured error surfaced by the core. Message is
// human-readable; Kind is stable for dispatch; Err optionally carries the
// underlying cause for errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around an underlying cause.
func WrapError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err. Context cancellation and deadline
// expiry report KindCancelled even when not wrapped in an *Error. Errors
// without a kind report the empty string.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return ""
}
