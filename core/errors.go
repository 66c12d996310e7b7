package core

import (
	"errors"
	"fmt"
)

// Error kind sentinels. Every gateway or engine failure wraps exactly one of
// these, so callers can classify failures with errors.Is without depending on
// concrete error types.
var (
	// ErrConfig marks a missing credential or assistant identity. Raised
	// before any remote call is made.
	ErrConfig = errors.New("configuration error")
	// ErrAuth marks a credential rejected by the remote side.
	ErrAuth = errors.New("authentication error")
	// ErrNotFound marks an unknown thread or run id.
	ErrNotFound = errors.New("not found")
	// ErrTransport marks a network or connection failure.
	ErrTransport = errors.New("transport error")
	// ErrProtocol marks a malformed or unexpected response shape.
	ErrProtocol = errors.New("protocol error")
	// ErrTimeout marks a poll loop that exceeded its allotted duration.
	ErrTimeout = errors.New("timeout")
)

// ErrNoReply is returned when a terminal run produced no assistant message.
// It is a recoverable condition, not a failure of the turn: the run finished,
// there is just nothing to show.
var ErrNoReply = errors.New("no assistant reply found")

// Error is a classified failure from the gateway or the engine. It wraps one
// of the kind sentinels above plus an optional underlying cause, both of
// which participate in errors.Is / errors.As matching.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error
	// Op names the operation that failed, e.g. "create_thread".
	Op string
	// Message is a human-readable description.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap exposes both the kind sentinel and the underlying cause to the
// errors package.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewError builds a classified error without an underlying cause.
func NewError(kind error, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError builds a classified error around an underlying cause.
func WrapError(kind error, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}
