// Package apperror defines the internal error taxonomy. Services return
// *Error values tagged with a Kind; the server's error-handler middleware
// maps each Kind to an HTTP status exactly once, so no handler ever
// string-matches error messages to pick a status code.
package apperror

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindUnauthorized
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "internal"
	}
}

// Error carries a client-safe message and an optional wrapped cause. The
// cause is for logs only and is never serialized to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal server error", err)
}

// KindOf extracts the Kind from any error; plain errors count as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ClientMessage returns the message safe to surface. Internal errors are
// masked with a generic message.
func ClientMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}
