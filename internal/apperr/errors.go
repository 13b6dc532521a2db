// Package apperr defines the small taxonomy of error kinds the client and
// worker HTTP surfaces map to responses, per the propagation policy: every
// adapter failure collapses to one of these, and only the coordinator or a
// handler decides which kind applies.
package apperr

import (
	"errors"
	"net/http"
)

// Kind identifies one of the error categories a request can terminate in.
type Kind string

const (
	KindUnauthorized    Kind = "unauthorized"
	KindNotInternal     Kind = "not_internal"
	KindBadInput        Kind = "bad_input"
	KindUnsupportedKind Kind = "unsupported_kind"
	KindInternal        Kind = "internal"
	KindTimeout         Kind = "timeout"
)

// Error is the error type returned by the coordinator and adapters. It
// carries enough information for a handler to write the right HTTP
// response without re-deriving it from a generic error string.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, preserving cause for logging
// via errors.Unwrap/errors.Is while keeping message the client-safe text.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Unauthorized, NotInternal, BadInput, UnsupportedKind, Internal, Timeout
// are convenience constructors, one per Kind.
func Unauthorized(message string) *Error    { return New(KindUnauthorized, message) }
func NotInternal(message string) *Error     { return New(KindNotInternal, message) }
func BadInput(message string) *Error        { return New(KindBadInput, message) }
func UnsupportedKind(message string) *Error { return New(KindUnsupportedKind, message) }
func Internal(message string) *Error        { return New(KindInternal, message) }
func Timeout(message string) *Error         { return New(KindTimeout, message) }

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to its HTTP status code. Timeout is a soft
// timeout: HTTP 200, not an error status — callers that need the
// Retry-After header handle that separately.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized, KindNotInternal:
		return http.StatusUnauthorized
	case KindBadInput:
		return http.StatusBadRequest
	case KindUnsupportedKind:
		return http.StatusNotImplemented
	case KindInternal:
		return http.StatusInternalServerError
	case KindTimeout:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
