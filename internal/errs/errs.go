// SPDX-License-Identifier: MIT

// Package errs classifies errors raised by the protected-audio core into a
// small stable set of kinds, and carries the logic needed to turn one into
// an HTTP-shaped response without leaking internals in production.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable error classification independent of any specific Go
// error value. Callers switch on Kind, never on error string content.
type Kind int

const (
	// Internal is the zero value: an unclassified, unexpected failure.
	Internal Kind = iota
	Unauthenticated
	Forbidden
	NotFound
	Conflict
	TooManyRequests
	Timeout
	PayloadTooLarge
	Validation
	WeakKey
	IntegrityFailure
	MalformedBlob
)

// String returns the snake_case name used in logs and problem+json bodies.
func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case TooManyRequests:
		return "too_many_requests"
	case Timeout:
		return "timeout"
	case PayloadTooLarge:
		return "payload_too_large"
	case Validation:
		return "validation"
	case WeakKey:
		return "weak_key"
	case IntegrityFailure:
		return "integrity_failure"
	case MalformedBlob:
		return "malformed_blob"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code conventionally associated with Kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return 401
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case Conflict:
		return 409
	case TooManyRequests:
		return 429
	case Timeout:
		return 408
	case PayloadTooLarge:
		return 413
	case Validation, WeakKey, MalformedBlob:
		return 400
	case IntegrityFailure:
		return 422
	default:
		return 500
	}
}

// genericMessages mirrors the disclosure policy: a fixed, non-identifying
// message per kind, shown to clients in production regardless of the
// underlying cause.
var genericMessages = map[Kind]string{
	Unauthenticated:  "authentication required",
	Forbidden:        "access denied",
	NotFound:         "resource not found",
	Conflict:         "resource conflict",
	TooManyRequests:  "too many requests",
	Timeout:          "request timed out",
	PayloadTooLarge:  "payload too large",
	Validation:       "invalid request parameters",
	WeakKey:          "key does not meet strength requirements",
	IntegrityFailure: "content failed integrity verification",
	MalformedBlob:    "malformed input",
	Internal:         "internal server error",
}

// Error is the error type produced by every component in this module.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a developer-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind, preserving cause for logging
// and %w-unwrapping while keeping Message as the developer-facing summary.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Classify extracts the Kind carried by err, defaulting to Internal when err
// does not wrap an *Error.
func Classify(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Disclose returns the message that should be shown to a caller for err.
// In production, every kind maps to its fixed generic message; outside
// production, the error's own (potentially more specific) message is used.
func Disclose(err error, production bool) string {
	kind := Classify(err)
	if production {
		return genericMessages[kind]
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return genericMessages[kind]
}
