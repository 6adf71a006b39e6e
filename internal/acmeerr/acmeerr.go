// Package acmeerr defines the closed error-kind taxonomy shared by every
// layer of the ACME driver, from wire-level problem mapping up to the
// drive state machine.
package acmeerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one of the language-neutral error kinds from spec section 7.
type Kind int

const (
	KindGeneral Kind = iota
	KindInvalidArgument
	KindBadArgument
	KindAccessDenied
	KindNotFound
	KindAlreadyExists
	KindRetryLater
	KindTimeout
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindBadArgument:
		return "BadArgument"
	case KindAccessDenied:
		return "AccessDenied"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindRetryLater:
		return "RetryLater"
	case KindTimeout:
		return "Timeout"
	case KindNotImplemented:
		return "NotImplemented"
	default:
		return "General"
	}
}

// Error is the concrete error type carrying a Kind, a human-readable
// message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RetryAfter holds a CA-supplied Retry-After duration in seconds,
	// populated on any mapped error response that carried the header,
	// whatever its Kind (spec section 12 item 6).
	RetryAfter int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying cause as its wrapped error.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) is an *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, or KindGeneral if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

// NotFound is a convenience constructor used pervasively by the store.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// RetryAfterOf extracts a CA-supplied retry delay from err, if any was
// attached (spec section 12 item 6). Callers use this to raise the
// floor of their next poll tick instead of guessing.
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second, true
	}
	return 0, false
}
