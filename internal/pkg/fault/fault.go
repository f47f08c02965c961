// Package fault defines the error taxonomy shared by every component.
//
// A single discriminated error type carries a stable machine-readable Kind
// plus a human-readable message, so callers branch on the kind instead of
// string-matching, and a business rejection can never be confused with a
// system fault. Transport layers map kinds to status codes in one place.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the stable error discriminator. Values are wire-safe: they appear
// verbatim in error response bodies and metric labels.
type Kind string

const (
	// Business rejections — returned to the caller, never retried.
	KindValidation        Kind = "validation_error"
	KindItemUnavailable   Kind = "item_unavailable"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"

	// System faults.
	KindPersistenceFailed Kind = "persistence_failed"
	KindPublishFailed     Kind = "publish_failed"
	KindUnavailable       Kind = "unavailable"

	// Gateway faults.
	KindCircuitOpen Kind = "circuit_open"
	KindNoRoute     Kind = "no_route"
	KindTimeout     Kind = "timeout"

	// Startup faults.
	KindUnknownService      Kind = "unknown_service"
	KindResolutionExhausted Kind = "resolution_exhausted"
)

// Error is a kinded error. The zero value is not valid; use New or Wrap.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New returns a kinded error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause. The cause stays
// reachable through errors.Is/As but is never serialised to callers.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// KindOf extracts the kind from err, or ok=false when err carries none.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
