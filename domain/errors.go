package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service layers. Handlers map these
// to HTTP status codes; everything else is an internal error.
var (
	// ErrNotFound indicates a missing client, session, website or
	// change request.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates an attempted state change on a
	// change request that is already terminal.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUpstream indicates a completion call failure. The user
	// message is already durable when this is returned; the caller
	// may retry.
	ErrUpstream = errors.New("completion upstream failure")

	// ErrConflict indicates a lost version race on a content section
	// or a unique-constraint violation on insert.
	ErrConflict = errors.New("write conflict")
)

// ValidationError reports a malformed request body with field detail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
