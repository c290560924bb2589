package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/recurrence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// UserError is a business-rule failure whose message is shown to the end user
// verbatim, without a stack trace. It is always recoverable.
type UserError struct {
	Message string
}

// Error implements the error interface.
func (u *UserError) Error() string {
	if u == nil {
		return ""
	}
	return u.Message
}

func userErrorf(format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// ConflictDetail describes one colliding occurrence in a structured form the
// UI can render.
type ConflictDetail struct {
	Date  string    `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Kind is one of "confirmed", "blocked", "period" or "hours".
	Kind string `json:"kind"`
	// WithReservationID identifies the colliding reservation; empty for
	// blocking, period and hour conflicts.
	WithReservationID string `json:"with_reservation_id,omitempty"`
	// BlockingReason carries the blocking's reason for blocked candidates.
	BlockingReason string `json:"blocking_reason,omitempty"`
}

// ConflictError aborts strict-mode creation when any candidate conflicts.
// Retrying in skip-conflicts mode or adjusting the request recovers.
type ConflictError struct {
	Conflicts []ConflictDetail
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%d occurrence(s) cannot be booked", len(c.Conflicts))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, persistence.ErrDuplicate)
}

func isRecurrenceRange(err error) bool {
	return errors.Is(err, recurrence.ErrInvalidRange)
}
