package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services and adapters.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	// ErrTransient marks persistence contention or timeouts. The whole
	// operation is safe to retry.
	ErrTransient = errors.New("transient storage failure")
	// ErrInconsistent is raised internally when a stored aggregate disagrees
	// with its live entries. It is corrected by Reconcile and never returned
	// to callers.
	ErrInconsistent = errors.New("aggregate inconsistent with entries")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds while the
// original cause stays reachable.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrTransient, err))
}
