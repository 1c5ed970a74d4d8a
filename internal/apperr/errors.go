// Package apperr holds the error taxonomy shared across dagaz packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrFetch          = errors.New("fetch failed")
	ErrSubmission     = errors.New("submission failed")
	ErrNotReady       = errors.New("not ready")
	ErrSubmitInFlight = errors.New("submission already in flight")
	ErrUnknownView    = errors.New("unknown view")
)

// FetchError reports a failed load of a record source.
type FetchError struct {
	View   string
	Status int // HTTP status, 0 for transport failures
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.View, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.View, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// ValidationError reports user input rejected before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SubmissionError reports a rejected or failed document mutation.
// Message is safe to show to the user.
type SubmissionError struct {
	Message string
	Status  int
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmission}
	}
	return []error{ErrSubmission, e.Err}
}

// Validation builds a ValidationError.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
