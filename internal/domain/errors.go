package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError describes a rejected input field. It matches ErrValidation
// and, when set, Reason.
type ValidationError struct {
	Field   string
	Message string
	Reason  error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Reason != nil {
		return []error{ErrValidation, e.Reason}
	}
	return []error{ErrValidation}
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimitError carries how long the caller should wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
