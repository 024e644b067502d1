package apperr

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ValidationError reports rejected input. Nothing has been mutated when
// one of these is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransientFetchError covers network failures, timeouts and unexpected
// HTTP statuses. Previously stored data stays untouched; the scheduler
// retries on its own cadence.
type TransientFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransientFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// ParseError reports a malformed feed or chapter body. Treated like a
// transient fetch failure: nothing is partially cached.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// LimitExceededError reports a response or image over the configured
// size/type bounds. Distinct from transient errors: retrying will not
// self-heal.
type LimitExceededError struct {
	URL    string
	Reason string
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit exceeded for %s: %s", e.URL, e.Reason)
}

// RateLimitError tells the caller to try again later.
type RateLimitError struct {
	Action string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Action)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

func IsLimitExceeded(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le)
}
