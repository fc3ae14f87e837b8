// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Recovery errors.
	ErrPlanNotFound     = errors.New("recovery plan not found")
	ErrPlanNotPreviewed = errors.New("recovery plan is not executable")
	ErrPlanStopped      = errors.New("recovery plan requires explicit confirmation")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)

// ValidationError reports a malformed or missing field in a payload.
// Rows failing validation are rejected before reaching the store and
// counted per batch; they are never fatal to the whole batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for one field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports an attempted action on a UID already present in
// the authoritative ledger. Surfaced as a skip-with-reason in reports,
// never raised as a batch failure.
type ConflictError struct {
	UID    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.UID, e.Reason)
}

// ProviderFetchError wraps a timeout or HTTP failure from the payment
// provider during recovery. Retryable failures are retried at the
// batch level up to a fixed attempt count, then recorded per record.
type ProviderFetchError struct {
	Err        error
	StatusCode int
}

func (e *ProviderFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider fetch failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider fetch failed: %v", e.Err)
}

func (e *ProviderFetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the fetch should be retried: transport
// errors and 5xx responses are transient, 4xx responses are not.
func (e *ProviderFetchError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	var fetchErr *ProviderFetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable()
	}
	return false
}
