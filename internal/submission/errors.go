package submission

import (
	"errors"
	"fmt"
)

// ValidationError is a malformed or empty submission. Non-retryable: the
// caller must fix the request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// NotFoundError is a missing test or question set. Non-retryable.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ConflictError means a concurrent submission won a race this one lost and
// the internal retry budget ran out. Safe to resubmit with the same
// idempotency key.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// PersistenceError wraps an infrastructure-level commit failure. The write
// either fully happened or fully didn't, so retrying is safe.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may resubmit unchanged.
func Retryable(err error) bool {
	var c *ConflictError
	var p *PersistenceError
	return errors.As(err, &c) || errors.As(err, &p)
}
