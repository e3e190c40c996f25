package types

import (
	"errors"
	"fmt"
)

// ValidationError is a bad or empty ECL expression, or an evaluator rejection.
// Surfaced to the caller, never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError is an operation against a missing cluster id. Delete is
// idempotent and does not raise it; update, rename and refresh do.
type NotFoundError struct {
	ClusterID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cluster %s not found", e.ClusterID)
}

// AmbiguousWriteError is a remote mutation whose outcome is unknown: the
// channel failed after the write may have committed. It is resolved inside
// the mutation guard by reconciliation and never escapes it.
type AmbiguousWriteError struct {
	Op        string
	ClusterID string
	Err       error
}

func (e *AmbiguousWriteError) Error() string {
	return fmt.Sprintf("%s %s: remote outcome unknown: %v", e.Op, e.ClusterID, e.Err)
}

func (e *AmbiguousWriteError) Unwrap() error { return e.Err }

// ConflictError is a mutation whose post-reconciliation state does not match
// the intent. The underlying channel error, when there was one, is attached.
type ConflictError struct {
	Op        string
	ClusterID string
	Message   string
	Err       error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.ClusterID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.ClusterID, e.Message)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
