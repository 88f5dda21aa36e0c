package core

import (
	"errors"
	"fmt"
)

// ErrorClass partitions backend failures for retry decisions.
type ErrorClass int

const (
	// ClassTransient covers rate limits, timeouts and upstream 5xx errors.
	// These are retried on the same backend before rotation.
	ClassTransient ErrorClass = iota
	// ClassStructural covers bad requests, auth failures and other errors
	// that further attempts on the same backend cannot fix.
	ClassStructural
)

// BackendError wraps a model backend failure with its retry classification.
type BackendError struct {
	Backend string
	Class   ErrorClass
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error { return e.Err }

// IsTransient reports whether err is classified as retryable on the same
// backend. Unclassified errors are treated as structural.
func IsTransient(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Class == ClassTransient
	}
	return false
}

// AllBackendsExhaustedError is the terminal dispatch failure: every configured
// backend was tried once in a single call and none succeeded.
type AllBackendsExhaustedError struct {
	Attempted int
	LastErr   error
}

func (e *AllBackendsExhaustedError) Error() string {
	return fmt.Sprintf("all %d model backends exhausted: %v", e.Attempted, e.LastErr)
}

// Unwrap returns the last backend failure.
func (e *AllBackendsExhaustedError) Unwrap() error { return e.LastErr }

// CheckpointWriteError is fatal to a turn: state that cannot be durably
// persisted must not be treated as committed, since resumability is a
// correctness property.
type CheckpointWriteError struct {
	ThreadID string
	Err      error
}

func (e *CheckpointWriteError) Error() string {
	return fmt.Sprintf("checkpoint write failed for thread %s: %v", e.ThreadID, e.Err)
}

// Unwrap returns the underlying store failure.
func (e *CheckpointWriteError) Unwrap() error { return e.Err }

// ErrTurnCapacity is returned when the process-wide turn limiter cannot grant
// a slot before its acquisition timeout.
var ErrTurnCapacity = errors.New("turn capacity exhausted")
