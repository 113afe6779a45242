package core

import (
	"errors"
	"fmt"
)

// Error taxonomy of the pipeline. Callers branch with errors.Is; components
// wrap these sentinels with context via fmt.Errorf("...: %w", ...).
var (
	// ErrValidation marks a malformed actor or session id, rejected before
	// any external call.
	ErrValidation = errors.New("validation error")

	// ErrConflict means the per-session lock wait timed out; the caller
	// should retry after the in-flight exchange completes.
	ErrConflict = errors.New("session busy")

	// ErrSessionNotFound is returned by MemoryStore.GetSession lookups.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMemoryDegraded marks a read-path failure of the memory store. The
	// pipeline logs it and continues with an empty context; it never
	// surfaces as a request failure.
	ErrMemoryDegraded = errors.New("memory store degraded")

	// ErrMemoryWriteFailed marks a write-path failure. It is always
	// surfaced to the caller because it breaks the persisted-history
	// invariant.
	ErrMemoryWriteFailed = errors.New("memory write failed")

	// ErrAgentInvocation marks a non-transient invoker failure, surfaced
	// after retries are exhausted.
	ErrAgentInvocation = errors.New("agent invocation failed")

	// ErrTimeout means the invocation exceeded its deadline; no partial
	// assistant turn is persisted.
	ErrTimeout = errors.New("invocation timed out")
)

// transientError wraps a recoverable invoker failure so the dispatcher can
// distinguish it from content-level errors.
type transientError struct{ err error }

func (t *transientError) Error() string { return fmt.Sprintf("transient: %v", t.err) }

func (t *transientError) Unwrap() error { return t.err }

// Transient marks err as a recoverable network/service failure eligible for
// retry. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked with
// Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
