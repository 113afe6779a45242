package core

import (
	"context"
	"time"
)

// MemoryStore is the typed interface to the external append-only event log.
// Implementations must provide per-session write ordering: WriteTurn assigns
// the next Seq for the turn's session and ReadTurns returns turns in Seq
// order with no gaps.
type MemoryStore interface {
	// GetOrCreateSession returns the existing session or atomically creates
	// it. Concurrent calls for the same nonexistent (actorID, sessionID)
	// must converge to a single session record.
	GetOrCreateSession(ctx context.Context, actorID, sessionID string) (*Session, error)

	// GetSession returns the session or ErrSessionNotFound.
	GetSession(ctx context.Context, actorID, sessionID string) (*Session, error)

	// ListSessions returns all sessions for the actor, most recent activity
	// first.
	ListSessions(ctx context.Context, actorID string) ([]*Session, error)

	// ReadTurns returns up to limit most recent turns for the session,
	// oldest-first. A session with no turns yields an empty slice.
	ReadTurns(ctx context.Context, actorID, sessionID string, limit int) ([]Turn, error)

	// WriteTurn appends a single turn. Each write is atomic and independent.
	WriteTurn(ctx context.Context, t Turn) error

	// UpdateSessionActivity advances TurnCount by turnsAdded and sets
	// LastActivityAt. Called only after all turn writes of an exchange
	// succeeded.
	UpdateSessionActivity(ctx context.Context, actorID, sessionID string, turnsAdded int, at time.Time) error
}

// GuardrailEvaluator is the typed interface to the external content-safety
// judge. A non-nil error means the judge itself failed (service error,
// timeout); the gate decides whether that fails open or closed.
type GuardrailEvaluator interface {
	Evaluate(ctx context.Context, text string, dir Direction) (GuardrailVerdict, error)
}

// AgentInvoker is the typed interface to the external reasoning engine.
// Implementations should respect ctx deadlines and wrap recoverable
// network/service failures with Transient so the dispatcher can retry them.
type AgentInvoker interface {
	Invoke(ctx context.Context, req InvocationRequest) (*InvocationResult, error)
}
