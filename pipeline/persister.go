package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// Persister writes the completed (or blocked-and-sanitized) exchange through
// the memory store. Each turn write is atomic and independent: if the
// assistant write fails after the user write succeeded, the session keeps a
// dangling user turn and the failure is surfaced to the caller rather than
// silently dropped. Session counters advance only after both writes succeed.
type Persister struct {
	store  core.MemoryStore
	logger logging.Logger
}

// NewPersister constructs a Persister.
func NewPersister(store core.MemoryStore, logger logging.Logger) *Persister {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Persister{store: store, logger: logger}
}

// Persist appends the user and assistant turns and advances the session's
// turn count and activity timestamp. Every failure wraps
// core.ErrMemoryWriteFailed.
func (p *Persister) Persist(ctx context.Context, sess *core.Session, userTurn, assistantTurn core.Turn) error {
	if err := p.store.WriteTurn(ctx, userTurn); err != nil {
		return fmt.Errorf("%w: user turn: %v", core.ErrMemoryWriteFailed, err)
	}
	if err := p.store.WriteTurn(ctx, assistantTurn); err != nil {
		p.logger.Error("assistant write failed after user write, session has a dangling user turn",
			"actor_id", sess.ActorID, "session_id", sess.SessionID, "error", err.Error())
		return fmt.Errorf("%w: assistant turn: %v", core.ErrMemoryWriteFailed, err)
	}

	if err := p.store.UpdateSessionActivity(ctx, sess.ActorID, sess.SessionID, 2, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: session update: %v", core.ErrMemoryWriteFailed, err)
	}
	return nil
}
