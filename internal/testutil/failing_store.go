package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/agentrun/core"
)

// FailingStore wraps a real MemoryStore and injects failures per operation
// class. Flags can be flipped mid-test; access is unsynchronized on purpose
// (set flags before handing the store to concurrent code).
type FailingStore struct {
	Inner core.MemoryStore

	// FailReads makes ReadTurns fail.
	FailReads bool
	// FailWrites makes WriteTurn fail.
	FailWrites bool
	// FailAssistantWrite makes only assistant-role writes fail, leaving the
	// user write intact (the dangling-turn scenario).
	FailAssistantWrite bool
	// FailActivity makes UpdateSessionActivity fail.
	FailActivity bool
	// ReadDelay is applied before each ReadTurns call.
	ReadDelay time.Duration

	mu     sync.Mutex
	writes []core.Turn
}

var _ core.MemoryStore = (*FailingStore)(nil)

// NewFailingStore wraps inner with no failures armed.
func NewFailingStore(inner core.MemoryStore) *FailingStore {
	return &FailingStore{Inner: inner}
}

// Writes returns every turn that reached the inner store.
func (f *FailingStore) Writes() []core.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]core.Turn, len(f.writes))
	copy(res, f.writes)
	return res
}

func (f *FailingStore) GetOrCreateSession(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	return f.Inner.GetOrCreateSession(ctx, actorID, sessionID)
}

func (f *FailingStore) GetSession(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	return f.Inner.GetSession(ctx, actorID, sessionID)
}

func (f *FailingStore) ListSessions(ctx context.Context, actorID string) ([]*core.Session, error) {
	return f.Inner.ListSessions(ctx, actorID)
}

func (f *FailingStore) ReadTurns(ctx context.Context, actorID, sessionID string, limit int) ([]core.Turn, error) {
	if f.ReadDelay > 0 {
		select {
		case <-time.After(f.ReadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.FailReads {
		return nil, errors.New("injected read failure")
	}
	return f.Inner.ReadTurns(ctx, actorID, sessionID, limit)
}

func (f *FailingStore) WriteTurn(ctx context.Context, t core.Turn) error {
	if f.FailWrites {
		return errors.New("injected write failure")
	}
	if f.FailAssistantWrite && t.Role == core.RoleAssistant {
		return errors.New("injected assistant write failure")
	}
	if err := f.Inner.WriteTurn(ctx, t); err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, t)
	f.mu.Unlock()
	return nil
}

func (f *FailingStore) UpdateSessionActivity(ctx context.Context, actorID, sessionID string, turnsAdded int, at time.Time) error {
	if f.FailActivity {
		return errors.New("injected activity update failure")
	}
	return f.Inner.UpdateSessionActivity(ctx, actorID, sessionID, turnsAdded, at)
}
