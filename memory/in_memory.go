package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrun/core"
)

// sessionKey identifies a session within one actor's namespace.
type sessionKey struct {
	actorID   string
	sessionID string
}

// InMemoryStore is a volatile MemoryStore keeping sessions and their ordered
// turn logs in process-local maps. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Returned sessions and turns are
// copies to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*core.Session
	turns    map[sessionKey][]core.Turn
}

// Compile-time interface assertion.
var _ core.MemoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[sessionKey]*core.Session),
		turns:    make(map[sessionKey][]core.Turn),
	}
}

// GetOrCreateSession returns the existing session or creates it. The single
// write lock makes concurrent creates for the same key converge to one
// record.
func (s *InMemoryStore) GetOrCreateSession(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{actorID, sessionID}
	if sess, ok := s.sessions[key]; ok {
		return sess.Clone(), nil
	}
	sess := core.NewSession(actorID, sessionID)
	s.sessions[key] = sess
	return sess.Clone(), nil
}

// GetSession returns the session or core.ErrSessionNotFound.
func (s *InMemoryStore) GetSession(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionKey{actorID, sessionID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, actorID, sessionID)
	}
	return sess.Clone(), nil
}

// ListSessions returns the actor's sessions ordered by most recent activity.
func (s *InMemoryStore) ListSessions(ctx context.Context, actorID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*core.Session
	for key, sess := range s.sessions {
		if key.actorID == actorID {
			res = append(res, sess.Clone())
		}
	}
	// insertion order of a map is unspecified; sort newest activity first
	for i := 1; i < len(res); i++ {
		for j := i; j > 0 && res[j].LastActivityAt.After(res[j-1].LastActivityAt); j-- {
			res[j], res[j-1] = res[j-1], res[j]
		}
	}
	return res, nil
}

// ReadTurns returns up to limit most recent turns oldest-first. A session
// with no turns yields an empty slice.
func (s *InMemoryStore) ReadTurns(ctx context.Context, actorID, sessionID string, limit int) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.turns[sessionKey{actorID, sessionID}]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	res := make([]core.Turn, len(log))
	copy(res, log)
	return res, nil
}

// WriteTurn appends a turn, assigning the session's next sequence number.
func (s *InMemoryStore) WriteTurn(ctx context.Context, t core.Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("invalid turn role %q", t.Role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{t.ActorID, t.SessionID}
	t.Seq = int64(len(s.turns[key])) + 1
	s.turns[key] = append(s.turns[key], t)
	return nil
}

// UpdateSessionActivity advances the session's counters. Called by the turn
// persister only after all turn writes of an exchange succeeded.
func (s *InMemoryStore) UpdateSessionActivity(ctx context.Context, actorID, sessionID string, turnsAdded int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey{actorID, sessionID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, actorID, sessionID)
	}
	sess.TurnCount += turnsAdded
	sess.LastActivityAt = at
	return nil
}
