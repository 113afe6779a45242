package core

import "time"

// Session is a named, ordered conversation thread belonging to one actor.
// Identity is the (ActorID, SessionID) pair; SessionID is opaque and unique
// per actor, not globally. The pipeline never deletes sessions; it only
// creates them lazily and advances LastActivityAt / TurnCount after a
// successfully persisted exchange.
type Session struct {
	SessionID      string            `json:"session_id"`
	ActorID        string            `json:"actor_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	TurnCount      int               `json:"turn_count"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewSession creates a fresh session record with zero persisted turns.
func NewSession(actorID, sessionID string) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:      sessionID,
		ActorID:        actorID,
		CreatedAt:      now,
		LastActivityAt: now,
		Metadata:       map[string]string{},
	}
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return &clone
}
