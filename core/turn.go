package core

import (
	"time"

	"github.com/google/uuid"
)

// Role tags a turn as authored by the user or the assistant.
type Role string

const (
	// RoleUser marks a turn supplied by the calling actor.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the agent invoker (or a safe
	// replacement when the guardrail intervened).
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Turn is one role-tagged message within a session. After persistence it is
// immutable. Seq is assigned by the memory store and increases by exactly one
// per persisted turn of the session, so history reads can assert gapless
// ordering independently of wall-clock timestamps.
type Turn struct {
	EventID   string            `json:"event_id"`
	SessionID string            `json:"session_id"`
	ActorID   string            `json:"actor_id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Seq       int64             `json:"seq"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewTurn creates a turn with a fresh event id and UTC timestamp. Seq is
// left zero; the store assigns it on write.
func NewTurn(actorID, sessionID string, role Role, content string) Turn {
	return Turn{
		EventID:   NewID(),
		SessionID: sessionID,
		ActorID:   actorID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserTurn creates a user-authored turn.
func NewUserTurn(actorID, sessionID, content string) Turn {
	return NewTurn(actorID, sessionID, RoleUser, content)
}

// NewAssistantTurn creates an assistant-authored turn.
func NewAssistantTurn(actorID, sessionID, content string) Turn {
	return NewTurn(actorID, sessionID, RoleAssistant, content)
}

// NewID generates a new unique identifier for turns and invocations.
func NewID() string { return uuid.NewString() }
