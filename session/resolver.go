package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

const (
	maxActorIDLen   = 256
	maxSessionIDLen = 128
)

// Resolver resolves or lazily creates sessions. It performs syntactic
// validation only; actor identity is supplied pre-validated by an external
// identity collaborator.
type Resolver struct {
	store  core.MemoryStore
	logger logging.Logger
}

// Options configures a Resolver.
type Options struct {
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// NewResolver constructs a Resolver backed by the given store.
func NewResolver(store core.MemoryStore, optFns ...func(o *Options)) *Resolver {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Resolver{store: store, logger: opts.Logger}
}

// Resolve returns the canonical session for (actorID, sessionID). An empty
// sessionID generates a fresh actor-prefixed id. Creation is idempotent:
// concurrent calls for the same nonexistent id converge to one record via
// the store's atomic get-or-create. No other side effects.
func (r *Resolver) Resolve(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}

	if sessionID == "" {
		sessionID = GenerateSessionID(actorID)
		r.logger.Debug("generated session id", "actor_id", actorID, "session_id", sessionID)
	} else if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	sess, err := r.store.GetOrCreateSession(ctx, actorID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session %s/%s: %w", actorID, sessionID, err)
	}
	return sess, nil
}

// GenerateSessionID produces a new opaque session id scoped to the actor.
func GenerateSessionID(actorID string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s", actorID, token)
}

// ValidateActorID rejects empty or oversized actor ids.
func ValidateActorID(actorID string) error {
	if actorID == "" {
		return fmt.Errorf("%w: actor id must not be empty", core.ErrValidation)
	}
	if len(actorID) > maxActorIDLen {
		return fmt.Errorf("%w: actor id exceeds %d characters", core.ErrValidation, maxActorIDLen)
	}
	return nil
}

// ValidateSessionID rejects oversized session ids or ids containing
// characters outside [A-Za-z0-9._-].
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id must not be empty", core.ErrValidation)
	}
	if len(sessionID) > maxSessionIDLen {
		return fmt.Errorf("%w: session id exceeds %d characters", core.ErrValidation, maxSessionIDLen)
	}
	for _, c := range sessionID {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return fmt.Errorf("%w: session id contains disallowed character %q", core.ErrValidation, c)
		}
	}
	return nil
}
