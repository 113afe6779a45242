// Package history assembles the bounded prompt context for a new invocation:
// the last K persisted turns of a session, oldest-first, optionally trimmed
// to a character budget. Read failures degrade to an empty context instead
// of failing the pipeline.
package history

import (
	"context"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// Options configures an Assembler.
type Options struct {
	// MaxTurns bounds the window to the K most recent turns. Zero or
	// negative reads the full history.
	MaxTurns int
	// MaxChars bounds the total content length of the window. When
	// exceeded, whole oldest turns are dropped until the window fits; the
	// newest turns always survive. Zero disables the budget.
	MaxChars int
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Assembler builds prompt context from the memory store. The read path is
// fail-open: an unavailable store yields an empty, degraded context rather
// than an error, because losing recall must not take down the exchange.
type Assembler struct {
	store    core.MemoryStore
	maxTurns int
	maxChars int
	logger   logging.Logger
}

// NewAssembler constructs an Assembler with a default window of 10 turns.
func NewAssembler(store core.MemoryStore, optFns ...func(o *Options)) *Assembler {
	opts := Options{MaxTurns: 10, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Assembler{store: store, maxTurns: opts.MaxTurns, maxChars: opts.MaxChars, logger: opts.Logger}
}

// BuildContext reads the session's recent turns oldest-first. The returned
// degraded flag is true when the store read failed and the context is empty
// as a consequence; the caller logs it as an ErrMemoryDegraded diagnostic
// and proceeds.
func (a *Assembler) BuildContext(ctx context.Context, actorID, sessionID string) (turns []core.Turn, degraded bool) {
	turns, err := a.store.ReadTurns(ctx, actorID, sessionID, a.maxTurns)
	if err != nil {
		a.logger.Warn("context read degraded", "actor_id", actorID, "session_id", sessionID, "error", err.Error())
		return []core.Turn{}, true
	}
	return a.trim(turns), false
}

// trim drops whole oldest turns until the window fits the character budget.
func (a *Assembler) trim(turns []core.Turn) []core.Turn {
	if a.maxChars <= 0 {
		return turns
	}
	total := 0
	for _, t := range turns {
		total += len(t.Content)
	}
	for len(turns) > 0 && total > a.maxChars {
		total -= len(turns[0].Content)
		turns = turns[1:]
	}
	return turns
}
