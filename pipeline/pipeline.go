package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/dispatch"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/history"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/memory"
	"github.com/hupe1980/agentrun/session"
)

const maxInputLen = 32768

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MemoryStore persists sessions and turns. Defaults to the in-memory
	// store.
	MemoryStore core.MemoryStore
	// GuardrailEvaluator judges input and output text. Defaults to a
	// permissive keyword evaluator with empty term lists.
	GuardrailEvaluator core.GuardrailEvaluator
	// GuardrailFailOpen lets exchanges proceed when the evaluator itself
	// fails. Off by default (fail closed).
	GuardrailFailOpen bool

	// MaxContextTurns bounds the assembled context window.
	MaxContextTurns int
	// MaxContextChars optionally bounds the window's total content length.
	MaxContextChars int

	// Dispatcher bounds.
	MaxConcurrentInvocations int
	LockWaitTimeout          time.Duration
	InvocationTimeout        time.Duration
	MaxRetries               int
	RetryBackoffBase         time.Duration

	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// TurnRequest is the input to InvokeTurn. SessionID may be empty to start a
// fresh session.
type TurnRequest struct {
	ActorID   string `json:"actor_id"`
	SessionID string `json:"session_id,omitempty"`
	InputText string `json:"input_text"`
}

// TurnResponse is the outcome of one exchange. Blocked marks a guardrail
// intervention; AssistantText then carries the fixed safe message, never the
// raw content. Degraded means history was unavailable and the exchange ran
// with an empty context.
type TurnResponse struct {
	SessionID     string `json:"session_id"`
	AssistantText string `json:"assistant_text"`
	Blocked       bool   `json:"blocked"`
	BlockReason   string `json:"block_reason,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
}

// Pipeline is the public surface of the invocation core: a single
// synchronous entry point (InvokeTurn) plus read-only session discovery
// (ListSessions). Public methods are safe for concurrent use; requests for
// the same session serialize on the dispatcher's session lock, requests for
// distinct sessions proceed in parallel up to the worker bound.
type Pipeline struct {
	store      core.MemoryStore
	resolver   *session.Resolver
	assembler  *history.Assembler
	gate       *guardrail.Gate
	dispatcher *dispatch.Dispatcher
	persister  *Persister
	logger     logging.Logger
}

// New constructs a Pipeline around the given invoker with optional
// overrides. All defaults are safe for local development and testing;
// production deployments supply a durable store, a real guardrail evaluator
// and a structured logger.
func New(invoker core.AgentInvoker, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		MemoryStore:              memory.NewInMemoryStore(),
		GuardrailEvaluator:       guardrail.NewKeywordEvaluator(),
		MaxContextTurns:          10,
		MaxConcurrentInvocations: 32,
		LockWaitTimeout:          5 * time.Second,
		InvocationTimeout:        2 * time.Minute,
		MaxRetries:               2,
		RetryBackoffBase:         200 * time.Millisecond,
		Logger:                   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}
	if opts.GuardrailEvaluator == nil {
		opts.GuardrailEvaluator = guardrail.NewKeywordEvaluator()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Pipeline{
		store: opts.MemoryStore,
		resolver: session.NewResolver(opts.MemoryStore, func(o *session.Options) {
			o.Logger = opts.Logger
		}),
		assembler: history.NewAssembler(opts.MemoryStore, func(o *history.Options) {
			o.MaxTurns = opts.MaxContextTurns
			o.MaxChars = opts.MaxContextChars
			o.Logger = opts.Logger
		}),
		gate: guardrail.NewGate(opts.GuardrailEvaluator, func(o *guardrail.Options) {
			o.FailOpen = opts.GuardrailFailOpen
			o.Logger = opts.Logger
		}),
		dispatcher: dispatch.New(invoker, func(o *dispatch.Options) {
			o.MaxConcurrentInvocations = opts.MaxConcurrentInvocations
			o.LockWaitTimeout = opts.LockWaitTimeout
			o.InvocationTimeout = opts.InvocationTimeout
			o.MaxRetries = opts.MaxRetries
			o.BackoffBase = opts.RetryBackoffBase
			o.Logger = opts.Logger
		}),
		persister: NewPersister(opts.MemoryStore, opts.Logger),
		logger:    opts.Logger,
	}
}

// InvokeTurn runs one full exchange for the actor: resolve the session,
// assemble context, check input, invoke, check output, persist. It returns
// once the exchange is persisted (or blocked-and-persisted); infrastructure
// failures surface as typed errors distinguishing retryable conditions
// (core.ErrConflict, core.ErrTimeout) from terminal ones.
func (p *Pipeline) InvokeTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if strings.TrimSpace(req.InputText) == "" {
		return nil, fmt.Errorf("%w: input text must not be empty", core.ErrValidation)
	}
	if len(req.InputText) > maxInputLen {
		return nil, fmt.Errorf("%w: input text exceeds %d characters", core.ErrValidation, maxInputLen)
	}

	ex := newExchange(p, req)
	return ex.run(ctx)
}

// ListSessions returns the actor's sessions, most recent activity first.
func (p *Pipeline) ListSessions(ctx context.Context, actorID string) ([]*core.Session, error) {
	if err := session.ValidateActorID(actorID); err != nil {
		return nil, err
	}
	return p.store.ListSessions(ctx, actorID)
}
