// Package agentrun provides a high-level façade over the invocation pipeline
// (session resolution, bounded context assembly, guardrail gating, dispatch
// and turn persistence). Most applications interact with this package by:
//  1. Creating an AgentRun via New() around an agent invoker (optionally
//     overriding the default in-memory store and guardrail evaluator)
//  2. Running exchanges with InvokeTurn
//  3. Discovering an actor's sessions with ListSessions
//
// The façade delegates to pipeline.Pipeline while keeping setup ergonomics
// concise. All defaults are safe for local development and testing;
// production deployments typically supply a durable store, a real guardrail
// evaluator and a structured logger.
package agentrun

import (
	"context"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/pipeline"
)

// Options configures the AgentRun instance. It aliases pipeline.Options so
// callers set everything in one place.
type Options = pipeline.Options

// TurnRequest is the input to one exchange.
type TurnRequest = pipeline.TurnRequest

// TurnResponse is the outcome of one exchange.
type TurnResponse = pipeline.TurnResponse

// AgentRun is the high-level façade over the invocation pipeline.
type AgentRun struct {
	pipeline *pipeline.Pipeline
}

// New creates a new AgentRun around the given invoker with optional
// overrides. Any unset service is initialized with an in-memory
// implementation.
func New(invoker core.AgentInvoker, optFns ...func(o *Options)) *AgentRun {
	return &AgentRun{pipeline: pipeline.New(invoker, optFns...)}
}

// InvokeTurn runs one full exchange for the actor and returns once the turn
// pair is persisted. An empty SessionID starts a fresh session; the response
// carries the resolved id for follow-up turns.
func (a *AgentRun) InvokeTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	return a.pipeline.InvokeTurn(ctx, req)
}

// ListSessions returns the actor's sessions, most recent activity first.
func (a *AgentRun) ListSessions(ctx context.Context, actorID string) ([]*core.Session, error) {
	return a.pipeline.ListSessions(ctx, actorID)
}
