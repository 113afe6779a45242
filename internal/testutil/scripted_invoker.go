package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/core"
)

// ScriptedInvoker returns canned results or errors in call order. When the
// script runs out it keeps returning the last entry. It records every
// request it sees.
type ScriptedInvoker struct {
	mu       sync.Mutex
	script   []ScriptStep
	calls    int
	requests []core.InvocationRequest

	// Delay blocks each call until the context expires or the delay
	// elapses, for timeout tests. Implemented via OnInvoke below.
	OnInvoke func(ctx context.Context, req core.InvocationRequest) error
}

// ScriptStep is one canned invoker outcome.
type ScriptStep struct {
	Output string
	Err    error
}

var _ core.AgentInvoker = (*ScriptedInvoker)(nil)

// NewScriptedInvoker builds an invoker from the given steps. With no steps
// it echoes a fixed acknowledgement.
func NewScriptedInvoker(steps ...ScriptStep) *ScriptedInvoker {
	if len(steps) == 0 {
		steps = []ScriptStep{{Output: "ack"}}
	}
	return &ScriptedInvoker{script: steps}
}

// Calls returns how many invocations were attempted.
func (s *ScriptedInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns a copy of every request received.
func (s *ScriptedInvoker) Requests() []core.InvocationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]core.InvocationRequest, len(s.requests))
	copy(res, s.requests)
	return res
}

// Invoke implements core.AgentInvoker.
func (s *ScriptedInvoker) Invoke(ctx context.Context, req core.InvocationRequest) (*core.InvocationResult, error) {
	s.mu.Lock()
	step := s.script[min(s.calls, len(s.script)-1)]
	s.calls++
	s.requests = append(s.requests, req)
	hook := s.OnInvoke
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, req); err != nil {
			return nil, err
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &core.InvocationResult{OutputText: step.Output, Model: "scripted"}, nil
}
