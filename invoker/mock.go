package invoker

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/core"
)

// MockInvoker is a lightweight in-memory AgentInvoker useful for tests and
// examples. Canned responses are matched on the exact input text; anything
// else receives a deterministic echo.
type MockInvoker struct {
	responses map[string]string
}

var _ core.AgentInvoker = (*MockInvoker)(nil)

// NewMockInvoker constructs an empty MockInvoker.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for an input text.
func (m *MockInvoker) AddResponse(input, output string) { m.responses[input] = output }

// Invoke implements core.AgentInvoker.
func (m *MockInvoker) Invoke(ctx context.Context, req core.InvocationRequest) (*core.InvocationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	output := m.responses[req.InputText]
	if output == "" {
		output = fmt.Sprintf("Mock response to: %s", req.InputText)
	}
	return &core.InvocationResult{OutputText: output, Model: "mock"}, nil
}
