package core

// InvocationRequest is the request-scoped input to the agent invoker. It is
// never persisted directly; only turns derived from it are.
type InvocationRequest struct {
	InvocationID string `json:"invocation_id"`
	ActorID      string `json:"actor_id"`
	SessionID    string `json:"session_id"`
	// Context holds prior turns oldest-first, already guardrail-sanitized.
	Context   []Turn `json:"context"`
	InputText string `json:"input_text"`
}

// InvocationResult is the transient outcome of a single invocation.
type InvocationResult struct {
	OutputText string            `json:"output_text"`
	Model      string            `json:"model,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
