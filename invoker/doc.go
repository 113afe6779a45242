// Package invoker provides AgentInvoker implementations: a deterministic
// mock for tests and local development, and provider-backed adapters in the
// anthropic and openai subpackages.
package invoker
