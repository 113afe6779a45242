// Package guardrail applies content-safety policy to the input and output
// sides of an exchange. The Gate owns the intervention semantics
// (allow/redact/block, fail-closed on evaluator failure); evaluators supply
// the judgment itself, either from a static deny-list or a rego policy.
package guardrail
