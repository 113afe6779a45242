package guardrail

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/hupe1980/agentrun/core"
)

// RegoEvaluator evaluates text against an OPA rego policy. The policy lives
// under the guardrail package and exposes a decision document:
//
//	package guardrail
//
//	default decision = {"action": "allow"}
//
//	decision = {"action": "block", "reason": "disallowed-topic"} {
//	    contains(lower(input.text), "forbidden")
//	}
//
// The decision may be a bare action string or an object with action, reason
// and redacted fields. Input carries {text, direction}.
type RegoEvaluator struct {
	query rego.PreparedEvalQuery
}

var _ core.GuardrailEvaluator = (*RegoEvaluator)(nil)

// NewRegoEvaluator prepares the policy once; evaluation reuses the prepared
// query.
func NewRegoEvaluator(ctx context.Context, policyContent string) (*RegoEvaluator, error) {
	r := rego.New(
		rego.Query("data.guardrail.decision"),
		rego.Module("guardrail.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &RegoEvaluator{query: query}, nil
}

// Evaluate runs the prepared query with {text, direction} as input.
func (e *RegoEvaluator) Evaluate(ctx context.Context, text string, dir core.Direction) (core.GuardrailVerdict, error) {
	input := map[string]any{
		"text":      text,
		"direction": string(dir),
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return core.GuardrailVerdict{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// the policy is expected to define a default decision
		return core.GuardrailVerdict{Action: core.ActionAllow, Reason: "no-decision"}, nil
	}

	return parseDecision(results[0].Expressions[0].Value)
}

func parseDecision(val any) (core.GuardrailVerdict, error) {
	switch v := val.(type) {
	case string:
		action, err := parseAction(v)
		if err != nil {
			return core.GuardrailVerdict{}, err
		}
		return core.GuardrailVerdict{Action: action}, nil
	case map[string]any:
		actionStr, _ := v["action"].(string)
		action, err := parseAction(actionStr)
		if err != nil {
			return core.GuardrailVerdict{}, err
		}
		verdict := core.GuardrailVerdict{Action: action}
		if reason, ok := v["reason"].(string); ok {
			verdict.Reason = reason
		}
		if redacted, ok := v["redacted"].(string); ok {
			verdict.RedactedText = redacted
		}
		return verdict, nil
	default:
		return core.GuardrailVerdict{}, fmt.Errorf("unexpected decision type %T", val)
	}
}

func parseAction(s string) (core.GuardrailAction, error) {
	switch s {
	case "allow":
		return core.ActionAllow, nil
	case "block":
		return core.ActionBlock, nil
	case "redact":
		return core.ActionRedact, nil
	default:
		return "", fmt.Errorf("unknown decision action %q", s)
	}
}

// DefaultPolicy is a permissive starter policy blocking nothing.
const DefaultPolicy = `
package guardrail

default decision = {"action": "allow"}
`
