package guardrail

import (
	"context"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

const (
	// SafeInputMessage is the fixed, non-revealing response returned when
	// the input is blocked.
	SafeInputMessage = "I can't help with that request."
	// SafeOutputMessage replaces the assistant response when the output is
	// blocked. It is what gets persisted, never the model's raw output.
	SafeOutputMessage = "The response was withheld by the safety policy."
	// SanitizedInputPlaceholder is persisted in place of blocked input text.
	SanitizedInputPlaceholder = "[input withheld by safety policy]"
	// UnavailableReason is the verdict reason used when the evaluator
	// itself failed and the gate fails closed.
	UnavailableReason = "safety check unavailable"
)

// Options configures a Gate.
type Options struct {
	// FailOpen lets the pipeline proceed when the evaluator itself fails.
	// Off by default: safety must not silently degrade the way read
	// availability does, so evaluator failure is treated as a block unless
	// an operator explicitly opts out.
	FailOpen bool
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Gate applies a GuardrailEvaluator to one direction of an exchange and
// resolves the verdict into pipeline-facing semantics.
type Gate struct {
	evaluator core.GuardrailEvaluator
	failOpen  bool
	logger    logging.Logger
}

// NewGate constructs a Gate around the given evaluator.
func NewGate(evaluator core.GuardrailEvaluator, optFns ...func(o *Options)) *Gate {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Gate{evaluator: evaluator, failOpen: opts.FailOpen, logger: opts.Logger}
}

// Evaluate runs the evaluator on text for the given direction. Evaluator
// failure resolves to a block verdict unless the gate was configured to fail
// open; either way the failure is logged and never returned as an error.
func (g *Gate) Evaluate(ctx context.Context, text string, dir core.Direction) core.GuardrailVerdict {
	verdict, err := g.evaluator.Evaluate(ctx, text, dir)
	if err != nil {
		if g.failOpen {
			g.logger.Warn("guardrail evaluator failed, failing open", "direction", string(dir), "error", err.Error())
			return core.GuardrailVerdict{Action: core.ActionAllow, Reason: UnavailableReason}
		}
		g.logger.Error("guardrail evaluator failed, failing closed", "direction", string(dir), "error", err.Error())
		return core.GuardrailVerdict{Action: core.ActionBlock, Reason: UnavailableReason}
	}

	if verdict.Action == core.ActionRedact && verdict.RedactedText == "" {
		// a redact verdict without substitute text would leak the original
		g.logger.Warn("redact verdict without redacted text, escalating to block", "direction", string(dir))
		verdict = core.GuardrailVerdict{Action: core.ActionBlock, Reason: verdict.Reason}
	}

	if verdict.Action != core.ActionAllow {
		g.logger.Warn("guardrail intervention", "direction", string(dir), "action", string(verdict.Action), "reason", verdict.Reason)
	}
	return verdict
}

// CheckInput evaluates the raw user turn before invocation.
func (g *Gate) CheckInput(ctx context.Context, text string) core.GuardrailVerdict {
	return g.Evaluate(ctx, text, core.DirectionInput)
}

// CheckOutput evaluates the raw assistant turn after invocation.
func (g *Gate) CheckOutput(ctx context.Context, text string) core.GuardrailVerdict {
	return g.Evaluate(ctx, text, core.DirectionOutput)
}
