package guardrail

import (
	"context"
	"strings"

	"github.com/hupe1980/agentrun/core"
)

// KeywordEvaluator is a process-local GuardrailEvaluator driven by static
// deny and redact lists with case-insensitive substring matching. It is the
// default for tests and local development; production deployments supply a
// RegoEvaluator or an external judge.
type KeywordEvaluator struct {
	blockTerms  []string
	redactTerms []string
	replacement string
}

var _ core.GuardrailEvaluator = (*KeywordEvaluator)(nil)

// KeywordOptions configures a KeywordEvaluator.
type KeywordOptions struct {
	// BlockTerms cause a block verdict when found in the text.
	BlockTerms []string
	// RedactTerms are replaced by Replacement, yielding a redact verdict.
	RedactTerms []string
	// Replacement substitutes redacted terms. Defaults to "[redacted]".
	Replacement string
}

// NewKeywordEvaluator constructs an evaluator from the given term lists.
func NewKeywordEvaluator(optFns ...func(o *KeywordOptions)) *KeywordEvaluator {
	opts := KeywordOptions{Replacement: "[redacted]"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Replacement == "" {
		opts.Replacement = "[redacted]"
	}
	return &KeywordEvaluator{
		blockTerms:  lower(opts.BlockTerms),
		redactTerms: lower(opts.RedactTerms),
		replacement: opts.Replacement,
	}
}

// Evaluate applies the deny list first, then the redact list.
func (e *KeywordEvaluator) Evaluate(ctx context.Context, text string, dir core.Direction) (core.GuardrailVerdict, error) {
	lowered := strings.ToLower(text)

	for _, term := range e.blockTerms {
		if strings.Contains(lowered, term) {
			return core.GuardrailVerdict{Action: core.ActionBlock, Reason: "disallowed-topic"}, nil
		}
	}

	redacted := text
	hit := false
	for _, term := range e.redactTerms {
		from := 0
		for {
			idx := strings.Index(strings.ToLower(redacted[from:]), term)
			if idx < 0 {
				break
			}
			idx += from
			redacted = redacted[:idx] + e.replacement + redacted[idx+len(term):]
			// resume after the inserted replacement so a term occurring
			// inside it is never rescanned
			from = idx + len(e.replacement)
			hit = true
		}
	}
	if hit {
		return core.GuardrailVerdict{Action: core.ActionRedact, Reason: "sensitive-term", RedactedText: redacted}, nil
	}

	return core.GuardrailVerdict{Action: core.ActionAllow}, nil
}

func lower(terms []string) []string {
	res := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			res = append(res, strings.ToLower(t))
		}
	}
	return res
}
