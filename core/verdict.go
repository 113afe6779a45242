package core

// Direction indicates which side of the exchange a guardrail evaluation
// applies to.
type Direction string

const (
	// DirectionInput evaluates the raw user turn before invocation.
	DirectionInput Direction = "input"
	// DirectionOutput evaluates the raw assistant turn after invocation.
	DirectionOutput Direction = "output"
)

// GuardrailAction is the safety judgment for a piece of text.
type GuardrailAction string

const (
	// ActionAllow lets the pipeline proceed with the original text.
	ActionAllow GuardrailAction = "allow"
	// ActionBlock halts the stage; the raw text must not be persisted or
	// forwarded downstream.
	ActionBlock GuardrailAction = "block"
	// ActionRedact substitutes RedactedText for the evaluated text in both
	// the model-facing context and the persisted turn.
	ActionRedact GuardrailAction = "redact"
)

// GuardrailVerdict is produced independently for the input and output
// directions. Raw blocked content is never carried in the verdict, only an
// operator-facing reason and, for redaction, the sanitized form.
type GuardrailVerdict struct {
	Action       GuardrailAction `json:"action"`
	Reason       string          `json:"reason,omitempty"`
	RedactedText string          `json:"redacted_text,omitempty"`
}

// Allowed reports whether the pipeline may proceed (allow or redact).
func (v GuardrailVerdict) Allowed() bool { return v.Action != ActionBlock }

// Apply returns the text the pipeline should continue with: the original on
// allow, the redacted form on redact, empty on block.
func (v GuardrailVerdict) Apply(original string) string {
	switch v.Action {
	case ActionRedact:
		return v.RedactedText
	case ActionBlock:
		return ""
	default:
		return original
	}
}
