package pipeline

// State enumerates the orchestrator's lifecycle positions. Transitions are
// strictly forward along the happy path with terminal side exits to
// StateBlocked (guardrail intervention) and StateFailed (unrecoverable
// error). The orchestrator never retries across a state boundary; retries
// live inside the dispatcher only.
type State int

const (
	// StateInit is the lifecycle start, before any external call.
	StateInit State = iota
	// StateSessionResolved follows a successful session resolve.
	StateSessionResolved
	// StateContextLoaded follows context assembly (possibly degraded).
	StateContextLoaded
	// StateInputChecked follows the input-direction guardrail check.
	StateInputChecked
	// StateInvoking covers the dispatched agent invocation.
	StateInvoking
	// StateOutputChecked follows the output-direction guardrail check.
	StateOutputChecked
	// StateComplete is the terminal state of a persisted exchange.
	StateComplete
	// StateBlocked is the terminal state of a guardrail-blocked exchange.
	StateBlocked
	// StateFailed is the terminal state of an unrecoverable error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSessionResolved:
		return "SESSION_RESOLVED"
	case StateContextLoaded:
		return "CONTEXT_LOADED"
	case StateInputChecked:
		return "INPUT_CHECKED"
	case StateInvoking:
		return "INVOKING"
	case StateOutputChecked:
		return "OUTPUT_CHECKED"
	case StateComplete:
		return "COMPLETE"
	case StateBlocked:
		return "BLOCKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateBlocked || s == StateFailed
}
