package pipeline

import (
	"context"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
)

// exchange is the per-request state machine driving one InvokeTurn call
// through its lifecycle. Each transition is backed by exactly one component
// call; side exits to StateBlocked persist the sanitized record, side exits
// to StateFailed persist nothing beyond what already succeeded.
type exchange struct {
	p   *Pipeline
	req TurnRequest

	state        State
	invocationID string
	sess         *core.Session
	contextTurns []core.Turn
	degraded     bool
	inputText    string // guardrail-sanitized input, safe to persist/forward
}

func newExchange(p *Pipeline, req TurnRequest) *exchange {
	return &exchange{p: p, req: req, state: StateInit, invocationID: core.NewID()}
}

func (ex *exchange) transition(to State) {
	ex.p.logger.Debug("pipeline transition",
		"invocation_id", ex.invocationID,
		"from", ex.state.String(),
		"to", to.String())
	ex.state = to
}

func (ex *exchange) run(ctx context.Context) (*TurnResponse, error) {
	// INIT -> SESSION_RESOLVED
	sess, err := ex.p.resolver.Resolve(ctx, ex.req.ActorID, ex.req.SessionID)
	if err != nil {
		// pre-session-resolution failure persists nothing
		ex.transition(StateFailed)
		return nil, err
	}
	ex.sess = sess
	ex.transition(StateSessionResolved)

	// The session lock spans context assembly through persistence, so the
	// context read for this turn cannot race the previous turn's writes.
	release, err := ex.p.dispatcher.AcquireSession(ctx, sess.ActorID, sess.SessionID)
	if err != nil {
		ex.transition(StateFailed)
		return nil, err
	}
	defer release()

	// SESSION_RESOLVED -> CONTEXT_LOADED
	ex.contextTurns, ex.degraded = ex.p.assembler.BuildContext(ctx, sess.ActorID, sess.SessionID)
	if ex.degraded {
		ex.p.logger.Warn("proceeding with empty context",
			"invocation_id", ex.invocationID,
			"session_id", sess.SessionID,
			"error", core.ErrMemoryDegraded.Error())
	}
	ex.transition(StateContextLoaded)

	// CONTEXT_LOADED -> INPUT_CHECKED (or BLOCKED)
	verdict := ex.p.gate.CheckInput(ctx, ex.req.InputText)
	if !verdict.Allowed() {
		return ex.blockInput(ctx, verdict)
	}
	ex.inputText = verdict.Apply(ex.req.InputText)
	ex.transition(StateInputChecked)

	// INPUT_CHECKED -> INVOKING
	ex.transition(StateInvoking)
	result, err := ex.p.dispatcher.Invoke(ctx, core.InvocationRequest{
		InvocationID: ex.invocationID,
		ActorID:      sess.ActorID,
		SessionID:    sess.SessionID,
		Context:      ex.contextTurns,
		InputText:    ex.inputText,
	})
	if err != nil {
		// no partial assistant turn is persisted
		ex.transition(StateFailed)
		return nil, err
	}

	// INVOKING -> OUTPUT_CHECKED (or BLOCKED)
	// The invocation already ran, so from here the exchange must finish
	// even if the caller has gone away.
	outVerdict := ex.p.gate.CheckOutput(context.WithoutCancel(ctx), result.OutputText)
	if !outVerdict.Allowed() {
		return ex.blockOutput(ctx, outVerdict)
	}
	assistantText := outVerdict.Apply(result.OutputText)
	ex.transition(StateOutputChecked)

	// OUTPUT_CHECKED -> COMPLETE
	if err := ex.persist(ctx, ex.inputText, assistantText); err != nil {
		ex.transition(StateFailed)
		return nil, err
	}
	ex.transition(StateComplete)

	return &TurnResponse{
		SessionID:     sess.SessionID,
		AssistantText: assistantText,
		Degraded:      ex.degraded,
	}, nil
}

// blockInput records the sanitized exchange for an input-direction block: a
// placeholder user turn and the fixed safe message. The raw input never
// reaches the store or the invoker.
func (ex *exchange) blockInput(ctx context.Context, verdict core.GuardrailVerdict) (*TurnResponse, error) {
	ex.transition(StateBlocked)
	if err := ex.persist(ctx, guardrail.SanitizedInputPlaceholder, guardrail.SafeInputMessage); err != nil {
		return nil, err
	}
	return &TurnResponse{
		SessionID:     ex.sess.SessionID,
		AssistantText: guardrail.SafeInputMessage,
		Blocked:       true,
		BlockReason:   verdict.Reason,
		Degraded:      ex.degraded,
	}, nil
}

// blockOutput records the exchange for an output-direction block: the
// sanitized user turn as sent to the model, and the fixed safe message in
// place of the model's raw output.
func (ex *exchange) blockOutput(ctx context.Context, verdict core.GuardrailVerdict) (*TurnResponse, error) {
	ex.transition(StateBlocked)
	if err := ex.persist(ctx, ex.inputText, guardrail.SafeOutputMessage); err != nil {
		return nil, err
	}
	return &TurnResponse{
		SessionID:     ex.sess.SessionID,
		AssistantText: guardrail.SafeOutputMessage,
		Blocked:       true,
		BlockReason:   verdict.Reason,
		Degraded:      ex.degraded,
	}, nil
}

func (ex *exchange) persist(ctx context.Context, userText, assistantText string) error {
	// Persistence is detached from the caller: a client disconnect must
	// not drop a completed exchange on a store that honors ctx.
	ctx = context.WithoutCancel(ctx)

	userTurn := core.NewUserTurn(ex.sess.ActorID, ex.sess.SessionID, userText)
	assistantTurn := core.NewAssistantTurn(ex.sess.ActorID, ex.sess.SessionID, assistantText)
	userTurn.Metadata = map[string]string{"invocation_id": ex.invocationID}
	assistantTurn.Metadata = map[string]string{"invocation_id": ex.invocationID}
	return ex.p.persister.Persist(ctx, ex.sess, userTurn, assistantTurn)
}
