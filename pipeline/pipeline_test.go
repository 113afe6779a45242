package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/internal/testutil"
	"github.com/hupe1980/agentrun/memory"
)

func TestPipeline_NewActorFirstTurn(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Output: "hello back"})
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
	})

	resp, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, strings.HasPrefix(resp.SessionID, "actor-1-"))
	assert.Equal(t, "hello back", resp.AssistantText)
	assert.False(t, resp.Blocked)
	assert.False(t, resp.Degraded)

	sess, err := store.GetSession(context.Background(), "actor-1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.TurnCount)

	turns, err := store.ReadTurns(context.Background(), "actor-1", resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, int64(1), turns[0].Seq)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello back", turns[1].Content)
	assert.Equal(t, int64(2), turns[1].Seq)
}

func TestPipeline_SecondTurnCarriesContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker(
		testutil.ScriptStep{Output: "first answer"},
		testutil.ScriptStep{Output: "second answer"},
	)
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
	})

	ctx := context.Background()
	first, err := p.InvokeTurn(ctx, TurnRequest{ActorID: "actor-1", InputText: "one"})
	require.NoError(t, err)

	second, err := p.InvokeTurn(ctx, TurnRequest{
		ActorID:   "actor-1",
		SessionID: first.SessionID,
		InputText: "two",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	reqs := invoker.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Context)
	require.Len(t, reqs[1].Context, 2)
	assert.Equal(t, "one", reqs[1].Context[0].Content)
	assert.Equal(t, "first answer", reqs[1].Context[1].Content)

	sess, err := store.GetSession(ctx, "actor-1", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, sess.TurnCount)
}

func TestPipeline_InputBlocked(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker()
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
		o.GuardrailEvaluator = guardrail.NewKeywordEvaluator(func(ko *guardrail.KeywordOptions) {
			ko.BlockTerms = []string{"forbidden"}
		})
	})

	resp, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "tell me about the forbidden thing",
	})
	require.NoError(t, err)

	assert.True(t, resp.Blocked)
	assert.Equal(t, guardrail.SafeInputMessage, resp.AssistantText)
	assert.Equal(t, "disallowed-topic", resp.BlockReason)

	// the invoker must never see blocked input
	assert.Zero(t, invoker.Calls())

	// the persisted record holds the placeholder, never the raw text
	turns, err := store.ReadTurns(context.Background(), "actor-1", resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, guardrail.SanitizedInputPlaceholder, turns[0].Content)
	assert.Equal(t, guardrail.SafeInputMessage, turns[1].Content)
	for _, turn := range turns {
		assert.NotContains(t, turn.Content, "forbidden")
	}
}

func TestPipeline_InputRedacted(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Output: "noted"})
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
		o.GuardrailEvaluator = guardrail.NewKeywordEvaluator(func(ko *guardrail.KeywordOptions) {
			ko.RedactTerms = []string{"secret-token"}
		})
	})

	resp, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "my key is secret-token ok",
	})
	require.NoError(t, err)
	assert.False(t, resp.Blocked)

	reqs := invoker.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "my key is [redacted] ok", reqs[0].InputText)

	turns, err := store.ReadTurns(context.Background(), "actor-1", resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "my key is [redacted] ok", turns[0].Content)
}

func TestPipeline_OutputBlocked(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Output: "here is something forbidden"})
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
		o.GuardrailEvaluator = guardrail.NewKeywordEvaluator(func(ko *guardrail.KeywordOptions) {
			ko.BlockTerms = []string{"forbidden"}
		})
	})

	resp, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "an innocent question",
	})
	require.NoError(t, err)

	assert.True(t, resp.Blocked)
	assert.Equal(t, guardrail.SafeOutputMessage, resp.AssistantText)

	turns, err := store.ReadTurns(context.Background(), "actor-1", resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "an innocent question", turns[0].Content)
	assert.Equal(t, guardrail.SafeOutputMessage, turns[1].Content)
}

func TestPipeline_DegradedContextStillCompletes(t *testing.T) {
	store := testutil.NewFailingStore(memory.NewInMemoryStore())
	store.FailReads = true
	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Output: "answer"})
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
	})

	resp, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "hello",
	})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Equal(t, "answer", resp.AssistantText)

	reqs := invoker.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Context)

	// both turns still reach the store
	assert.Len(t, store.Writes(), 2)
}

func TestPipeline_AssistantWriteFailure(t *testing.T) {
	store := testutil.NewFailingStore(memory.NewInMemoryStore())
	store.FailAssistantWrite = true
	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Output: "answer"})
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
	})

	_, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "hello",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMemoryWriteFailed))

	// the user turn landed before the assistant write failed
	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, core.RoleUser, writes[0].Role)
}

func TestPipeline_PersistsAfterClientDisconnect(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc", filepath.Join(t.TempDir(), "turns.db"))
	store, err := memory.NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Output: "answer"})
	invoker.OnInvoke = func(context.Context, core.InvocationRequest) error {
		cancel() // the client goes away mid-invocation
		return nil
	}
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
	})

	resp, err := p.InvokeTurn(ctx, TurnRequest{ActorID: "actor-1", InputText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.AssistantText)

	// the completed exchange landed despite the cancelled caller context
	turns, err := store.ReadTurns(context.Background(), "actor-1", resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	sess, err := store.GetSession(context.Background(), "actor-1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.TurnCount)
}

func TestPipeline_InvokerFailureSurfacesTyped(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker(testutil.ScriptStep{Err: errors.New("model exploded")})
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
		o.MaxRetries = 0
	})

	resp, err := p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "actor-1",
		InputText: "hello",
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, core.ErrAgentInvocation))

	// a failed invocation persists nothing
	sessions, err := store.ListSessions(context.Background(), "actor-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 0, sessions[0].TurnCount)
}

func TestPipeline_InputValidation(t *testing.T) {
	p := New(testutil.NewScriptedInvoker())

	_, err := p.InvokeTurn(context.Background(), TurnRequest{ActorID: "a", InputText: "   "})
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = p.InvokeTurn(context.Background(), TurnRequest{
		ActorID:   "a",
		InputText: strings.Repeat("x", maxInputLen+1),
	})
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = p.InvokeTurn(context.Background(), TurnRequest{ActorID: "", InputText: "hi"})
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestPipeline_SameSessionSerializes(t *testing.T) {
	store := memory.NewInMemoryStore()
	invoker := testutil.NewScriptedInvoker(
		testutil.ScriptStep{Output: "a"},
		testutil.ScriptStep{Output: "b"},
	)
	invoker.OnInvoke = func(ctx context.Context, req core.InvocationRequest) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}
	p := New(invoker, func(o *Options) {
		o.MemoryStore = store
	})

	ctx := context.Background()
	_, err := p.store.GetOrCreateSession(ctx, "actor-1", "shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.InvokeTurn(ctx, TurnRequest{
				ActorID:   "actor-1",
				SessionID: "shared",
				InputText: "go",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// the session lock spans read-through-persist, so the exchange that ran
	// second must have seen the first exchange's two turns in its context
	reqs := invoker.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Context)
	assert.Len(t, reqs[1].Context, 2)

	turns, err := store.ReadTurns(ctx, "actor-1", "shared", 10)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	for i, turn := range turns {
		assert.Equal(t, int64(i+1), turn.Seq)
	}
}

func TestPipeline_ListSessions(t *testing.T) {
	store := memory.NewInMemoryStore()
	p := New(testutil.NewScriptedInvoker(), func(o *Options) {
		o.MemoryStore = store
	})

	ctx := context.Background()
	first, err := p.InvokeTurn(ctx, TurnRequest{ActorID: "actor-1", InputText: "one"})
	require.NoError(t, err)
	second, err := p.InvokeTurn(ctx, TurnRequest{ActorID: "actor-1", InputText: "two"})
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)

	sessions, err := p.ListSessions(ctx, "actor-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	_, err = p.ListSessions(ctx, "")
	assert.True(t, errors.Is(err, core.ErrValidation))
}
