package session

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/memory"
)

func TestResolver_GeneratesSessionID(t *testing.T) {
	resolver := NewResolver(memory.NewInMemoryStore())
	ctx := context.Background()

	sess, err := resolver.Resolve(ctx, "u1", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.SessionID, "u1-"), "generated ids are actor-prefixed")
	assert.Equal(t, 0, sess.TurnCount)

	other, err := resolver.Resolve(ctx, "u1", "")
	require.NoError(t, err)
	assert.NotEqual(t, sess.SessionID, other.SessionID, "each empty resolve yields a fresh session")
}

func TestResolver_ExistingSessionRoundTrip(t *testing.T) {
	store := memory.NewInMemoryStore()
	resolver := NewResolver(store)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "u1", "named")
	require.NoError(t, err)

	second, err := resolver.Resolve(ctx, "u1", "named")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "resolving twice must not recreate the session")
}

func TestResolver_ConcurrentResolveConverges(t *testing.T) {
	resolver := NewResolver(memory.NewInMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*core.Session, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := resolver.Resolve(ctx, "u1", "shared")
			require.NoError(t, err)
			results[i] = sess
		}(i)
	}
	wg.Wait()

	for _, sess := range results {
		assert.Equal(t, results[0].CreatedAt, sess.CreatedAt, "concurrent resolves must converge to one record")
	}
}

func TestResolver_Validation(t *testing.T) {
	resolver := NewResolver(memory.NewInMemoryStore())
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "", "s1")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = resolver.Resolve(ctx, strings.Repeat("a", 300), "s1")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = resolver.Resolve(ctx, "u1", "bad id with spaces")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = resolver.Resolve(ctx, "u1", strings.Repeat("s", 200))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = resolver.Resolve(ctx, "u1", "ok_id-1.2")
	assert.NoError(t, err)
}
