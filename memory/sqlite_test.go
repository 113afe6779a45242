package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "agentrun_test.db") + "?cache=shared&_busy_timeout=5000"
	store, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SessionLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreateSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.TurnCount)

	again, err := store.GetOrCreateSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, sess.CreatedAt.Unix(), again.CreatedAt.Unix(), "create must be idempotent")

	_, err = store.GetSession(ctx, "u1", "absent")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestSQLiteStore_ConcurrentCreateConverges(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.GetOrCreateSession(ctx, "u1", "race")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sessions, err := store.ListSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "concurrent creates must yield exactly one row")
}

func TestSQLiteStore_TurnOrdering(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreateSession(ctx, "u1", "s1")
	require.NoError(t, err)

	turns, err := store.ReadTurns(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns, "zero-turn session reads back empty, not an error")

	contents := []string{"a", "b", "c", "d"}
	for i, c := range contents {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		turn := core.NewTurn("u1", "s1", role, c)
		turn.Metadata = map[string]string{"idx": c}
		require.NoError(t, store.WriteTurn(ctx, turn))
	}

	turns, err = store.ReadTurns(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	for i, turn := range turns {
		assert.Equal(t, int64(i+1), turn.Seq, "sequence must be gapless")
		assert.Equal(t, contents[i], turn.Content, "oldest-first ordering")
	}
	assert.Equal(t, "a", turns[0].Metadata["idx"], "metadata round-trips")

	window, err := store.ReadTurns(ctx, "u1", "s1", 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "c", window[0].Content)
	assert.Equal(t, "d", window[1].Content)
}

func TestSQLiteStore_WriteTurnRejectsBadRole(t *testing.T) {
	store := newTestSQLiteStore(t)
	err := store.WriteTurn(context.Background(), core.NewTurn("u1", "s1", core.Role("tool"), "x"))
	assert.Error(t, err)
}

func TestSQLiteStore_UpdateSessionActivity(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreateSession(ctx, "u1", "s1")
	require.NoError(t, err)

	at := time.Now().UTC().Add(time.Minute)
	require.NoError(t, store.UpdateSessionActivity(ctx, "u1", "s1", 2, at))

	sess, err := store.GetSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.TurnCount)
	assert.WithinDuration(t, at, sess.LastActivityAt, time.Second)

	err = store.UpdateSessionActivity(ctx, "u1", "absent", 1, at)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestSQLiteStore_ListSessionsByActivity(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreateSession(ctx, "u1", "old")
	require.NoError(t, err)
	_, err = store.GetOrCreateSession(ctx, "u1", "new")
	require.NoError(t, err)
	_, err = store.GetOrCreateSession(ctx, "u2", "foreign")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.UpdateSessionActivity(ctx, "u1", "old", 0, now.Add(-time.Hour)))
	require.NoError(t, store.UpdateSessionActivity(ctx, "u1", "new", 0, now))

	sessions, err := store.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].SessionID)
	assert.Equal(t, "old", sessions[1].SessionID)
}
