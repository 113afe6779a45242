package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrun/core"
)

// lockTable provides one mutual-exclusion lock per (actor, session) pair.
// Locks are created on demand and removed again once no request holds or
// waits on them, so the table stays bounded by the number of active
// sessions.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sessionLock)}
}

func lockKey(actorID, sessionID string) string {
	return actorID + "\x00" + sessionID
}

// acquire blocks until the session lock is free, the wait timeout elapses
// (ErrConflict) or ctx is cancelled. The returned release function must be
// called exactly once.
func (t *lockTable) acquire(ctx context.Context, actorID, sessionID string, wait time.Duration) (func(), error) {
	key := lockKey(actorID, sessionID)

	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				t.unref(key, l)
			})
		}, nil
	case <-timer.C:
		t.unref(key, l)
		return nil, fmt.Errorf("%w: session %s/%s lock wait exceeded %s", core.ErrConflict, actorID, sessionID, wait)
	case <-ctx.Done():
		t.unref(key, l)
		// caller cancellation is not lock contention; surface it as such
		// so the request is not retried
		return nil, fmt.Errorf("session %s/%s lock wait: %w", actorID, sessionID, ctx.Err())
	}
}

func (t *lockTable) unref(key string, l *sessionLock) {
	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
	t.mu.Unlock()
}
