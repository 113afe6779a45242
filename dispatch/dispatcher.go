package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations bounds invocations across all sessions.
	MaxConcurrentInvocations int
	// LockWaitTimeout bounds how long a request waits for a busy session
	// before failing with ErrConflict.
	LockWaitTimeout time.Duration
	// InvocationTimeout is the hard deadline for a single invocation
	// including its retries.
	InvocationTimeout time.Duration
	// MaxRetries is the number of additional attempts for transient
	// invoker failures.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Dispatcher owns the per-session serialization point and the invoker call.
// The session lock is acquired before context assembly and released only
// after persistence completes, so context assembled for turn N can never
// race the persistence of turn N-1 in the same session. Distinct sessions
// proceed fully in parallel up to the global bound.
type Dispatcher struct {
	invoker core.AgentInvoker
	locks   *lockTable
	sem     chan struct{}

	lockWait      time.Duration
	invokeTimeout time.Duration
	maxRetries    int
	backoffBase   time.Duration

	logger logging.Logger
}

// New constructs a Dispatcher with production defaults.
func New(invoker core.AgentInvoker, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxConcurrentInvocations: 32,
		LockWaitTimeout:          5 * time.Second,
		InvocationTimeout:        2 * time.Minute,
		MaxRetries:               2,
		BackoffBase:              200 * time.Millisecond,
		Logger:                   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxConcurrentInvocations <= 0 {
		opts.MaxConcurrentInvocations = 1
	}

	return &Dispatcher{
		invoker:       invoker,
		locks:         newLockTable(),
		sem:           make(chan struct{}, opts.MaxConcurrentInvocations),
		lockWait:      opts.LockWaitTimeout,
		invokeTimeout: opts.InvocationTimeout,
		maxRetries:    opts.MaxRetries,
		backoffBase:   opts.BackoffBase,
		logger:        opts.Logger,
	}
}

// AcquireSession takes the session's exclusive lock. A second request for
// the same session blocks until release, bounded by the lock-wait timeout,
// after which it fails with ErrConflict. The returned release function must
// be called after persistence finishes (success or failure).
func (d *Dispatcher) AcquireSession(ctx context.Context, actorID, sessionID string) (func(), error) {
	return d.locks.acquire(ctx, actorID, sessionID, d.lockWait)
}

// Invoke calls the agent invoker under the global concurrency bound with the
// hard per-invocation deadline. Transient failures are retried with
// exponential backoff; non-transient failures surface immediately as
// ErrAgentInvocation. The invocation runs detached from the caller's
// cancellation: a client disconnect does not abort work in flight, only the
// deadline does.
func (d *Dispatcher) Invoke(ctx context.Context, req core.InvocationRequest) (*core.InvocationResult, error) {
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-ctx.Done():
		// a cancelled caller is not a deadline outcome
		return nil, fmt.Errorf("waiting for worker slot: %w", ctx.Err())
	}

	// Detach from client cancellation: the external invoker call is not
	// assumed cheaply cancellable, so the exchange runs to completion and
	// only the hard deadline cuts it off.
	invokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.invokeTimeout)
	defer cancel()

	start := time.Now()
	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := d.invoker.Invoke(invokeCtx, req)
		if err == nil {
			d.logger.Debug("invocation completed",
				"session_id", req.SessionID,
				"invocation_id", req.InvocationID,
				"attempts", attempt+1,
				"duration", time.Since(start).String())
			return result, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || invokeCtx.Err() != nil {
			return nil, fmt.Errorf("%w after %s: %v", core.ErrTimeout, time.Since(start).Round(time.Millisecond), err)
		}
		if !core.IsTransient(err) {
			return nil, fmt.Errorf("%w: %v", core.ErrAgentInvocation, err)
		}

		lastErr = err
		if attempt >= d.maxRetries {
			break
		}

		backoff := d.backoffBase << attempt
		d.logger.Warn("transient invoker failure, retrying",
			"session_id", req.SessionID,
			"attempt", attempt+1,
			"backoff", backoff.String(),
			"error", err.Error())
		select {
		case <-time.After(backoff):
		case <-invokeCtx.Done():
			return nil, fmt.Errorf("%w during retry backoff", core.ErrTimeout)
		}
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", core.ErrAgentInvocation, lastErr)
}
