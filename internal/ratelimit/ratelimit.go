// Package ratelimit provides sliding-window admission control for outbound
// model calls. The limiter keeps a process-lifetime history of call times;
// state is not shared across instances and resets on restart.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultCallsPerMinute bounds outbound model calls per trailing minute.
	DefaultCallsPerMinute = 50

	window       = time.Minute
	pollInterval = time.Second
)

// Limiter admits callers once fewer than callsPerMinute calls have been
// recorded within the trailing 60-second window. Safe for concurrent use:
// the check-then-record sequence holds the mutex so concurrent admitters
// cannot both claim the last slot.
type Limiter struct {
	mu             sync.Mutex
	callsPerMinute int
	calls          []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter admitting at most callsPerMinute calls per minute.
// Non-positive values fall back to the default.
func New(callsPerMinute int) *Limiter {
	if callsPerMinute <= 0 {
		callsPerMinute = DefaultCallsPerMinute
	}
	return &Limiter{
		callsPerMinute: callsPerMinute,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// Wait blocks until a call slot is free, then records the call and returns.
// It polls with a short sleep rather than spinning; the only error returned
// is the context's, when the caller gives up while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.tryAdmit() {
			return nil
		}
		if err := l.sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// tryAdmit evicts expired entries and, if a slot is free, records the call.
func (l *Limiter) tryAdmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	if len(l.calls) >= l.callsPerMinute {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// InWindow returns the number of recorded calls still inside the trailing window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for _, t := range l.calls {
		if now.Sub(t) < window {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
