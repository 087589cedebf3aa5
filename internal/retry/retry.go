// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"time"
)

// Policy configures how an operation is retried. The zero value is not
// usable; start from Default.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// Floor is the wait before the first retry; each subsequent wait is
	// multiplied by Multiplier and capped at Cap.
	Floor      time.Duration
	Cap        time.Duration
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries everything.
	Retryable func(error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the standard policy: 3 attempts, exponential backoff from
// 4s up to a 10s ceiling.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Floor:       4 * time.Second,
		Cap:         10 * time.Second,
		Multiplier:  2,
		sleep:       sleepCtx,
	}
}

// Do runs op under the policy. Non-retryable errors and the final attempt's
// error propagate to the caller unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	wait := p.Floor
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		if err := p.sleep(ctx, wait); err != nil {
			return zero, err
		}
		wait = time.Duration(float64(wait) * p.Multiplier)
		if wait > p.Cap {
			wait = p.Cap
		}
	}
	return zero, lastErr
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
