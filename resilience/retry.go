// Package resilience provides retry-with-backoff and circuit-breaker
// primitives for calls to external providers (embedding, LLM, moderation),
// grounded on the WessleyAI example's pkg/fn/retry.go and
// pkg/resilience/circuitbreaker.go.
package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry provides sensible retry defaults for provider calls.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Retry calls f up to MaxAttempts times with exponential backoff, returning
// as soon as f succeeds. The memoria provider wrappers return (T, error)
// directly rather than the source example's Result[T] wrapper, since every
// caller here already has a natural zero value to discard on failure.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	wait := opts.InitialWait

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		result, err = f(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}

		sleepDur := wait
		if opts.Jitter {
			sleepDur = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleepDur > opts.MaxWait {
			sleepDur = opts.MaxWait
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(sleepDur):
		}

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result, err
}
