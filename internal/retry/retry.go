package retry

import (
	"context"
	"fmt"
	"time"

	"storyreel/internal/ratelimit"
	"storyreel/internal/services"
)

// ExhaustedError is returned when every attempt failed. It carries the last
// underlying error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Runner pairs a rate limiter with a retry policy so stage code wraps remote
// calls in one place.
type Runner struct {
	Limiter        *ratelimit.Limiter
	Policy         *Policy
	AcquireTimeout time.Duration

	// sleep is overridable in tests.
	sleep func(context.Context, time.Duration) error
}

// NewRunner builds a runner. Limiter may be nil when a capability needs no
// admission control (local tooling).
func NewRunner(limiter *ratelimit.Limiter, policy *Policy, acquireTimeout time.Duration) *Runner {
	return &Runner{
		Limiter:        limiter,
		Policy:         policy,
		AcquireTimeout: acquireTimeout,
		sleep:          sleepContext,
	}
}

// Do invokes fn with admission control before every attempt and backoff
// between failed attempts. Non-retryable errors surface immediately;
// exhausting the policy yields an ExhaustedError wrapping the last cause.
func (r *Runner) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := 1
	if r.Policy != nil {
		attempts = r.Policy.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if r.Limiter != nil && !r.Limiter.Acquire(ctx, r.AcquireTimeout) {
			// Admission timeouts count as failed attempts so backoff
			// applies to them like any other transient failure.
			err = services.Wrap(services.ErrTransient, "", op, "rate limiter acquisition timed out", nil)
		} else {
			err = fn(ctx)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if r.Policy == nil || !r.Policy.ShouldRetry(err, attempt) {
			if attempt >= attempts && services.Retryable(err) {
				break
			}
			return err
		}
		if err := r.sleepFn()(ctx, r.Policy.Delay(attempt, err)); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: lastErr}
}

func (r *Runner) sleepFn() func(context.Context, time.Duration) error {
	if r.sleep != nil {
		return r.sleep
	}
	return sleepContext
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
