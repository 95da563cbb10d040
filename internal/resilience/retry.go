package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryOptions controls retry behavior around one external call.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the backoff base before multipliers. Default: 1500ms.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff, pre-jitter. Default: 15s.
	MaxDelay time.Duration

	// DisableRetry fails immediately on the first error.
	DisableRetry bool

	// OnRetry is called before each backoff sleep with the attempt number
	// (1-based), the delay about to be slept, and the classified error.
	OnRetry func(attempt int, delay time.Duration, cls Classification, err error)
}

// DefaultRetryOptions returns the standard options for generation calls.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   1500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 1500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 15 * time.Second
	}
	return o
}

// ExecuteVal runs fn with bounded exponential backoff. Retryability and the
// per-category delay multiplier come from Classify. Consecutive rate-limit
// failures within this single call double the backoff once two or more have
// occurred; the streak is local to the call, never shared across runs.
// Context cancellation aborts immediately, including mid-backoff.
func ExecuteVal[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	rateLimitStreak := 0

	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}

		if ctx.Err() != nil {
			return zero, err
		}

		cls := Classify(err)
		if cls.Category == CategoryRateLimit {
			rateLimitStreak++
		} else {
			rateLimitStreak = 0
		}

		if opts.DisableRetry || !cls.Retryable || attempt >= opts.MaxAttempts {
			return zero, &RetryExhaustedError{Err: err, Attempts: attempt, Classification: cls}
		}

		delay := backoffDelay(attempt, opts, cls, rateLimitStreak)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, cls, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// Execute is ExecuteVal for work without a return value.
func Execute(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// backoffDelay computes the sleep before the next attempt:
// min(base * 2^(attempt-1) * categoryMultiplier * streakMultiplier, max),
// plus 10-30% proportional jitter.
func backoffDelay(attempt int, opts RetryOptions, cls Classification, rateLimitStreak int) time.Duration {
	mult := cls.DelayMultiplier
	if mult < 1 {
		mult = 1
	}

	streakMult := 1.0
	if rateLimitStreak >= 2 {
		streakMult = 2.0
	}

	delay := float64(opts.BaseDelay) * math.Pow(2, float64(attempt-1)) * float64(mult) * streakMult
	if delay > float64(opts.MaxDelay) {
		delay = float64(opts.MaxDelay)
	}

	jitter := delay * (0.1 + rand.Float64()*0.2)
	return time.Duration(delay + jitter)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, time.Duration, Classification, error) {
	return func(attempt int, delay time.Duration, cls Classification, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("category", string(cls.Category)),
			zap.Error(err),
		)
	}
}
