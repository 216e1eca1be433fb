package pipeline

import (
	"context"
	"time"

	"github.com/stco/stationrecon/internal/support/exception"
	"github.com/stco/stationrecon/internal/support/logger"
)

// RetryPolicy decides whether a failed operation is retried and how long to
// back off between attempts.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the waiting time before the given attempt
	// (starting from 1).
	BackoffInterval(attempt int) time.Duration
	// MaxAttempts returns the maximum number of attempts.
	MaxAttempts() int
}

type fixedRetryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
}

// NewFixedRetryPolicy returns a policy with a fixed backoff interval. Errors
// are retryable when they carry the retryable flag of a PipelineError.
func NewFixedRetryPolicy(maxAttempts int, initialInterval time.Duration) RetryPolicy {
	return &fixedRetryPolicy{maxAttempts: maxAttempts, initialInterval: initialInterval}
}

func (p *fixedRetryPolicy) MaxAttempts() int { return p.maxAttempts }

func (p *fixedRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return exception.IsRetryable(err)
}

func (p *fixedRetryPolicy) BackoffInterval(attempt int) time.Duration {
	return p.initialInterval
}

// Execute runs fn under the policy, sleeping the backoff interval between
// attempts. It returns the last error when attempts are exhausted or the
// error is not retryable, and stops early on context cancellation.
func Execute(ctx context.Context, policy RetryPolicy, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !policy.ShouldRetry(lastErr) || attempt == policy.MaxAttempts() {
			return lastErr
		}
		interval := policy.BackoffInterval(attempt)
		logger.Warnf("%s failed (attempt %d/%d), retrying in %s: %v",
			operation, attempt, policy.MaxAttempts(), interval, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return lastErr
}

var _ RetryPolicy = (*fixedRetryPolicy)(nil)
