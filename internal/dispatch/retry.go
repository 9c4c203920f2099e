// Package dispatch issues the backend calls for one query: every work
// unit runs in its own goroutine, failures are retried according to their
// error kind, and each unit yields exactly one typed result whatever
// happens on the wire.
package dispatch

import (
	"context"
	"math"
	"math/rand"
	"time"

	"NetSage/internal/provider"

	"go.uber.org/zap"
)

// RetryPolicy controls how failed attempts are repeated. Only errors the
// provider package classifies as retryable (rate limits, timeouts,
// network faults) are attempted again; authentication and not-found
// errors abort the unit on the first attempt.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
	jitter      bool
	logger      *zap.Logger
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithMaxAttempts sets the attempt ceiling per work unit.
func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) {
		p.maxAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.baseDelay = d
	}
}

// WithMaxDelay caps the backoff growth.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.maxDelay = d
	}
}

// WithJitter toggles randomization of backoff delays.
func WithJitter(enabled bool) RetryOption {
	return func(p *RetryPolicy) {
		p.jitter = enabled
	}
}

// WithRetryLogger attaches a logger to retry decisions.
func WithRetryLogger(logger *zap.Logger) RetryOption {
	return func(p *RetryPolicy) {
		p.logger = logger
	}
}

// NewRetryPolicy builds a policy with the defaults the config package
// documents: 3 attempts, 500ms base, 30s cap, doubling, jitter on.
func NewRetryPolicy(opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    30 * time.Second,
		multiplier:  2.0,
		jitter:      true,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs fn until it succeeds, exhausts the attempt budget, fails
// with a non-retryable error, or the context ends. It returns how many
// attempts ran and the last error. onRetry, when non-nil, observes each
// error that leads to another attempt.
func (p *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error, onRetry func(err error)) (int, error) {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt, lastErr
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				p.logger.Debug("call succeeded after retry",
					zap.Int("attempt", attempt+1),
					zap.Int("max_attempts", p.maxAttempts))
			}
			return attempt + 1, nil
		}
		lastErr = err

		if !provider.Retryable(err) {
			p.logger.Debug("error is not retryable, giving up",
				zap.Error(err),
				zap.String("kind", string(provider.KindOf(err))))
			return attempt + 1, lastErr
		}
		if attempt == p.maxAttempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(err)
		}

		delay := p.delay(attempt)
		p.logger.Debug("call failed, backing off",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempt + 1, lastErr
		}
	}

	p.logger.Warn("call failed after all attempts",
		zap.Error(lastErr),
		zap.Int("attempts", p.maxAttempts))
	return p.maxAttempts, lastErr
}

// delay computes the backoff before retrying the given zero-based
// attempt: base * multiplier^attempt, capped, then scaled into
// [0.5, 1.5) when jitter is on.
func (p *RetryPolicy) delay(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	if p.jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}
