// Package resilience wraps provider calls with per-attempt timeouts and bounded retries using fortify.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// Config configures provider call resilience.
type Config struct {
	// CallTimeout bounds a single attempt.
	CallTimeout time.Duration

	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:  30 * time.Second,
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// Caller runs provider calls with a timeout per attempt and retries transient failures.
type Caller[T any] struct {
	retry   retry.Retry[T]
	timeout time.Duration
}

// NewCaller creates a Caller from cfg.
func NewCaller[T any](cfg Config) *Caller[T] {
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}

	return &Caller[T]{
		retry: retry.New[T](retry.Config{
			MaxAttempts:        cfg.MaxAttempts,
			InitialDelay:       cfg.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         cfg.Multiplier,
			NonRetryableErrors: []error{context.Canceled},
		}),
		timeout: cfg.CallTimeout,
	}
}

// Do calls fn until it succeeds, fails permanently, or attempts run out.
// Only errors matching apperrors.ErrTransient are retried. An attempt that
// hits its own deadline is reported as transient.
func (c *Caller[T]) Do(ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	var permanent, last error

	result, err := c.retry.Do(ctx, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		v, err := fn(attemptCtx)
		if err == nil {
			return v, nil
		}

		// Parent cancellation is final.
		if ctx.Err() != nil {
			permanent = ctx.Err()
			var zero T
			return zero, nil
		}

		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !apperrors.IsTransient(err) {
			err = apperrors.Transient(op, "", err)
		}

		if !apperrors.IsTransient(err) {
			// Returned as success so the retrier stops; surfaced below.
			permanent = err
			var zero T
			return zero, nil
		}
		last = err
		return v, err
	})

	if permanent != nil {
		var zero T
		return zero, permanent
	}
	if err != nil {
		if ctx.Err() != nil {
			var zero T
			return zero, ctx.Err()
		}
		if last != nil {
			err = last
		}
		var zero T
		return zero, err
	}
	return result, nil
}
