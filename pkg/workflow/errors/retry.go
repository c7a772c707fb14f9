package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig controls how an upstream call is retried.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration // zero means unbounded
	BackoffFactor  float64

	// Jitter spreads each wait by ±Jitter of its length (0.0-1.0).
	Jitter float64

	// RetryableFunc replaces IsRetryable when set.
	RetryableFunc func(error) bool

	// OnRetry runs before each wait with the number of the failed attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry suits interactive upstream calls made inside a turn.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     8 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{MaxAttempts: 1}

// RetryResult is the outcome of WithRetryContext.
type RetryResult[T any] struct {
	Value    T
	Err      error // always a *CategorizedError when set
	Attempts int
	Duration time.Duration
}

// WithRetryContext calls fn until it succeeds, fails with an error that is
// not retryable, runs out of attempts or ctx is done. Waits between attempts
// back off exponentially.
func WithRetryContext[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) RetryResult[T] {
	start := time.Now()
	retryable := cfg.RetryableFunc
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := max(cfg.MaxAttempts, 1)

	fail := func(err error, cat Category, made int, note string) RetryResult[T] {
		return RetryResult[T]{
			Err:      &CategorizedError{Err: err, Category: cat, Retries: made, Context: note},
			Attempts: made,
			Duration: time.Since(start),
		}
	}

	wait := cfg.InitialBackoff
	var lastErr error
	for made := 0; made < attempts; made++ {
		if err := ctx.Err(); err != nil {
			return fail(err, CategoryPermanent, made, "context done")
		}

		v, err := fn(ctx)
		if err == nil {
			return RetryResult[T]{Value: v, Attempts: made + 1, Duration: time.Since(start)}
		}
		lastErr = err
		if !retryable(err) {
			return fail(err, Categorize(err), made+1, "")
		}
		if made == attempts-1 {
			break
		}

		d := jittered(wait, cfg.Jitter)
		if cfg.OnRetry != nil {
			cfg.OnRetry(made+1, err, d)
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fail(ctx.Err(), CategoryPermanent, made+1, "context done during backoff")
		case <-timer.C:
		}

		wait = time.Duration(float64(wait) * cfg.BackoffFactor)
		if cfg.MaxBackoff > 0 {
			wait = min(wait, cfg.MaxBackoff)
		}
	}
	return fail(lastErr, Categorize(lastErr), attempts, "max retries exceeded")
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*jitter*(rand.Float64()*2-1))
}

// RetryOption adjusts a RetryConfig built by NewRetryConfig.
type RetryOption func(*RetryConfig)

func WithMaxAttempts(n int) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxAttempts = n }
}

func WithInitialBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.InitialBackoff = d }
}

func WithMaxBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxBackoff = d }
}

func WithJitter(j float64) RetryOption {
	return func(cfg *RetryConfig) { cfg.Jitter = j }
}

func WithRetryableFunc(fn func(error) bool) RetryOption {
	return func(cfg *RetryConfig) { cfg.RetryableFunc = fn }
}

func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) RetryOption {
	return func(cfg *RetryConfig) { cfg.OnRetry = fn }
}

// NewRetryConfig applies opts to DefaultRetry.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
