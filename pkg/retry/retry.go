package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	Logger        *zap.Logger
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		Logger:        zap.NewNop(),
	}
}

// RetryHTTPRequest is the policy for page fetches: five retries, 1s, 2s, 4s, 8s, 16s.
func RetryHTTPRequest() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		Jitter:        false,
		Logger:        zap.NewNop(),
	}
}

// RetryDatabaseOperation creates a retry configuration suitable for database operations
func RetryDatabaseOperation() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 1.5,
		Jitter:        true,
		Logger:        zap.NewNop(),
	}
}

// NewBackOff builds the backoff schedule described by the config.
func (c RetryConfig) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.Multiplier = c.BackoffFactor
	b.MaxInterval = c.MaxDelay
	b.MaxElapsedTime = 0
	if c.Jitter {
		b.RandomizationFactor = 0.1
	} else {
		b.RandomizationFactor = 0
	}
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(c.MaxRetries))
}

func (c RetryConfig) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Permanent marks err so that Retry returns it without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry executes fn with exponential backoff until it succeeds, returns a
// Permanent error, the retries run out or ctx is done.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		return fn()
	}
	notify := func(err error, delay time.Duration) {
		config.logger().Warn("Operation failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", config.MaxRetries),
			zap.Duration("delay", delay))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(config.NewBackOff(), ctx), notify)
	if err != nil {
		config.logger().Error("Operation failed after all retry attempts",
			zap.Error(err),
			zap.Int("attempts", attempt))
		return fmt.Errorf("operation failed after %d attempts: %w", attempt, err)
	}
	if attempt > 1 {
		config.logger().Info("Operation succeeded after retry", zap.Int("attempt", attempt))
	}
	return nil
}
