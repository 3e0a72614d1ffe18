package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures a fixed-delay retry loop.
type RetryConfig struct {
	Delay       time.Duration // slept before every attempt, including the first
	MaxAttempts int
}

// DefaultRetryConfig gives a freshly spawned helper process about 7.5s to
// bind its listener.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Delay:       500 * time.Millisecond,
		MaxAttempts: 15,
	}
}

// ConnectionError is returned when every attempt failed. It carries the
// error of the final attempt, which is usually the most specific cause.
type ConnectionError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ConnectionError) Unwrap() error {
	return e.Last
}

// WithRetry sleeps cfg.Delay and then calls fn, up to cfg.MaxAttempts times,
// stopping at the first success. Every error is retried.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error, logger *zerolog.Logger) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := sleep(ctx, cfg.Delay); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			logger.Info().Str("operation", name).Int("attempt", attempt).Msg("operation succeeded")
			return nil
		}

		lastErr = err
		logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Msg("attempt failed")
	}

	logger.Error().Err(lastErr).Str("operation", name).Int("attempts", cfg.MaxAttempts).
		Msg("operation failed after all retries")
	return &ConnectionError{Operation: name, Attempts: cfg.MaxAttempts, Last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
