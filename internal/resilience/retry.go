package resilience

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig holds tuning knobs for [Retry].
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 are treated as 1 (no retries).
	Attempts int

	// InitialBackoff is the delay before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each retry. Default: 2.0.
	Multiplier float64
}

// withDefaults returns cfg with zero fields replaced.
func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	return cfg
}

// Retry runs fn up to cfg.Attempts times, sleeping with exponential backoff
// between tries. A retry is attempted only when retriable reports the error
// as transient; permanent errors are returned immediately. The sleep honours
// ctx, so cancellation interrupts the wait and returns ctx.Err().
func Retry[T any](ctx context.Context, cfg RetryConfig, retriable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var (
		zero    T
		lastErr error
	)
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retriable(err) || attempt == cfg.Attempts {
			return zero, err
		}

		slog.Warn("transient failure, retrying",
			"attempt", attempt,
			"max_attempts", cfg.Attempts,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return zero, lastErr
}
