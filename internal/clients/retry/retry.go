// Package retry provides the exponential-backoff retry loop shared by every
// upstream API client (C2).
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Config controls retry behavior.
type Config struct {
	MaxAttempts int           // total attempts including the first, default 3
	BaseDelay   time.Duration // delay before the second attempt, doubled each subsequent attempt
}

// DefaultConfig matches the spec's "max 3 attempts" contract for upstream
// clients.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 1 * time.Second}
}

// Do runs fn, retrying on error with exponentially increasing delay
// (baseDelay, 2*baseDelay, 4*baseDelay, ...) up to cfg.MaxAttempts total
// attempts. A fn error that wraps context.Canceled or the context itself
// being done aborts immediately without further retries.
func Do(ctx context.Context, cfg Config, log zerolog.Logger, fn func(attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return lastErr
		}

		if attempt < cfg.MaxAttempts-1 {
			wait := cfg.BaseDelay * time.Duration(1<<uint(attempt))
			log.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", cfg.MaxAttempts).Dur("wait", wait).Msg("retrying after failure")
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}
