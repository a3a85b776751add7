package startup

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures exponential backoff for boot-time dependencies
// such as Postgres and Redis.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// DefaultRetryConfig suits a container starting alongside its database.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  6,
		Multiplier:   2.0,
	}
}

var transientIndicators = []string{
	"connection refused",
	"no such host",
	"timeout",
	"network is unreachable",
	"no route to host",
	"dial tcp",
	"i/o timeout",
	"connection reset",
	"temporary failure in name resolution",
	"the database system is starting up",
	"loading the dataset in memory",
}

// IsTransient reports whether err looks like a dependency that is not up yet.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range transientIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// WithRetry runs fn until it succeeds, fails with a non-transient error, or
// MaxAttempts is reached.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error, logger zerolog.Logger) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().Str("operation", name).Int("attempt", attempt).Msg("Dependency ready after retry")
			}
			return nil
		}

		if !IsTransient(lastErr) || attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn().
			Err(lastErr).
			Str("operation", name).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("nextRetryIn", delay).
			Msg("Dependency not ready, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
