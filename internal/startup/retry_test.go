package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func fastRetry() RetryConfig {
	return RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: 3, Multiplier: 2}
}

func TestWithRetry_RecoversFromTransientErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "postgres", fastRetry(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
		}
		return nil
	}, zerolog.Nop())

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "postgres", fastRetry(), func(ctx context.Context) error {
		calls++
		return errors.New("password authentication failed")
	}, zerolog.Nop())

	assert.EqualError(t, err, "password authentication failed")
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "redis", fastRetry(), func(ctx context.Context) error {
		calls++
		return errors.New("i/o timeout")
	}, zerolog.Nop())

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastRetry()
	cfg.InitialDelay = time.Hour

	err := WithRetry(ctx, "redis", cfg, func(ctx context.Context) error {
		return errors.New("connection refused")
	}, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errors.New("pq: the database system is starting up")))
	assert.True(t, IsTransient(errors.New("LOADING Redis is loading the dataset in memory")))
	assert.False(t, IsTransient(errors.New("relation does not exist")))
}
