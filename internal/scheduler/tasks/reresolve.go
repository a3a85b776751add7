package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/enrichment"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/scheduler"
)

// ExhaustedLister finds files whose latest resolver run was exhausted.
type ExhaustedLister interface {
	ListExhausted(ctx context.Context, olderThan time.Time, limit int) ([]metadata.ResolveRequest, error)
}

// Submitter queues a resolve request.
type Submitter interface {
	Submit(req metadata.ResolveRequest) error
}

// ReresolveConfig controls the exhausted-file sweep.
type ReresolveConfig struct {
	Cron       string
	RetryAfter time.Duration
	BatchSize  int
}

// ReresolveTask gives exhausted files another chance once catalogs have had
// time to change.
type ReresolveTask struct {
	store  ExhaustedLister
	queue  Submitter
	cfg    ReresolveConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewReresolveTask creates the sweep task.
func NewReresolveTask(store ExhaustedLister, queue Submitter, cfg ReresolveConfig, logger zerolog.Logger) *ReresolveTask {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	return &ReresolveTask{
		store:  store,
		queue:  queue,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("task", "reresolve-exhausted").Logger(),
	}
}

// Run submits up to BatchSize exhausted files. It stops early when the
// dispatcher is full so the remainder is picked up by the next run.
func (t *ReresolveTask) Run(ctx context.Context) error {
	cutoff := t.now().Add(-t.cfg.RetryAfter)
	requests, err := t.store.ListExhausted(ctx, cutoff, t.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list exhausted files: %w", err)
	}
	if len(requests) == 0 {
		t.logger.Debug().Msg("No exhausted files due for re-resolution")
		return nil
	}

	submitted := 0
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.queue.Submit(req); err != nil {
			if errors.Is(err, enrichment.ErrQueueFull) || errors.Is(err, enrichment.ErrDispatcherClosed) {
				t.logger.Warn().Err(err).Int("submitted", submitted).Msg("Stopping sweep early")
				break
			}
			t.logger.Warn().Err(err).Str("fileId", req.FileID).Msg("Failed to submit re-resolution")
			continue
		}
		submitted++
	}

	t.logger.Info().
		Int("due", len(requests)).
		Int("submitted", submitted).
		Time("cutoff", cutoff).
		Msg("Re-resolution sweep submitted")
	return nil
}

// RegisterReresolveTask registers the sweep with the scheduler.
func RegisterReresolveTask(sched *scheduler.Scheduler, store ExhaustedLister, queue Submitter, cfg ReresolveConfig, logger zerolog.Logger) error {
	task := NewReresolveTask(store, queue, cfg, logger)

	cron := cfg.Cron
	if cron == "" {
		cron = "30 3 * * *" // 3:30 AM daily
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "reresolve-exhausted",
		Name:        "Re-resolve Exhausted Files",
		Description: "Resubmits files whose last identification attempt found no match",
		Cron:        cron,
		Func:        task.Run,
	})
}
