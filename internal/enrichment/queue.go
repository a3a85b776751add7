package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

// TaskResolveFile is the asynq task type carrying a ResolveRequest.
const TaskResolveFile = "resolve:file"

const queueName = "default"

// QueueConfig configures the Redis-backed dispatcher.
type QueueConfig struct {
	RedisAddr   string
	Concurrency int
}

// Queue dispatches requests through a durable asynq queue. A file has at
// most one pending task at a time.
type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector *asynq.Inspector
	job       *Job
	cfg       QueueConfig
	logger    zerolog.Logger

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates the asynq client, server and inspector. Call Start to
// begin processing.
func NewQueue(job *Job, cfg QueueConfig, logger zerolog.Logger) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	q := &Queue{
		client: asynq.NewClient(redisOpt),
		server: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{queueName: 1},
		}),
		mux:       asynq.NewServeMux(),
		inspector: asynq.NewInspector(redisOpt),
		job:       job,
		cfg:       cfg,
		logger:    logger.With().Str("component", "enrichment-queue").Logger(),
	}
	q.mux.HandleFunc(TaskResolveFile, q.HandleResolveTask)
	return q
}

// Start begins consuming tasks in the background.
func (q *Queue) Start() error {
	q.logger.Info().Str("redis", q.cfg.RedisAddr).Int("workers", q.cfg.Concurrency).Msg("Enrichment queue starting")
	if err := q.server.Start(q.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Submit enqueues a request keyed by file id. A request for a file that is
// already pending is accepted and coalesced with the queued one.
func (q *Queue) Submit(req metadata.ResolveRequest) error {
	task, err := newResolveTask(req)
	if err != nil {
		q.rejected.Add(1)
		return err
	}

	if err := q.enqueueUnique(task, taskID(req.FileID)); err != nil {
		q.rejected.Add(1)
		return err
	}
	q.submitted.Add(1)
	return nil
}

// enqueueUnique enqueues task under id. A conflicting task that already
// finished is deleted and the enqueue retried; a conflicting task that is
// still pending or running is left alone.
func (q *Queue) enqueueUnique(task *asynq.Task, id string) error {
	_, err := q.client.Enqueue(task, asynq.TaskID(id), asynq.Queue(queueName), asynq.MaxRetry(0))
	if err == nil {
		return nil
	}
	if !isTaskConflict(err) {
		return fmt.Errorf("enqueue: %w", err)
	}

	if delErr := q.inspector.DeleteTask(queueName, id); delErr == nil {
		q.logger.Debug().Str("taskId", id).Msg("Cleared finished task")
		_, err = q.client.Enqueue(task, asynq.TaskID(id), asynq.Queue(queueName), asynq.MaxRetry(0))
		if err == nil {
			return nil
		}
	}

	if isTaskConflict(err) {
		q.logger.Debug().Str("taskId", id).Msg("Resolve already pending, skipping")
		return nil
	}
	return fmt.Errorf("enqueue: %w", err)
}

// HandleResolveTask runs the job for a queued request. Resolver outcomes are
// never returned as errors, so exhausted files are not retried by asynq.
func (q *Queue) HandleResolveTask(ctx context.Context, t *asynq.Task) error {
	var req metadata.ResolveRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		q.failed.Add(1)
		return fmt.Errorf("unmarshal resolve payload: %v: %w", err, asynq.SkipRetry)
	}

	rec := q.job.Run(ctx, req)
	if rec.Failed() {
		q.failed.Add(1)
	} else {
		q.completed.Add(1)
	}
	return nil
}

// Shutdown stops the server, waiting for active tasks up to ctx's deadline.
// Pending tasks stay in Redis and are picked up on the next start.
func (q *Queue) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.server.Shutdown()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	q.client.Close()
	q.inspector.Close()
	q.logger.Info().Msg("Enrichment queue stopped")
	return err
}

// Stats combines local counters with the queue depth reported by Redis.
func (q *Queue) Stats() Stats {
	stats := Stats{
		Mode:      "redis",
		Workers:   q.cfg.Concurrency,
		Submitted: q.submitted.Load(),
		Rejected:  q.rejected.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}
	if q.inspector == nil {
		return stats
	}
	info, err := q.inspector.GetQueueInfo(queueName)
	if err != nil {
		q.logger.Debug().Err(err).Msg("Failed to read queue info")
		return stats
	}
	stats.QueueDepth = info.Pending
	stats.Active = int64(info.Active)
	return stats
}

func newResolveTask(req metadata.ResolveRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal resolve payload: %w", err)
	}
	return asynq.NewTask(TaskResolveFile, data), nil
}

func taskID(fileID string) string {
	return "resolve:" + fileID
}

// isTaskConflict matches the sentinel errors and falls back to the message
// text for wrapped errors that lost their identity.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}
