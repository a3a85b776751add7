package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/logger"
	"github.com/mediashelf/mediashelf/internal/metadata"
)

// DefaultJobTimeout bounds a single resolver run when none is configured.
const DefaultJobTimeout = 5 * time.Minute

// Resolver runs the identification cascade for one request.
type Resolver interface {
	Resolve(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution
}

// Persister stores accepted resolutions and run diagnostics.
type Persister interface {
	Persist(ctx context.Context, fileID string, category metadata.Category, res metadata.Resolution) (*metadata.PersistedMetadata, error)
	RecordAttempt(ctx context.Context, a metadata.Attempt)
}

// OutcomeRecord summarizes one finished run for the status API.
type OutcomeRecord struct {
	RunID       string            `json:"runId"`
	FileID      string            `json:"fileId"`
	Filename    string            `json:"filename"`
	Category    metadata.Category `json:"category"`
	Outcome     metadata.Outcome  `json:"outcome"`
	Provider    string            `json:"provider,omitempty"`
	Stage       metadata.Stage    `json:"stage,omitempty"`
	Title       string            `json:"title,omitempty"`
	AIAssisted  bool              `json:"aiAssisted"`
	Tries       int               `json:"tries"`
	Error       string            `json:"error,omitempty"`
	DurationMs  int64             `json:"durationMs"`
	CompletedAt time.Time         `json:"completedAt"`
}

// Failed reports whether the run ended in an operational failure rather than
// a resolver verdict.
func (r OutcomeRecord) Failed() bool {
	return r.Outcome == metadata.OutcomePersistFailed || r.Outcome == metadata.OutcomeInternalFailure
}

// Job is the unit of work executed for every dispatched request:
// resolve, persist, record the attempt and publish the outcome.
type Job struct {
	resolver  Resolver
	persister Persister
	outcomes  *logger.RingBuffer[OutcomeRecord]
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewJob creates a job. outcomes may be nil.
func NewJob(resolver Resolver, persister Persister, outcomes *logger.RingBuffer[OutcomeRecord], timeout time.Duration, log zerolog.Logger) *Job {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Job{
		resolver:  resolver,
		persister: persister,
		outcomes:  outcomes,
		timeout:   timeout,
		logger:    log.With().Str("component", "enrichment").Logger(),
	}
}

// Run executes one request to completion. ctx must be a worker-owned
// context; the run derives its own deadline from it. Run never panics.
func (j *Job) Run(ctx context.Context, req metadata.ResolveRequest) (rec OutcomeRecord) {
	started := time.Now()
	rec = OutcomeRecord{
		RunID:    uuid.New().String(),
		FileID:   req.FileID,
		Filename: req.Filename,
		Category: req.Category,
	}

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			rec.Outcome = metadata.OutcomeInternalFailure
			rec.Error = fmt.Sprintf("panic: %v", r)
		}
		rec.CompletedAt = time.Now().UTC()
		rec.DurationMs = time.Since(started).Milliseconds()
		j.finish(runCtx, req, rec, started)
	}()

	if err := req.Validate(); err != nil {
		rec.Outcome = metadata.OutcomeAbandoned
		rec.Error = err.Error()
		return rec
	}

	res := j.resolver.Resolve(runCtx, req)
	rec.Tries = res.Attempts
	rec.AIAssisted = res.Provenance.AIAssisted

	if !res.Resolved() {
		rec.Outcome = metadata.OutcomeExhausted
		if err := runCtx.Err(); err != nil {
			rec.Error = err.Error()
		}
		return rec
	}

	rec.Provider = res.Provenance.Provider
	rec.Stage = res.Provenance.Stage
	rec.Title = res.Candidate.Title

	if _, err := j.persister.Persist(runCtx, req.FileID, req.Category, res); err != nil {
		rec.Outcome = metadata.OutcomePersistFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Outcome = metadata.OutcomeResolved
	return rec
}

func (j *Job) finish(ctx context.Context, req metadata.ResolveRequest, rec OutcomeRecord, started time.Time) {
	// The attempt row is written even when the run deadline has passed.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	j.persister.RecordAttempt(recordCtx, metadata.Attempt{
		RunID:       rec.RunID,
		Request:     req,
		Outcome:     rec.Outcome,
		Provider:    rec.Provider,
		Tries:       rec.Tries,
		AIAssisted:  rec.AIAssisted,
		Error:       rec.Error,
		StartedAt:   started.UTC(),
		CompletedAt: rec.CompletedAt,
	})

	if j.outcomes != nil {
		j.outcomes.Push(rec)
	}

	var event *zerolog.Event
	switch rec.Outcome {
	case metadata.OutcomeResolved, metadata.OutcomeExhausted:
		event = j.logger.Info()
	case metadata.OutcomeAbandoned:
		event = j.logger.Warn()
	default:
		event = j.logger.Error()
	}

	event.
		Str("runId", rec.RunID).
		Str("fileId", rec.FileID).
		Str("category", string(rec.Category)).
		Str("outcome", string(rec.Outcome)).
		Str("provider", rec.Provider).
		Str("stage", string(rec.Stage)).
		Int("tries", rec.Tries).
		Bool("aiAssisted", rec.AIAssisted).
		Str("error", rec.Error).
		Int64("durationMs", rec.DurationMs).
		Msg("Resolve finished")
}
