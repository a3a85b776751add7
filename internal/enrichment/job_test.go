package enrichment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/logger"
	"github.com/mediashelf/mediashelf/internal/metadata"
)

type resolveFunc func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution

func (f resolveFunc) Resolve(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
	return f(ctx, req)
}

type fakePersister struct {
	mu         sync.Mutex
	persisted  []string
	attempts   []metadata.Attempt
	persistErr error
}

func (f *fakePersister) Persist(ctx context.Context, fileID string, category metadata.Category, res metadata.Resolution) (*metadata.PersistedMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return nil, f.persistErr
	}
	f.persisted = append(f.persisted, fileID)
	row := metadata.NewPersistedMetadata(fileID, category, res)
	return &row, nil
}

func (f *fakePersister) RecordAttempt(ctx context.Context, a metadata.Attempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
}

func (f *fakePersister) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func resolved(title string) resolveFunc {
	return func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		return metadata.Resolution{
			Candidate:  &metadata.Candidate{ProviderID: metadata.ProviderTMDBMovie, ExternalID: "27205", Title: title},
			Provenance: metadata.Provenance{Provider: metadata.ProviderTMDBMovie, Stage: metadata.StageStructured, VariantIndex: 0},
			Attempts:   1,
		}
	}
}

func exhausted(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
	return metadata.Resolution{Attempts: 4, Provenance: metadata.Provenance{AIAssisted: true}}
}

var inception = metadata.ResolveRequest{FileID: "f1", Filename: "Inception.2010.1080p.mkv", Category: metadata.CategoryVideo}

func TestJob_Resolved(t *testing.T) {
	persister := &fakePersister{}
	outcomes := logger.NewRingBuffer[OutcomeRecord](10)
	job := NewJob(resolved("Inception"), persister, outcomes, time.Minute, zerolog.Nop())

	rec := job.Run(context.Background(), inception)

	assert.Equal(t, metadata.OutcomeResolved, rec.Outcome)
	assert.Equal(t, "Inception", rec.Title)
	assert.Equal(t, metadata.StageStructured, rec.Stage)
	assert.NotEmpty(t, rec.RunID)
	assert.Equal(t, []string{"f1"}, persister.persisted)

	require.Len(t, persister.attempts, 1)
	attempt := persister.attempts[0]
	assert.Equal(t, rec.RunID, attempt.RunID)
	assert.Equal(t, metadata.OutcomeResolved, attempt.Outcome)
	assert.Equal(t, inception, attempt.Request)
	assert.False(t, attempt.CompletedAt.Before(attempt.StartedAt))

	assert.Equal(t, []OutcomeRecord{rec}, outcomes.Recent(0))
}

func TestJob_ExhaustedPersistsNothing(t *testing.T) {
	persister := &fakePersister{}
	job := NewJob(resolveFunc(exhausted), persister, nil, time.Minute, zerolog.Nop())

	rec := job.Run(context.Background(), inception)

	assert.Equal(t, metadata.OutcomeExhausted, rec.Outcome)
	assert.Equal(t, 4, rec.Tries)
	assert.True(t, rec.AIAssisted)
	assert.False(t, rec.Failed())
	assert.Empty(t, persister.persisted)
	require.Len(t, persister.attempts, 1)
	assert.Equal(t, metadata.OutcomeExhausted, persister.attempts[0].Outcome)
}

func TestJob_InvalidRequestAbandoned(t *testing.T) {
	called := false
	persister := &fakePersister{}
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		called = true
		return metadata.Resolution{}
	}), persister, nil, time.Minute, zerolog.Nop())

	rec := job.Run(context.Background(), metadata.ResolveRequest{FileID: "f1", Filename: "x.mkv", Category: metadata.CategoryVideo})

	assert.Equal(t, metadata.OutcomeAbandoned, rec.Outcome)
	assert.False(t, called, "resolver must not run for an invalid request")
	assert.NotEmpty(t, rec.Error)
	assert.Equal(t, 1, persister.attemptCount())
}

func TestJob_PersistFailure(t *testing.T) {
	persister := &fakePersister{persistErr: metadata.ErrPersistFailed}
	job := NewJob(resolved("Inception"), persister, nil, time.Minute, zerolog.Nop())

	rec := job.Run(context.Background(), inception)

	assert.Equal(t, metadata.OutcomePersistFailed, rec.Outcome)
	assert.True(t, rec.Failed())
	require.Len(t, persister.attempts, 1)
	assert.Equal(t, metadata.OutcomePersistFailed, persister.attempts[0].Outcome)
}

func TestJob_PanicRecovered(t *testing.T) {
	persister := &fakePersister{}
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		panic("provider exploded")
	}), persister, nil, time.Minute, zerolog.Nop())

	var rec OutcomeRecord
	assert.NotPanics(t, func() {
		rec = job.Run(context.Background(), inception)
	})
	assert.Equal(t, metadata.OutcomeInternalFailure, rec.Outcome)
	assert.Contains(t, rec.Error, "provider exploded")
	assert.Equal(t, 1, persister.attemptCount())
}

func TestJob_DeadlineApplied(t *testing.T) {
	persister := &fakePersister{}
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
		<-ctx.Done()
		return metadata.Resolution{Attempts: 1}
	}), persister, nil, 50*time.Millisecond, zerolog.Nop())

	rec := job.Run(context.Background(), inception)

	assert.Equal(t, metadata.OutcomeExhausted, rec.Outcome)
	assert.Equal(t, context.DeadlineExceeded.Error(), rec.Error)
	assert.Equal(t, 1, persister.attemptCount(), "attempt is recorded after the deadline")
}

func TestNewJob_DefaultTimeout(t *testing.T) {
	job := NewJob(resolveFunc(exhausted), &fakePersister{}, nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultJobTimeout, job.timeout)
}

func TestOutcomeRecord_Failed(t *testing.T) {
	assert.False(t, OutcomeRecord{Outcome: metadata.OutcomeResolved}.Failed())
	assert.False(t, OutcomeRecord{Outcome: metadata.OutcomeAbandoned}.Failed())
	assert.True(t, OutcomeRecord{Outcome: metadata.OutcomeInternalFailure}.Failed())
}
