package enrichment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

func request(id string) metadata.ResolveRequest {
	return metadata.ResolveRequest{FileID: id, Filename: "Inception.2010.mkv", Category: metadata.CategoryVideo}
}

func TestPool_RunsSubmittedJobs(t *testing.T) {
	persister := &fakePersister{}
	job := NewJob(resolved("Inception"), persister, nil, time.Minute, zerolog.Nop())
	p := NewPool(job, PoolConfig{Concurrency: 3, QueueSize: 10}, zerolog.Nop())

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, p.Submit(request(id)))
	}
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Equal(t, 4, persister.attemptCount())
	stats := p.Stats()
	assert.Equal(t, "pool", stats.Mode)
	assert.Equal(t, int64(4), stats.Submitted)
	assert.Equal(t, int64(4), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, 0, stats.QueueDepth)
}

func TestPool_SubmitReturnsImmediately(t *testing.T) {
	release := make(chan struct{})
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		<-release
		return metadata.Resolution{}
	}), &fakePersister{}, nil, time.Minute, zerolog.Nop())
	p := NewPool(job, PoolConfig{Concurrency: 1, QueueSize: 4}, zerolog.Nop())

	start := time.Now()
	require.NoError(t, p.Submit(request("a")))
	require.NoError(t, p.Submit(request("b")))
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		started.Add(1)
		<-release
		return metadata.Resolution{}
	}), &fakePersister{}, nil, time.Minute, zerolog.Nop())
	p := NewPool(job, PoolConfig{Concurrency: 1, QueueSize: 1}, zerolog.Nop())

	require.NoError(t, p.Submit(request("a")))
	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Submit(request("b")))

	assert.ErrorIs(t, p.Submit(request("c")), ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	persister := &fakePersister{}
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		time.Sleep(10 * time.Millisecond)
		return metadata.Resolution{}
	}), persister, nil, time.Minute, zerolog.Nop())
	p := NewPool(job, PoolConfig{Concurrency: 1, QueueSize: 5}, zerolog.Nop())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, p.Submit(request(id)))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 5, persister.attemptCount())

	assert.ErrorIs(t, p.Submit(request("f")), ErrDispatcherClosed)
	assert.NoError(t, p.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestPool_ShutdownTimeoutCancelsJobs(t *testing.T) {
	cancelled := make(chan struct{})
	job := NewJob(resolveFunc(func(ctx context.Context, req metadata.ResolveRequest) metadata.Resolution {
		<-ctx.Done()
		close(cancelled)
		return metadata.Resolution{}
	}), &fakePersister{}, nil, time.Hour, zerolog.Nop())
	p := NewPool(job, PoolConfig{Concurrency: 1, QueueSize: 1}, zerolog.Nop())

	require.NoError(t, p.Submit(request("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled")
	}
}

func TestPool_FailuresCounted(t *testing.T) {
	job := NewJob(resolved("Inception"), &fakePersister{persistErr: metadata.ErrPersistFailed}, nil, time.Minute, zerolog.Nop())
	p := NewPool(job, PoolConfig{Concurrency: 2, QueueSize: 2}, zerolog.Nop())

	require.NoError(t, p.Submit(request("a")))
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Equal(t, int64(1), p.Stats().Failed)
	assert.Equal(t, int64(0), p.Stats().Completed)
}
