package enrichment

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

// PoolConfig sizes the in-process worker pool.
type PoolConfig struct {
	Concurrency int
	QueueSize   int
}

// Pool runs jobs on a fixed set of in-process workers fed by a bounded queue.
type Pool struct {
	job     *Job
	cfg     PoolConfig
	queue   chan metadata.ResolveRequest
	workers *pool.Pool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	active    atomic.Int64
}

// NewPool creates a pool and starts its workers.
func NewPool(job *Job, cfg PoolConfig, logger zerolog.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		job:     job,
		cfg:     cfg,
		queue:   make(chan metadata.ResolveRequest, cfg.QueueSize),
		workers: pool.New().WithMaxGoroutines(cfg.Concurrency),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With().Str("component", "enrichment-pool").Logger(),
	}

	for i := 0; i < cfg.Concurrency; i++ {
		p.workers.Go(p.work)
	}

	p.logger.Info().
		Int("workers", cfg.Concurrency).
		Int("queueSize", cfg.QueueSize).
		Msg("Enrichment pool started")
	return p
}

func (p *Pool) work() {
	for req := range p.queue {
		p.active.Add(1)
		rec := p.job.Run(p.ctx, req)
		p.active.Add(-1)

		if rec.Failed() {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
	}
}

// Submit queues a request without blocking. It returns ErrQueueFull when
// every slot is taken and ErrDispatcherClosed after Shutdown.
func (p *Pool) Submit(req metadata.ResolveRequest) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrDispatcherClosed
	}

	select {
	case p.queue <- req:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		p.logger.Warn().Str("fileId", req.FileID).Msg("Enrichment queue full, request dropped")
		return ErrQueueFull
	}
}

// Shutdown stops accepting requests and waits for queued and in-flight
// jobs to finish. If ctx expires first, running jobs are cancelled and
// ctx.Err() is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Info().Int("pending", len(p.queue)).Msg("Draining enrichment pool")

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info().Msg("Enrichment pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn().Msg("Enrichment pool shutdown timed out, cancelling running jobs")
		return ctx.Err()
	}
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	return Stats{
		Mode:          "pool",
		Workers:       p.cfg.Concurrency,
		QueueDepth:    len(p.queue),
		QueueCapacity: p.cfg.QueueSize,
		Submitted:     p.submitted.Load(),
		Rejected:      p.rejected.Load(),
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
		Active:        p.active.Load(),
	}
}
