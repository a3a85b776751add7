package enrichment

import (
	"context"
	"errors"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

var (
	ErrQueueFull        = errors.New("enrichment queue is full")
	ErrDispatcherClosed = errors.New("enrichment dispatcher is shut down")
)

// Dispatcher hands resolve requests to background workers. Submit returns
// as soon as the request is queued; callers never wait for the resolver.
type Dispatcher interface {
	Submit(req metadata.ResolveRequest) error
	Shutdown(ctx context.Context) error
	Stats() Stats
}

// Stats is a snapshot of dispatcher activity.
type Stats struct {
	Mode          string `json:"mode"`
	Workers       int    `json:"workers"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity,omitempty"`
	Submitted     int64  `json:"submitted"`
	Rejected      int64  `json:"rejected"`
	Completed     int64  `json:"completed"`
	Failed        int64  `json:"failed"`
	Active        int64  `json:"active"`
}
