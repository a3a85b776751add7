package logger

import "sync"

// RingBuffer is a thread-safe fixed-size buffer keeping the latest entries.
type RingBuffer[T any] struct {
	mu     sync.RWMutex
	buffer []T
	next   int
	count  int
}

// NewRingBuffer creates a ring buffer holding at most capacity entries.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{buffer: make([]T, capacity)}
}

// Push adds an item, overwriting the oldest when full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer[r.next] = item
	r.next = (r.next + 1) % len(r.buffer)
	if r.count < len(r.buffer) {
		r.count++
	}
}

// Recent returns up to n items, newest first. n <= 0 returns everything.
func (r *RingBuffer[T]) Recent(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.buffer)) % len(r.buffer)
		out[i] = r.buffer[idx]
	}
	return out
}

// Len returns the current number of items in the buffer.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
