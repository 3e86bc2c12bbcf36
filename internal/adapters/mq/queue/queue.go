// Package queue defines the contract for the outbound update bus.
//
// The scoring core is synchronous; the bus only carries notifications
// (confirmed facts, resolutions, fresh totals) from the orchestrator to the
// broadcaster pool that fans them out to connected clients. Delivery is
// best-effort: a full bus drops the update rather than stalling a host
// command.
package queue

import (
	"context"
	"sync"

	"github.com/okian/rumble/internal/domain/model"
	"github.com/okian/rumble/pkg/metrics"
)

// Default bus configuration constants.
const (
	defaultCapacity = 10000
)

// Update is the payload type flowing through the bus.
type Update = model.Update

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an update to the bus.
	// Returns false if the bus is full or closed and the update was dropped.
	Enqueue(ctx context.Context, u Update) bool

	// Dequeue returns a channel that receives updates as they become
	// available. The channel is closed when the bus is closed.
	Dequeue(ctx context.Context) <-chan Update

	// Len returns the current number of pending updates.
	Len(ctx context.Context) int

	// Close shuts the bus down; no further updates can be enqueued.
	Close() error

	// IsClosed reports whether the bus has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	updates  chan Update
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory bus with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.updates = make(chan Update, q.capacity)

	metrics.UpdateBusCapacity(q.capacity)
	metrics.UpdateBusDepth(0)
	return q
}

// Enqueue adds an update to the bus.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u Update) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordUpdateDropped("closed")
		return false
	}
	select {
	case q.updates <- u:
		metrics.UpdateBusDepth(len(q.updates))
		return true
	case <-ctx.Done():
		metrics.RecordUpdateDropped("context_cancelled")
		return false
	default:
		metrics.RecordUpdateDropped("bus_full")
		return false
	}
}

// Dequeue returns a channel that receives updates as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		for u := range q.updates {
			select {
			case out <- u:
				metrics.UpdateBusDepth(len(q.updates))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of pending updates.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.updates)
}

// Close shuts the bus down.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.updates)
	q.closed = true
	return nil
}

// IsClosed reports whether the bus has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
