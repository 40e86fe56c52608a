// Package flow provides flow control between topology components: bounded
// batch queues for backpressure and token buckets for rate limiting.
package flow

import (
	"context"
	"sync"

	"github.com/eventflow/eventflow/pkg/event"
)

type queueError string

func (e queueError) Error() string { return string(e) }

// ErrQueueClosed is returned once a closed queue has been drained.
const ErrQueueClosed = queueError("queue closed")

// BoundedQueue is a bounded FIFO of batches. A full queue blocks producers,
// which is how backpressure propagates from slow sinks back to sources.
type BoundedQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []event.Batch
	capacity int
	closed   bool
}

// NewBoundedQueue creates a queue with the given capacity.
func NewBoundedQueue(capacity int) *BoundedQueue {
	q := &BoundedQueue{
		items:    make([]event.Batch, 0, capacity),
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds a batch, blocking while the queue is full.
func (q *BoundedQueue) Push(ctx context.Context, batch event.Batch) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.closed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		q.cond.Wait()
	}

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, batch)
	q.cond.Signal()
	return nil
}

// Pop removes and returns the oldest batch, blocking while the queue is
// empty. After Close, remaining batches are still delivered; ErrQueueClosed
// follows once the queue is drained.
func (q *BoundedQueue) Pop(ctx context.Context) (event.Batch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		select {
		case <-ctx.Done():
			return event.Batch{}, ctx.Err()
		default:
		}
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return event.Batch{}, ErrQueueClosed
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.cond.Signal()
	return item, nil
}

// Close wakes all waiters. Pending batches remain poppable.
func (q *BoundedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the current queue length.
func (q *BoundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
