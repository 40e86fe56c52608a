// Package acks links delivered events back to the batch they arrived in.
// A source attaches a BatchNotifier to every batch it emits; sinks (or drop
// paths) finalize individual events, and once every member of the batch has
// reported, the source observes a single terminal status.
package acks

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// Status is the delivery outcome reported for an event or a whole batch.
type Status uint8

const (
	// StatusDelivered means the event reached its destination.
	StatusDelivered Status = iota
	// StatusErrored means delivery failed after the event left the source.
	StatusErrored
	// StatusRejected means the destination refused the event.
	StatusRejected
)

func (s Status) String() string {
	names := []string{"delivered", "errored", "rejected"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Merge combines two statuses, keeping the worse outcome.
// Rejected > Errored > Delivered.
func (s Status) Merge(other Status) Status {
	if other > s {
		return other
	}
	return s
}

// BatchNotifier tracks finalization of every event in one source batch.
// The zero value is not usable; create one with NewBatchNotifier.
type BatchNotifier struct {
	mu        sync.Mutex
	total     uint64
	finalized *roaring.Bitmap
	status    Status
	done      chan Status
	fired     bool
}

// NewBatchNotifier creates a notifier for a batch of size events.
func NewBatchNotifier(size int) *BatchNotifier {
	return &BatchNotifier{
		total:     uint64(size),
		finalized: roaring.New(),
		status:    StatusDelivered,
		done:      make(chan Status, 1),
	}
}

// Done returns a channel that receives the merged terminal status exactly
// once, after every event in the batch has finalized.
func (b *BatchNotifier) Done() <-chan Status {
	return b.done
}

// Finalizer returns the finalizer for the event at the given batch index.
func (b *BatchNotifier) Finalizer(index int) *Finalizer {
	return &Finalizer{batch: b, index: uint32(index)}
}

// Pending returns how many events in the batch have not finalized yet.
func (b *BatchNotifier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.total - b.finalized.GetCardinality())
}

func (b *BatchNotifier) update(index uint32, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized.Contains(index) {
		return
	}
	b.finalized.Add(index)
	b.status = b.status.Merge(status)

	if !b.fired && b.finalized.GetCardinality() >= b.total {
		b.fired = true
		b.done <- b.status
		close(b.done)
	}
}

// Finalizer marks a single batch member as finished. It is safe to share a
// finalizer across clones of the same event: only the first Update counts.
type Finalizer struct {
	batch *BatchNotifier
	index uint32
}

// Update records the delivery status for this event. Calling Update on a nil
// finalizer, or more than once, is a no-op.
func (f *Finalizer) Update(status Status) {
	if f == nil || f.batch == nil {
		return
	}
	f.batch.update(f.index, status)
}
