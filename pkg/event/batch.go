package event

import "github.com/eventflow/eventflow/pkg/acks"

// Batch is an ordered sequence of events processed together. Insertion order
// is significant: it determines downstream ordering guarantees. A batch owns
// its events exclusively until drained.
type Batch struct {
	events []Event
}

// NewBatch creates a batch over the given events.
func NewBatch(events ...Event) Batch {
	return Batch{events: events}
}

// Push appends an event, preserving order.
func (b *Batch) Push(e Event) {
	b.events = append(b.events, e)
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int { return len(b.events) }

// Events returns the underlying event sequence without draining it.
func (b *Batch) Events() []Event { return b.events }

// Drain consumes the batch, returning its events in order. The batch is
// empty afterwards.
func (b *Batch) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}

// Clone deep-copies every event. Acknowledgement linkage is shared, so a
// clone does not add members to the originating batch notifier.
func (b *Batch) Clone() Batch {
	out := make([]Event, len(b.events))
	for i, e := range b.events {
		out[i] = e.Clone()
	}
	return Batch{events: out}
}

// AddNotifier attaches a fresh BatchNotifier covering every event currently
// in the batch and returns it. Sources call this right before emitting.
func (b *Batch) AddNotifier() *acks.BatchNotifier {
	n := acks.NewBatchNotifier(len(b.events))
	for i, e := range b.events {
		e.Meta().SetFinalizer(n.Finalizer(i))
	}
	return n
}

// Finalize reports the same status for every event still in the batch.
func (b *Batch) Finalize(status acks.Status) {
	for _, e := range b.events {
		e.Meta().Finalize(status)
	}
}
