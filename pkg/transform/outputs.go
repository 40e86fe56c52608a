package transform

import (
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
)

// OutputsBuf is an ordered, appendable, drainable holding area for events in
// flight between chained transform stages. Each buffer declares the outputs
// it feeds; compound transforms allocate a pair and flip-flop between them so
// the buffer being written is always a different object from the buffer
// being read.
type OutputsBuf struct {
	outputs []config.Output
	events  []event.Event
}

// NewOutputsBuf creates a buffer for the declared outputs.
func NewOutputsBuf(outputs []config.Output) *OutputsBuf {
	return &OutputsBuf{outputs: outputs}
}

// NewOutputsBufWithCapacity creates a buffer pre-sized for capacity events.
func NewOutputsBufWithCapacity(outputs []config.Output, capacity int) *OutputsBuf {
	return &OutputsBuf{
		outputs: outputs,
		events:  make([]event.Event, 0, capacity),
	}
}

// NewDefaultBuf creates a buffer with a single default output accepting all
// data types.
func NewDefaultBuf(capacity int) *OutputsBuf {
	return NewOutputsBufWithCapacity([]config.Output{config.DefaultOutput(config.DataTypeAll)}, capacity)
}

// Outputs returns the declared output streams.
func (b *OutputsBuf) Outputs() []config.Output { return b.outputs }

// Push appends one event, preserving order.
func (b *OutputsBuf) Push(e event.Event) {
	b.events = append(b.events, e)
}

// Extend appends events in order.
func (b *OutputsBuf) Extend(events []event.Event) {
	b.events = append(b.events, events...)
}

// Len returns the number of buffered events.
func (b *OutputsBuf) Len() int { return len(b.events) }

// Drain returns the buffered events in order and resets the buffer, keeping
// its capacity. The returned slice must be fully consumed before the buffer
// is appended to again.
func (b *OutputsBuf) Drain() []event.Event {
	out := b.events
	b.events = b.events[:0]
	return out
}

// Take consumes the buffer into a Batch, releasing the backing storage.
func (b *OutputsBuf) Take() event.Batch {
	batch := event.NewBatch(b.events...)
	b.events = nil
	return batch
}
