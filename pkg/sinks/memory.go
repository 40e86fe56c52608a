package sinks

import (
	"context"
	"sync"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/event"
)

// MemorySink collects every event it receives, in arrival order. Used in
// tests to assert on what reached the end of a topology.
type MemorySink struct {
	mu     sync.Mutex
	events []event.Event
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Run(ctx context.Context, in <-chan event.Batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			s.mu.Lock()
			s.events = append(s.events, batch.Events()...)
			s.mu.Unlock()
			batch.Finalize(acks.StatusDelivered)
		}
	}
}

// Events returns a snapshot of everything received so far.
func (s *MemorySink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events received so far.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
