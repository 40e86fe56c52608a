package sources

import (
	"context"

	"github.com/eventflow/eventflow/pkg/event"
)

// MemorySource replays a fixed set of batches, then returns. Used in tests
// and benchmarks where deterministic input matters.
type MemorySource struct {
	Batches []event.Batch
}

// NewMemorySource wraps pre-built batches.
func NewMemorySource(batches ...event.Batch) *MemorySource {
	return &MemorySource{Batches: batches}
}

func (s *MemorySource) Run(ctx context.Context, out chan<- event.Batch) error {
	for _, batch := range s.Batches {
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
