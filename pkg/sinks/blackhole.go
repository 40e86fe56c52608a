package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterConfig("blackhole", func() Config { return &BlackholeConfig{} })
}

// BlackholeConfig configures the blackhole sink: acknowledge and discard
// everything. Useful for load tests and for terminating streams whose only
// purpose is their side effects upstream.
type BlackholeConfig struct {
	// PrintIntervalEvents logs a running total every N events. Zero disables
	// the log line.
	PrintIntervalEvents int64 `yaml:"print_interval_events,omitempty"`
}

func (c *BlackholeConfig) ComponentName() string { return "blackhole" }

func (c *BlackholeConfig) Input() config.Input { return config.InputAll() }

func (c *BlackholeConfig) Build(ctx *Context) (Sink, error) {
	return &blackholeSink{
		printEvery: c.PrintIntervalEvents,
		logger:     ctx.Logger,
	}, nil
}

type blackholeSink struct {
	printEvery int64
	logger     *zap.Logger
	total      int64
}

func (s *blackholeSink) Run(ctx context.Context, in <-chan event.Batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				s.logger.Info("blackhole sink finished", zap.Int64("total", s.total))
				return nil
			}
			n := int64(batch.Len())
			batch.Finalize(acks.StatusDelivered)

			before := s.total
			s.total += n
			if s.printEvery > 0 && before/s.printEvery != s.total/s.printEvery {
				s.logger.Info("events discarded", zap.Int64("total", s.total))
			}
		}
	}
}
