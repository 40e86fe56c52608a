package sources

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/flow"
)

func init() {
	RegisterConfig("demo", func() Config { return &DemoConfig{} })
}

// DemoConfig configures the demo source: synthetic logs or metrics at a
// steady rate, for exercising a topology without external inputs.
type DemoConfig struct {
	// Variant is "logs" or "metrics".
	Variant string `yaml:"variant,omitempty"`

	// EventsPerSec caps the emit rate. Zero means unthrottled.
	EventsPerSec int64 `yaml:"events_per_sec,omitempty"`

	// Count stops the source after this many events. Zero means unbounded.
	Count int64 `yaml:"count,omitempty"`

	// BatchSize is how many events share one batch.
	BatchSize int `yaml:"batch_size,omitempty"`
}

func (c *DemoConfig) ComponentName() string { return "demo" }

func (c *DemoConfig) OutputType() config.DataType {
	if c.Variant == "metrics" {
		return config.DataTypeMetric
	}
	return config.DataTypeLog
}

func (c *DemoConfig) Build(ctx *Context) (Source, error) {
	variant := c.Variant
	if variant == "" {
		variant = "logs"
	}
	if variant != "logs" && variant != "metrics" {
		return nil, errors.Newf(errors.CodeInvalidConfig, "demo variant must be logs or metrics, got %q", variant)
	}
	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	var limiter *flow.TokenBucket
	if c.EventsPerSec > 0 {
		limiter = flow.NewTokenBucket(c.EventsPerSec, c.EventsPerSec)
	}

	return &demoSource{
		key:       ctx.Key.ID(),
		variant:   variant,
		count:     c.Count,
		batchSize: batchSize,
		limiter:   limiter,
		logger:    ctx.Logger,
	}, nil
}

type demoSource struct {
	key       string
	variant   string
	count     int64
	batchSize int
	limiter   *flow.TokenBucket
	logger    *zap.Logger
}

var demoLevels = []string{"debug", "info", "warn", "error"}

func (s *demoSource) Run(ctx context.Context, out chan<- event.Batch) error {
	s.logger.Info("demo source started",
		zap.String("variant", s.variant),
		zap.Int64("count", s.count))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var produced int64

	for s.count == 0 || produced < s.count {
		batch := event.NewBatch()
		for i := 0; i < s.batchSize; i++ {
			if s.count != 0 && produced >= s.count {
				break
			}
			if s.limiter != nil {
				if err := s.limiter.Acquire(ctx, 1); err != nil {
					return err
				}
			}
			batch.Push(s.generate(rng, produced))
			produced++
		}
		if batch.Len() == 0 {
			break
		}

		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.logger.Info("demo source finished", zap.Int64("produced", produced))
	return nil
}

func (s *demoSource) generate(rng *rand.Rand, seq int64) event.Event {
	var e event.Event
	if s.variant == "metrics" {
		m := event.NewMetric("demo_events_total", event.MetricCounter, float64(seq))
		m.Tags = map[string]string{"source": s.key}
		e = m
	} else {
		e = event.LogFromMap(map[string]interface{}{
			"message": fmt.Sprintf("demo event %d", seq),
			"level":   demoLevels[rng.Intn(len(demoLevels))],
			"seq":     seq,
		})
	}
	e.Meta().Source = s.key
	e.Meta().IngestedAt = time.Now().UTC()
	return e
}
