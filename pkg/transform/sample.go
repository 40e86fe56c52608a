package transform

import (
	"fmt"
	"hash/fnv"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("sample", func() Config { return &SampleConfig{} })
}

// SampleConfig configures the sample transform, which forwards one in
// every Rate events. When KeyField is set, the decision hashes that
// field's value so that all events sharing the value are kept or
// dropped together; otherwise a running counter is used.
type SampleConfig struct {
	Rate     uint64 `yaml:"rate"`
	KeyField string `yaml:"key_field,omitempty"`
}

func (c *SampleConfig) ComponentName() string { return "sample" }

func (c *SampleConfig) Build(ctx *config.TransformContext) (Transform, error) {
	if c.Rate < 1 {
		return Transform{}, errors.Newf(errors.CodeInvalidConfig, "sample rate must be >= 1, got %d", c.Rate)
	}
	return NewFunction(&sampler{
		rate:     c.Rate,
		keyField: c.KeyField,
		events:   telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}), nil
}

func (c *SampleConfig) Input() config.Input { return config.InputAll() }

func (c *SampleConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *SampleConfig) Nestable(_ map[string]bool) bool { return true }

type sampler struct {
	rate     uint64
	keyField string
	count    uint64
	events   *telemetry.ComponentEvents
}

func (t *sampler) Transform(e event.Event, output *OutputsBuf) {
	var n uint64
	if t.keyField != "" {
		if v, ok := e.Field(t.keyField); ok {
			h := fnv.New64a()
			fmt.Fprintf(h, "%v", v)
			n = h.Sum64()
		}
	} else {
		n = t.count
		t.count++
	}
	if n%t.rate != 0 {
		e.Meta().Finalize(acks.StatusDelivered)
		t.events.EventDiscarded("sample_rate", nil)
		return
	}
	output.Push(e)
}
