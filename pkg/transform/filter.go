package transform

import (
	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/condition"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("filter", func() Config { return &FilterConfig{} })
}

// FilterConfig configures the filter transform. Events matching the
// condition pass through; everything else is dropped and acknowledged
// as delivered, since the drop is intentional.
type FilterConfig struct {
	Condition condition.AnyCondition `yaml:"condition"`
}

func (c *FilterConfig) ComponentName() string { return "filter" }

func (c *FilterConfig) Build(ctx *config.TransformContext) (Transform, error) {
	cond, err := c.Condition.Build(ctx.EnrichmentTables)
	if err != nil {
		return Transform{}, errors.Wrap(err, errors.CodeInvalidConfig, "invalid filter condition")
	}
	return NewFunction(&filterTransform{
		condition: cond,
		events:    telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}), nil
}

func (c *FilterConfig) Input() config.Input { return config.InputAll() }

func (c *FilterConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *FilterConfig) Nestable(_ map[string]bool) bool { return true }

type filterTransform struct {
	condition condition.Condition
	events    *telemetry.ComponentEvents
}

func (t *filterTransform) Transform(e event.Event, output *OutputsBuf) {
	matched, e := t.condition.Check(e)
	if !matched {
		e.Meta().Finalize(acks.StatusDelivered)
		t.events.EventDiscarded("condition_not_matched", nil)
		return
	}
	output.Push(e)
}
