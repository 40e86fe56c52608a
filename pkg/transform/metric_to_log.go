package transform

import (
	"time"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("metric_to_log", func() Config { return &MetricToLogConfig{} })
}

// MetricToLogConfig configures the metric_to_log transform, which rewrites
// each metric as a log event carrying the metric's name, kind, value,
// timestamp, and tags as structured fields. When HostTag names a tag, its
// value is additionally promoted to the top-level "host" field.
type MetricToLogConfig struct {
	HostTag string `yaml:"host_tag,omitempty"`
}

func (c *MetricToLogConfig) ComponentName() string { return "metric_to_log" }

func (c *MetricToLogConfig) Build(ctx *config.TransformContext) (Transform, error) {
	return NewFunction(&metricToLog{
		hostTag: c.HostTag,
		events:  telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}), nil
}

func (c *MetricToLogConfig) Input() config.Input { return config.InputMetric() }

func (c *MetricToLogConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeLog)}
}

func (c *MetricToLogConfig) Nestable(_ map[string]bool) bool { return true }

type metricToLog struct {
	hostTag string
	events  *telemetry.ComponentEvents
}

func (t *metricToLog) Transform(e event.Event, output *OutputsBuf) {
	m, ok := e.(*event.Metric)
	if !ok {
		e.Meta().Finalize(acks.StatusDelivered)
		t.events.EventDiscarded("not_a_metric", nil)
		return
	}

	fields := map[string]interface{}{
		"name":      m.Name,
		"kind":      m.MetricKind.String(),
		"value":     m.Value,
		"timestamp": m.Timestamp.Format(time.RFC3339Nano),
	}
	if len(m.Tags) > 0 {
		tags := make(map[string]interface{}, len(m.Tags))
		for k, v := range m.Tags {
			tags[k] = v
		}
		fields["tags"] = tags
	}
	if t.hostTag != "" {
		if host, ok := m.Tags[t.hostTag]; ok {
			fields["host"] = host
		}
	}

	log := event.LogFromMap(fields)
	*log.Meta() = m.Meta().CloneMeta()
	output.Push(log)
}
