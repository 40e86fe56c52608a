package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ComponentEvents is the per-component observability side channel: counters
// for events in, out, and discarded, plus debug logging for drop paths.
// Runtime per-event failures never interrupt throughput; they are visible
// only through these signals.
type ComponentEvents struct {
	logger    *zap.Logger
	component string

	received  metric.Int64Counter
	sent      metric.Int64Counter
	discarded metric.Int64Counter
}

// NewComponentEvents creates the signal emitter for one component.
func NewComponentEvents(logger *zap.Logger, component string) *ComponentEvents {
	c := &ComponentEvents{
		logger:    logger.With(zap.String("component", component)),
		component: component,
	}

	meter := otel.Meter("eventflow")

	var err error
	c.received, err = meter.Int64Counter(
		"eventflow_component_received_events_total",
		metric.WithDescription("Events received by a component"),
	)
	if err != nil {
		c.logger.Warn("Failed to create received counter", zap.Error(err))
	}

	c.sent, err = meter.Int64Counter(
		"eventflow_component_sent_events_total",
		metric.WithDescription("Events emitted by a component"),
	)
	if err != nil {
		c.logger.Warn("Failed to create sent counter", zap.Error(err))
	}

	c.discarded, err = meter.Int64Counter(
		"eventflow_component_discarded_events_total",
		metric.WithDescription("Events dropped by a component"),
	)
	if err != nil {
		c.logger.Warn("Failed to create discarded counter", zap.Error(err))
	}

	return c
}

// EventsReceived records events arriving at the component.
func (c *ComponentEvents) EventsReceived(n int) {
	if c.received != nil {
		c.received.Add(context.Background(), int64(n), metric.WithAttributes(
			attribute.String("component", c.component),
		))
	}
}

// EventsSent records events the component emitted downstream.
func (c *ComponentEvents) EventsSent(n int) {
	if c.sent != nil {
		c.sent.Add(context.Background(), int64(n), metric.WithAttributes(
			attribute.String("component", c.component),
		))
	}
}

// EventDiscarded records a per-event drop. The event is gone; processing
// continues with the next one.
func (c *ComponentEvents) EventDiscarded(reason string, err error) {
	if c.discarded != nil {
		c.discarded.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("component", c.component),
			attribute.String("reason", reason),
		))
	}
	c.logger.Debug("Event discarded", zap.String("reason", reason), zap.Error(err))
}
