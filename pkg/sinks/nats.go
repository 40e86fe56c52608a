package sinks

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/codec"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/resilience"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("nats", func() Config { return &NatsConfig{} })
}

// NatsConfig configures the NATS sink: one published message per event.
// Delivery is acknowledged after the server confirms the flush, so a dropped
// connection marks the whole in-flight batch errored rather than silently
// losing it.
type NatsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`

	// Codec encodes each event. Defaults to "json".
	Codec string `yaml:"codec,omitempty"`
}

func (c *NatsConfig) ComponentName() string { return "nats" }

func (c *NatsConfig) Input() config.Input { return config.InputAll() }

func (c *NatsConfig) Build(ctx *Context) (Sink, error) {
	if c.URL == "" || c.Subject == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "nats sink requires url and subject")
	}
	codecName := c.Codec
	if codecName == "" {
		codecName = "json"
	}
	enc, err := codec.NewEncoder(codecName)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "nats sink codec")
	}

	return &natsSink{
		url:     c.URL,
		subject: c.Subject,
		encoder: enc,
		key:     ctx.Key.ID(),
		logger:  ctx.Logger,
		events:  telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}, nil
}

type natsSink struct {
	url     string
	subject string
	encoder codec.Encoder
	key     string
	logger  *zap.Logger
	events  *telemetry.ComponentEvents
}

func (s *natsSink) Run(ctx context.Context, in <-chan event.Batch) error {
	nc, err := nats.Connect(s.url,
		nats.Name("eventflow/"+s.key),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(*nats.Conn) {
			s.logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return errors.Wrapf(err, errors.CodeDeliveryFailed, "connecting to %s", s.url)
	}
	defer nc.Drain()

	s.logger.Info("nats sink connected",
		zap.String("url", s.url),
		zap.String("subject", s.subject))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			published := make([]event.Event, 0, batch.Len())
			for _, e := range batch.Events() {
				data, encErr := s.encoder.Encode(e)
				if encErr != nil {
					s.events.EventDiscarded("encode_failed", encErr)
					e.Meta().Finalize(acks.StatusErrored)
					continue
				}
				if pubErr := nc.Publish(s.subject, data); pubErr != nil {
					s.events.EventDiscarded("publish_failed", pubErr)
					e.Meta().Finalize(acks.StatusErrored)
					continue
				}
				published = append(published, e)
			}
			flushErr := resilience.Do(ctx, resilience.DefaultPolicy(), func() error {
				return nc.FlushWithContext(ctx)
			})
			if flushErr != nil {
				for _, e := range published {
					e.Meta().Finalize(acks.StatusErrored)
				}
				return errors.Wrap(flushErr, errors.CodeDeliveryFailed, "nats flush")
			}
			for _, e := range published {
				e.Meta().Finalize(acks.StatusDelivered)
			}
			s.events.EventsSent(len(published))
		}
	}
}
