package sinks

import (
	"bufio"
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/codec"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("console", func() Config { return &ConsoleConfig{} })
}

// ConsoleConfig configures the console sink: one encoded frame per line on
// stdout or stderr.
type ConsoleConfig struct {
	// Codec encodes each event. Defaults to "json".
	Codec string `yaml:"codec,omitempty"`

	// Target is "stdout" or "stderr".
	Target string `yaml:"target,omitempty"`
}

func (c *ConsoleConfig) ComponentName() string { return "console" }

func (c *ConsoleConfig) Input() config.Input { return config.InputAll() }

func (c *ConsoleConfig) Build(ctx *Context) (Sink, error) {
	codecName := c.Codec
	if codecName == "" {
		codecName = "json"
	}
	enc, err := codec.NewEncoder(codecName)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "console sink codec")
	}

	var target io.Writer
	switch c.Target {
	case "", "stdout":
		target = os.Stdout
	case "stderr":
		target = os.Stderr
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "console target must be stdout or stderr, got %q", c.Target)
	}

	return &consoleSink{
		encoder: enc,
		out:     target,
		logger:  ctx.Logger,
		events:  telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}, nil
}

type consoleSink struct {
	encoder codec.Encoder
	out     io.Writer
	logger  *zap.Logger
	events  *telemetry.ComponentEvents
}

func (s *consoleSink) Run(ctx context.Context, in <-chan event.Batch) error {
	w := bufio.NewWriter(s.out)
	defer w.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			for _, e := range batch.Events() {
				data, err := s.encoder.Encode(e)
				if err != nil {
					s.events.EventDiscarded("encode_failed", err)
					e.Meta().Finalize(acks.StatusErrored)
					continue
				}
				w.Write(data)
				w.WriteByte('\n')
				e.Meta().Finalize(acks.StatusDelivered)
			}
			if err := w.Flush(); err != nil {
				return errors.Wrap(err, errors.CodeDeliveryFailed, "console write")
			}
			s.events.EventsSent(batch.Len())
		}
	}
}
