package topology

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/sinks"
	"github.com/eventflow/eventflow/pkg/sources"
	"github.com/eventflow/eventflow/pkg/telemetry"
	"github.com/eventflow/eventflow/pkg/transform"
)

const defaultQueueCapacity = 128

// runnableTransform is a built transform plus its wiring.
type runnableTransform struct {
	inputs  []string
	sync    transform.SyncTransform
	outputs []config.Output
}

// runnableSink is a built sink plus its wiring.
type runnableSink struct {
	inputs []string
	sink   sinks.Sink
}

// Topology is a built component graph ready to run. Components are connected
// by bounded channels of batches; a producer feeding several consumers clones
// the batch for each extra consumer, so acknowledgement linkage is shared.
type Topology struct {
	logger   *zap.Logger
	queueCap int

	sources    map[string]sources.Source
	transforms map[string]*runnableTransform
	sinks      map[string]*runnableSink

	// closers are resources owned by the topology, released by Close.
	closers []io.Closer
}

// New creates an empty topology. Components are added programmatically or by
// Build from a parsed Config.
func New(logger *zap.Logger) *Topology {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Topology{
		logger:     logger,
		queueCap:   defaultQueueCapacity,
		sources:    make(map[string]sources.Source),
		transforms: make(map[string]*runnableTransform),
		sinks:      make(map[string]*runnableSink),
	}
}

// SetQueueCapacity bounds the inter-component channels.
func (t *Topology) SetQueueCapacity(n int) *Topology {
	if n > 0 {
		t.queueCap = n
	}
	return t
}

// AddSource registers a built source under name.
func (t *Topology) AddSource(name string, src sources.Source) *Topology {
	t.sources[name] = src
	return t
}

// AddTransform registers a built transform under name, fed by inputs.
func (t *Topology) AddTransform(name string, s transform.SyncTransform, outputs []config.Output, inputs []string) *Topology {
	if len(outputs) == 0 {
		outputs = []config.Output{config.DefaultOutput(config.DataTypeAll)}
	}
	t.transforms[name] = &runnableTransform{inputs: inputs, sync: s, outputs: outputs}
	return t
}

// AddSink registers a built sink under name, fed by inputs.
func (t *Topology) AddSink(name string, sink sinks.Sink, inputs []string) *Topology {
	t.sinks[name] = &runnableSink{inputs: inputs, sink: sink}
	return t
}

// Close releases resources owned by the topology, such as checkpoint stores.
func (t *Topology) Close() error {
	var first error
	for _, c := range t.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *Topology) validate() error {
	if len(t.sources) == 0 {
		return errors.New(errors.CodeInvalidConfig, "topology has no sources")
	}
	if len(t.sinks) == 0 {
		return errors.New(errors.CodeInvalidConfig, "topology has no sinks")
	}

	producers := make(map[string]bool, len(t.sources)+len(t.transforms))
	for name := range t.sources {
		producers[name] = true
	}
	for name := range t.transforms {
		producers[name] = true
	}

	check := func(consumer string, inputs []string) error {
		if len(inputs) == 0 {
			return errors.Newf(errors.CodeInvalidConfig, "component %q has no inputs", consumer)
		}
		for _, input := range inputs {
			if !producers[input] {
				return errors.Newf(errors.CodeUnknownComponent, "component %q references unknown input %q", consumer, input)
			}
		}
		return nil
	}

	for name, rt := range t.transforms {
		if err := check(name, rt.inputs); err != nil {
			return err
		}
	}
	for name, rs := range t.sinks {
		if err := check(name, rs.inputs); err != nil {
			return err
		}
	}
	return nil
}

// fanout tracks how many live producers still feed each consumer channel and
// closes the channel once the last one finishes.
type fanout struct {
	mu        sync.Mutex
	remaining map[string]int
	channels  map[string]chan event.Batch
}

func (f *fanout) producerDone(consumers []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, consumer := range consumers {
		f.remaining[consumer]--
		if f.remaining[consumer] == 0 {
			close(f.channels[consumer])
		}
	}
}

// Run executes the topology until every source is exhausted or ctx is
// cancelled. Any component error cancels the whole graph.
func (t *Topology) Run(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}

	// One input channel per consumer, one subscriber list per producer.
	f := &fanout{
		remaining: make(map[string]int),
		channels:  make(map[string]chan event.Batch),
	}
	subscribers := make(map[string][]string)

	wire := func(consumer string, inputs []string) {
		f.channels[consumer] = make(chan event.Batch, t.queueCap)
		f.remaining[consumer] = len(inputs)
		for _, producer := range inputs {
			subscribers[producer] = append(subscribers[producer], consumer)
		}
	}
	for name, rt := range t.transforms {
		wire(name, rt.inputs)
	}
	for name, rs := range t.sinks {
		wire(name, rs.inputs)
	}

	g, ctx := errgroup.WithContext(ctx)

	// deliver forwards one producer's output to all of its subscribers,
	// cloning for each extra consumer.
	deliver := func(producer string, batch event.Batch) error {
		consumers := subscribers[producer]
		for i, consumer := range consumers {
			out := batch
			if i > 0 {
				out = batch.Clone()
			}
			select {
			case f.channels[consumer] <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for name, src := range t.sources {
		name, src := name, src
		g.Go(func() error {
			defer f.producerDone(subscribers[name])

			out := make(chan event.Batch, t.queueCap)
			inner, cancel := context.WithCancel(ctx)
			defer cancel()

			var runErr error
			done := make(chan struct{})
			go func() {
				defer close(done)
				defer close(out)
				runErr = src.Run(inner, out)
			}()

			for batch := range out {
				if err := deliver(name, batch); err != nil {
					cancel()
					for range out {
					}
					break
				}
			}
			<-done

			if runErr != nil && ctx.Err() == nil {
				return errors.Wrapf(runErr, errors.CodeSourceFailure, "source %s", name)
			}
			return nil
		})
	}

	for name, rt := range t.transforms {
		name, rt := name, rt
		g.Go(func() error {
			defer f.producerDone(subscribers[name])

			events := telemetry.NewComponentEvents(t.logger, name)
			for batch := range f.channels[name] {
				events.EventsReceived(batch.Len())
				buf := transform.NewOutputsBufWithCapacity(rt.outputs, batch.Len())
				rt.sync.TransformAll(batch, buf)
				out := buf.Take()
				events.EventsSent(out.Len())
				if err := deliver(name, out); err != nil {
					return nil
				}
			}
			return nil
		})
	}

	for name, rs := range t.sinks {
		name, rs := name, rs
		g.Go(func() error {
			if err := rs.sink.Run(ctx, f.channels[name]); err != nil && ctx.Err() == nil {
				return errors.Wrapf(err, errors.CodeDeliveryFailed, "sink %s", name)
			}
			return nil
		})
	}

	return g.Wait()
}
