package topology

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/sinks"
	"github.com/eventflow/eventflow/pkg/sources"
)

// Build resolves a parsed, expanded Config into a runnable Topology. ctx
// bounds the lifetime of background work started by components at build time,
// so it should be the same context later passed to Run.
func Build(ctx context.Context, cfg *Config, logger *zap.Logger) (*Topology, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	topo := New(logger)
	if cfg.QueueCapacity > 0 {
		topo.SetQueueCapacity(cfg.QueueCapacity)
	}

	store, err := cfg.BuildCheckpointStore()
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		topo.closers = append(topo.closers, closer)
	}

	for _, name := range sortedNames(cfg.Sources) {
		node := cfg.Sources[name]
		srcCtx := &sources.Context{
			Key:         config.NewComponentKey(name),
			Logger:      logger.With(zap.String("component", name)),
			Checkpoints: store,
		}
		src, err := node.Config.Build(srcCtx)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "building source %q", name)
		}
		topo.AddSource(name, src)
	}

	for _, name := range sortedNames(cfg.Transforms) {
		node := cfg.Transforms[name]
		tctx := config.NewTransformContext().WithKey(config.NewComponentKey(name))
		tctx.Context = ctx
		tctx.Logger = logger.With(zap.String("component", name))

		built, err := node.Config.Build(tctx)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "building transform %q", name)
		}
		sync, ok := built.IntoSync()
		if !ok {
			return nil, errors.Newf(errors.CodeInvalidConfig, "transform %q is not runnable", name)
		}
		outputs := node.Config.Outputs(tctx.MergedSchema, tctx.LogNamespace)
		topo.AddTransform(name, sync, outputs, node.Inputs)
	}

	for _, name := range sortedNames(cfg.Sinks) {
		node := cfg.Sinks[name]
		sinkCtx := &sinks.Context{
			Key:    config.NewComponentKey(name),
			Logger: logger.With(zap.String("component", name)),
		}
		sink, err := node.Config.Build(sinkCtx)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "building sink %q", name)
		}
		topo.AddSink(name, sink, node.Inputs)
	}

	return topo, nil
}
