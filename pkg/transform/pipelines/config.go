package pipelines

import (
	"fmt"

	"github.com/eventflow/eventflow/pkg/condition"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/transform"
)

// 64 is a lowish number and arbitrarily chosen: there is no magic to this
// magic constant.
const interiorBufferSize = 64

func init() {
	transform.RegisterConfig("pipeline", func() transform.Config { return &PipelineConfig{} })
}

// PipelineConfig configures one named pipeline: an optional routing filter
// plus an ordered list of sequential transforms applied to every event that
// matches it. Immutable after configuration build.
type PipelineConfig struct {
	// Name of the pipeline, used in error messages and component keys.
	Name string `yaml:"name"`

	// Filter decides whether an event is processed by this pipeline. Events
	// that do not match pass through untransformed.
	Filter *condition.AnyCondition `yaml:"filter,omitempty"`

	// Transforms is the ordered sub-transform chain.
	Transforms []transform.ConfigWrapper `yaml:"transforms"`
}

func (c *PipelineConfig) ComponentName() string { return "pipeline" }

// Build resolves the filter and the sub-transform chain.
//
// The interior chain is a topology within a topology: expansion-level
// validation (input/output type compatibility between neighbours) does not
// run here, so the build enforces the assumptions the engine relies on
// instead. A pipeline must have at least one transform, no member may
// declare a named output (the chain is single-output linear), and every
// member must build to a function or synchronous variant.
func (c *PipelineConfig) Build(ctx *config.TransformContext) (transform.Transform, error) {
	var cond condition.Condition
	if c.Filter != nil {
		built, err := c.Filter.Build(ctx.EnrichmentTables)
		if err != nil {
			return transform.Transform{}, errors.Wrapf(err, errors.CodeInvalidConfig,
				"invalid filter for pipeline %s", c.Name)
		}
		cond = built
	}

	if len(c.Transforms) == 0 {
		return transform.Transform{}, errors.Newf(errors.CodeEmptyPipeline,
			"empty pipeline: %s", c.Name)
	}

	// Pipelines assume single-output linear chaining. A transform with named
	// outputs would silently lose its extra streams, so reject it at build
	// time instead.
	for _, tc := range c.Transforms {
		if len(tc.Config.Outputs(ctx.MergedSchema, ctx.LogNamespace)) > 1 {
			return transform.Transform{}, errors.Newf(errors.CodeNamedOutput,
				"pipeline %s has transform of type %s with a named output, unsupported",
				c.Name, tc.Config.ComponentName())
		}
	}

	stages := make([]stage, 0, len(c.Transforms))
	for _, tc := range c.Transforms {
		built, err := tc.Config.Build(ctx)
		if err != nil {
			return transform.Transform{}, err
		}
		switch {
		case built.IsFunction():
			stages = append(stages, stage{fn: built.Function()})
		case built.IsSynchronous():
			stages = append(stages, stage{sync: built.Synchronous()})
		default:
			return transform.Transform{}, errors.Newf(errors.CodeNonSyncTransform,
				"non-sync transform in pipeline: %s", tc.Config.ComponentName())
		}
	}

	return transform.NewSynchronous(&Pipeline{
		name:      c.Name,
		condition: cond,
		stages:    stages,
		bufIn:     transform.NewDefaultBuf(interiorBufferSize),
		bufOut:    transform.NewDefaultBuf(interiorBufferSize),
	}), nil
}

// Input is the input of the first member transform.
func (c *PipelineConfig) Input() config.Input {
	if len(c.Transforms) == 0 {
		panic(fmt.Sprintf("pipeline %s does not have transforms", c.Name))
	}
	return c.Transforms[0].Config.Input()
}

// Outputs are the outputs of the last member transform.
func (c *PipelineConfig) Outputs(merged *config.Definition, ns config.LogNamespace) []config.Output {
	if len(c.Transforms) == 0 {
		panic(fmt.Sprintf("pipeline %s does not have transforms", c.Name))
	}
	return c.Transforms[len(c.Transforms)-1].Config.Outputs(merged, ns)
}

// Nestable forbids pipelines inside pipelines.
func (c *PipelineConfig) Nestable(parents map[string]bool) bool {
	return !parents["pipeline"] && !parents["pipelines"]
}

// expand inserts this pipeline as a single physical component consuming the
// given inputs and exposing one default all-types output.
func (c *PipelineConfig) expand(key config.ComponentKey, inputs []string) (*transform.InnerTopology, error) {
	result := transform.NewInnerTopology()
	result.Inner[key.ID()] = transform.InnerTopologyTransform{
		Inputs: append([]string(nil), inputs...),
		Inner:  c,
	}
	result.Outputs = append(result.Outputs, transform.InnerTopologyOutput{
		Key:     key,
		Outputs: []config.Output{config.DefaultOutput(config.DataTypeAll)},
	})
	return result, nil
}
