package pipelines

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/transform"
)

func init() {
	transform.RegisterConfig("pipelines", func() transform.Config { return &PipelinesConfig{} })
}

// PipelineSetConfig is an ordered list of named pipelines. Order is the
// user's declared order and determines physical chaining.
type PipelineSetConfig []PipelineConfig

// IsEmpty reports whether the set holds no pipelines.
func (s PipelineSetConfig) IsEmpty() bool { return len(s) == 0 }

// Expand expands the pipelines in declared order into a linear chain of
// physical components: each pipeline gets a namespaced key under name, its
// inputs are the outputs of the pipeline expanded just before it, and the
// whole expansion exposes the last pipeline's outputs.
func (s PipelineSetConfig) Expand(name config.ComponentKey, inputs []string) (*transform.InnerTopology, error) {
	result := transform.NewInnerTopology()
	nextInputs := append([]string(nil), inputs...)

	for index := range s {
		key := name.Join(index)
		topology, err := s[index].expand(key, nextInputs)
		if err != nil {
			return nil, fmt.Errorf("unable to expand pipeline %q (%s): %w", s[index].Name, key, err)
		}
		result.Merge(topology)
		result.Outputs = topology.Outputs
		nextInputs = result.OutputIDs()
	}

	return result, nil
}

// ValidateNesting checks that every member transform of every pipeline
// declares itself nestable inside the given parent-type set, failing on the
// first violation.
func (s PipelineSetConfig) ValidateNesting(parents map[string]bool) error {
	for pipelineIndex := range s {
		pipeline := &s[pipelineIndex]
		for transformIndex, tc := range pipeline.Transforms {
			if !tc.Config.Nestable(parents) {
				return errors.Newf(errors.CodeInvalidNesting,
					"the transform %d in pipeline %q (at index %d) cannot be nested in %s",
					transformIndex, pipeline.Name, pipelineIndex, formatParents(parents))
			}
		}
	}
	return nil
}

// PipelinesConfig is the user-facing compound transform: an ordered list of
// named pipelines expanded into the physical transform graph at
// configuration-build time.
type PipelinesConfig struct {
	Pipelines PipelineSetConfig `yaml:"pipelines"`
}

func (c *PipelinesConfig) ComponentName() string { return "pipelines" }

// Build is never valid on the compound config: it expands into per-pipeline
// components before the build phase runs.
func (c *PipelinesConfig) Build(_ *config.TransformContext) (transform.Transform, error) {
	return transform.Transform{}, errors.New(errors.CodeInvalidConfig,
		"pipelines transform must be expanded, not built directly")
}

func (c *PipelinesConfig) Input() config.Input { return config.InputAll() }

func (c *PipelinesConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

// Nestable forbids a pipelines block inside another compound transform.
func (c *PipelinesConfig) Nestable(parents map[string]bool) bool {
	return len(parents) == 0
}

// Expand validates nesting and expands the pipeline set, threading inputs in
// declared order.
func (c *PipelinesConfig) Expand(key config.ComponentKey, inputs []string) (*transform.InnerTopology, error) {
	if c.Pipelines.IsEmpty() {
		return nil, errors.Newf(errors.CodeInvalidConfig, "%s: no pipelines defined", key)
	}
	if err := c.Pipelines.ValidateNesting(map[string]bool{"pipelines": true}); err != nil {
		return nil, err
	}
	return c.Pipelines.Expand(key, inputs)
}

func formatParents(parents map[string]bool) string {
	names := make([]string, 0, len(parents))
	for name := range parents {
		names = append(names, name)
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}
