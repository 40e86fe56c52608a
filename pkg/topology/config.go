// Package topology loads, expands, builds, and runs a full event pipeline:
// sources feeding transforms feeding sinks, wired by name.
package topology

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eventflow/eventflow/pkg/checkpoint"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/sinks"
	"github.com/eventflow/eventflow/pkg/sources"
	"github.com/eventflow/eventflow/pkg/telemetry"
	"github.com/eventflow/eventflow/pkg/transform"
)

// Config is the root yaml document.
type Config struct {
	Sources    map[string]SourceNode    `yaml:"sources"`
	Transforms map[string]TransformNode `yaml:"transforms,omitempty"`
	Sinks      map[string]SinkNode      `yaml:"sinks"`

	Checkpoints *CheckpointConfig      `yaml:"checkpoints,omitempty"`
	Telemetry   *telemetry.OTLPConfig  `yaml:"telemetry,omitempty"`

	// QueueCapacity bounds each inter-component queue.
	QueueCapacity int `yaml:"queue_capacity,omitempty"`
}

// CheckpointConfig selects where source positions are persisted.
type CheckpointConfig struct {
	// Directory for the file store.
	Directory string `yaml:"directory,omitempty"`

	// Redis enables the Redis store. With both set, the file store is
	// primary and Redis is the best-effort secondary.
	Redis *checkpoint.RedisConfig `yaml:"redis,omitempty"`
}

// SourceNode is one named source.
type SourceNode struct {
	Config sources.Config
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *SourceNode) UnmarshalYAML(node *yaml.Node) error {
	var w sources.ConfigWrapper
	if err := w.UnmarshalYAML(node); err != nil {
		return err
	}
	n.Config = w.Config
	return nil
}

// TransformNode is one named transform plus the components feeding it.
type TransformNode struct {
	Inputs []string
	Config transform.Config
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *TransformNode) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Inputs []string `yaml:"inputs"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	var w transform.ConfigWrapper
	if err := w.UnmarshalYAML(node); err != nil {
		return err
	}
	n.Inputs = head.Inputs
	n.Config = w.Config
	return nil
}

// SinkNode is one named sink plus the components feeding it.
type SinkNode struct {
	Inputs []string
	Config sinks.Config
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *SinkNode) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Inputs []string `yaml:"inputs"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	var w sinks.ConfigWrapper
	if err := w.UnmarshalYAML(node); err != nil {
		return err
	}
	n.Inputs = head.Inputs
	n.Config = w.Config
	return nil
}

// Load reads and parses a topology file, then expands compound transforms
// and validates the graph.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a topology document, expands compound transforms, and
// validates the graph.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "parsing topology")
	}
	if err := cfg.expandTransforms(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks naming and reference integrity.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New(errors.CodeInvalidConfig, "topology requires at least one source")
	}
	if len(c.Sinks) == 0 {
		return errors.New(errors.CodeInvalidConfig, "topology requires at least one sink")
	}

	names := make(map[string]string)
	for name := range c.Sources {
		names[name] = "source"
	}
	for name := range c.Transforms {
		if kind, dup := names[name]; dup {
			return errors.Newf(errors.CodeInvalidConfig, "component name %q used by both a %s and a transform", name, kind)
		}
		names[name] = "transform"
	}
	for name := range c.Sinks {
		if kind, dup := names[name]; dup {
			return errors.Newf(errors.CodeInvalidConfig, "component name %q used by both a %s and a sink", name, kind)
		}
		names[name] = "sink"
	}

	check := func(consumer string, inputs []string) error {
		if len(inputs) == 0 {
			return errors.Newf(errors.CodeInvalidConfig, "component %q has no inputs", consumer)
		}
		for _, input := range inputs {
			kind, ok := names[input]
			if !ok {
				return errors.Newf(errors.CodeUnknownComponent, "component %q references unknown input %q", consumer, input)
			}
			if kind == "sink" {
				return errors.Newf(errors.CodeInvalidConfig, "component %q cannot consume from sink %q", consumer, input)
			}
		}
		return nil
	}

	for name, node := range c.Transforms {
		if err := check(name, node.Inputs); err != nil {
			return err
		}
	}
	for name, node := range c.Sinks {
		if err := check(name, node.Inputs); err != nil {
			return err
		}
	}
	return nil
}

// BuildCheckpointStore resolves the configured position store, or nil when
// checkpointing is disabled.
func (c *Config) BuildCheckpointStore() (checkpoint.Store, error) {
	if c.Checkpoints == nil {
		return nil, nil
	}

	var file checkpoint.Store
	if c.Checkpoints.Directory != "" {
		fs, err := checkpoint.NewFileStore(c.Checkpoints.Directory)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "checkpoint directory")
		}
		file = fs
	}

	var rs checkpoint.Store
	if c.Checkpoints.Redis != nil {
		redisCfg := *c.Checkpoints.Redis
		if redisCfg.Prefix == "" {
			redisCfg.Prefix = "eventflow:checkpoints:"
		}
		if redisCfg.Timeout == 0 {
			redisCfg.Timeout = 5 * time.Second
		}
		store, err := checkpoint.NewRedisStore(redisCfg)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "checkpoint redis")
		}
		rs = store
	}

	switch {
	case file != nil && rs != nil:
		return checkpoint.NewMultiStore(file, rs), nil
	case file != nil:
		return file, nil
	case rs != nil:
		return rs, nil
	default:
		return nil, nil
	}
}

// sortedNames returns map keys in deterministic order.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
