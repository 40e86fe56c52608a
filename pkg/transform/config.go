package transform

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/eventflow/eventflow/pkg/config"
)

// Config builds a transform from configuration. Implementations register a
// factory under their component name so yaml topologies can reference them
// by type.
type Config interface {
	// ComponentName returns the registered type name.
	ComponentName() string

	// Build resolves the configuration into a runnable Transform. Build-time
	// failures are fatal to this component only.
	Build(ctx *config.TransformContext) (Transform, error)

	// Input declares what the transform consumes.
	Input() config.Input

	// Outputs declares the output streams given the merged upstream schema
	// and namespace setting. Most transforms have a single default output.
	Outputs(merged *config.Definition, ns config.LogNamespace) []config.Output

	// Nestable reports whether this transform may run inside a compound
	// transform whose parent types are given.
	Nestable(parents map[string]bool) bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Config)
)

// RegisterConfig registers a transform config factory under its type name.
// Panics on duplicate registration, which indicates an init-order bug.
func RegisterConfig(name string, factory func() Config) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("transform %q registered twice", name))
	}
	registry[name] = factory
}

// NewConfig instantiates an empty config for the given type name.
func NewConfig(name string) (Config, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transform type: %q", name)
	}
	return factory(), nil
}

// ConfigTypes lists registered transform type names, sorted.
func ConfigTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigWrapper decodes a `{type: <name>, ...}` yaml node into the registered
// config for that type, so heterogeneous transform lists can be unmarshalled.
type ConfigWrapper struct {
	Config Config
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *ConfigWrapper) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	if head.Type == "" {
		return fmt.Errorf("transform config is missing a type")
	}

	cfg, err := NewConfig(head.Type)
	if err != nil {
		return err
	}
	if err := node.Decode(cfg); err != nil {
		return fmt.Errorf("invalid %s config: %w", head.Type, err)
	}
	w.Config = cfg
	return nil
}
