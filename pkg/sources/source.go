// Package sources defines topology inputs: components that produce event
// batches from the outside world. Sources run until their context is
// cancelled and own the acknowledgement linkage for the batches they emit.
package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eventflow/eventflow/pkg/checkpoint"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
)

// Source produces batches onto out until ctx is cancelled or the source is
// exhausted. Implementations must not close out; the runner owns the channel.
type Source interface {
	Run(ctx context.Context, out chan<- event.Batch) error
}

// Context carries the build-time dependencies handed to source configs.
type Context struct {
	Key         config.ComponentKey
	Logger      *zap.Logger
	Checkpoints checkpoint.Store // nil when checkpointing is disabled
}

// NewContext returns a context suitable for tests.
func NewContext() *Context {
	return &Context{Logger: zap.NewNop()}
}

// Config builds a source from configuration.
type Config interface {
	ComponentName() string
	Build(ctx *Context) (Source, error)

	// OutputType declares the data types this source emits.
	OutputType() config.DataType
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Config)
)

// RegisterConfig registers a source config factory under its type name.
func RegisterConfig(name string, factory func() Config) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("source %q registered twice", name))
	}
	registry[name] = factory
}

// NewConfig instantiates an empty config for the given type name.
func NewConfig(name string) (Config, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", name)
	}
	return factory(), nil
}

// ConfigTypes lists registered source type names, sorted.
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
// source config for that type.
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
		return fmt.Errorf("source config is missing a type")
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
