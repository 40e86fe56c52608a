// Package sinks defines topology outputs: components that consume event
// batches and deliver them somewhere. Sinks own the final acknowledgement:
// every event in a consumed batch must be finalized with the delivery
// outcome, or upstream sources will wait on the batch forever.
package sinks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
)

// Sink consumes batches from in until the channel closes or ctx is
// cancelled.
type Sink interface {
	Run(ctx context.Context, in <-chan event.Batch) error
}

// Context carries the build-time dependencies handed to sink configs.
type Context struct {
	Key    config.ComponentKey
	Logger *zap.Logger
}

// NewContext returns a context suitable for tests.
func NewContext() *Context {
	return &Context{Logger: zap.NewNop()}
}

// Config builds a sink from configuration.
type Config interface {
	ComponentName() string
	Build(ctx *Context) (Sink, error)

	// Input declares what the sink consumes.
	Input() config.Input
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Config)
)

// RegisterConfig registers a sink config factory under its type name.
func RegisterConfig(name string, factory func() Config) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("sink %q registered twice", name))
	}
	registry[name] = factory
}

// NewConfig instantiates an empty config for the given type name.
func NewConfig(name string) (Config, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sink type: %q", name)
	}
	return factory(), nil
}

// ConfigTypes lists registered sink type names, sorted.
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
// sink config for that type.
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
		return fmt.Errorf("sink config is missing a type")
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
