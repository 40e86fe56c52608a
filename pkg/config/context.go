package config

import (
	"context"

	"go.uber.org/zap"
)

// LogNamespace selects where decoded log fields are rooted.
type LogNamespace uint8

const (
	// NamespaceLegacy roots decoded fields at the event top level.
	NamespaceLegacy LogNamespace = iota
	// NamespaceVendor nests decoded fields under the source name.
	NamespaceVendor
)

// Definition is a merged schema definition: the set of fields upstream
// components are known to produce, with coarse type names. Transforms treat
// it as an opaque capability for output declaration.
type Definition struct {
	Fields map[string]string
}

// NewDefinition creates an empty schema definition.
func NewDefinition() *Definition {
	return &Definition{Fields: make(map[string]string)}
}

// Merge folds another definition into a copy of this one. Conflicting field
// types widen to "any".
func (d *Definition) Merge(other *Definition) *Definition {
	out := NewDefinition()
	for k, v := range d.Fields {
		out.Fields[k] = v
	}
	if other == nil {
		return out
	}
	for k, v := range other.Fields {
		if existing, ok := out.Fields[k]; ok && existing != v {
			out.Fields[k] = "any"
			continue
		}
		out.Fields[k] = v
	}
	return out
}

// TransformContext exposes the build-time services a transform may consume:
// the merged upstream schema, the log-namespace setting, enrichment-table
// state for condition building, and a logger. Long-lived transforms (for
// example background-refreshed enrichment caches) bind their refresh loops to
// Context.
type TransformContext struct {
	Context context.Context

	Key          ComponentKey
	MergedSchema *Definition
	LogNamespace LogNamespace

	// EnrichmentTables is the opaque registry conditions are built against.
	EnrichmentTables map[string]interface{}

	Logger *zap.Logger
}

// NewTransformContext returns a context with safe defaults for tests and
// standalone builds.
func NewTransformContext() *TransformContext {
	return &TransformContext{
		Context:          context.Background(),
		MergedSchema:     NewDefinition(),
		EnrichmentTables: make(map[string]interface{}),
		Logger:           zap.NewNop(),
	}
}

// WithKey returns a shallow copy scoped to the given component key.
func (ctx *TransformContext) WithKey(key ComponentKey) *TransformContext {
	out := *ctx
	out.Key = key
	return &out
}
