// Package config provides the component-level configuration primitives shared
// by sources, transforms, and sinks: component keys, data-type constraints,
// input/output declarations, and the build context handed to transforms.
package config

import (
	"fmt"

	"github.com/eventflow/eventflow/pkg/event"
)

// ComponentKey identifies a component in the topology. Expanded compound
// components are namespaced with dots ("pipelines.0", "pipelines.0.1").
type ComponentKey struct {
	id string
}

// NewComponentKey creates a key from a raw identifier.
func NewComponentKey(id string) ComponentKey {
	return ComponentKey{id: id}
}

// ID returns the raw identifier.
func (k ComponentKey) ID() string { return k.id }

func (k ComponentKey) String() string { return k.id }

// Join derives a child key namespaced under this one by index.
func (k ComponentKey) Join(index int) ComponentKey {
	return ComponentKey{id: fmt.Sprintf("%s.%d", k.id, index)}
}

// JoinName derives a child key namespaced under this one by name.
func (k ComponentKey) JoinName(name string) ComponentKey {
	return ComponentKey{id: fmt.Sprintf("%s.%s", k.id, name)}
}

// DataType is a bit set of event kinds a component accepts or emits.
type DataType uint8

const (
	DataTypeLog    DataType = 1 << iota
	DataTypeMetric
	DataTypeTrace

	DataTypeAll = DataTypeLog | DataTypeMetric | DataTypeTrace
)

// Contains reports whether the set admits events of the given kind.
func (d DataType) Contains(kind event.Kind) bool {
	switch kind {
	case event.KindLog:
		return d&DataTypeLog != 0
	case event.KindMetric:
		return d&DataTypeMetric != 0
	case event.KindTrace:
		return d&DataTypeTrace != 0
	}
	return false
}

func (d DataType) String() string {
	switch d {
	case DataTypeAll:
		return "all"
	case DataTypeLog:
		return "log"
	case DataTypeMetric:
		return "metric"
	case DataTypeTrace:
		return "trace"
	}
	return fmt.Sprintf("datatype(%d)", uint8(d))
}

// Input declares what a component consumes.
type Input struct {
	DataType DataType
}

// InputAll accepts every event kind.
func InputAll() Input { return Input{DataType: DataTypeAll} }

// InputLog accepts logs only.
func InputLog() Input { return Input{DataType: DataTypeLog} }

// InputMetric accepts metrics only.
func InputMetric() Input { return Input{DataType: DataTypeMetric} }

// Output declares one output stream of a component. Port is empty for the
// default output; transforms with additional named outputs set it.
type Output struct {
	Port     string
	DataType DataType
}

// DefaultOutput is the unnamed output carrying the given data types.
func DefaultOutput(d DataType) Output {
	return Output{DataType: d}
}
