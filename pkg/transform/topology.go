package transform

import (
	"github.com/eventflow/eventflow/pkg/config"
)

// InnerTopologyTransform is one physical transform produced by expanding a
// compound transform, with the upstream component identifiers feeding it.
type InnerTopologyTransform struct {
	Inputs []string
	Inner  Config
}

// InnerTopology is the result of expanding a compound transform into its
// physical components: the component map plus the outputs the next component
// in the chain should consume from.
type InnerTopology struct {
	Inner   map[string]InnerTopologyTransform
	Outputs []InnerTopologyOutput
}

// InnerTopologyOutput names one output stream of an expanded component.
type InnerTopologyOutput struct {
	Key     config.ComponentKey
	Outputs []config.Output
}

// NewInnerTopology creates an empty expansion result.
func NewInnerTopology() *InnerTopology {
	return &InnerTopology{Inner: make(map[string]InnerTopologyTransform)}
}

// OutputIDs returns the fully qualified identifiers of every output stream,
// in declaration order. Named ports are suffixed with ".<port>".
func (t *InnerTopology) OutputIDs() []string {
	var ids []string
	for _, out := range t.Outputs {
		for _, output := range out.Outputs {
			if output.Port == "" {
				ids = append(ids, out.Key.ID())
			} else {
				ids = append(ids, out.Key.ID()+"."+output.Port)
			}
		}
	}
	return ids
}

// Merge folds another expansion's component map into this one.
func (t *InnerTopology) Merge(other *InnerTopology) {
	for key, value := range other.Inner {
		t.Inner[key] = value
	}
}
