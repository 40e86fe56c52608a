// Package condition provides boolean predicates over single events, used to
// route events into or around pipelines. Conditions are pure: they never
// mutate or retain the event, and return it to the caller alongside the
// verdict so routing needs no clone.
package condition

import (
	"fmt"

	"github.com/eventflow/eventflow/pkg/event"
)

// Condition is a routing predicate. Check must be callable concurrently from
// multiple pipeline instances; implementations are stateless.
type Condition interface {
	Check(e event.Event) (bool, event.Event)
}

// AnyCondition is the yaml-configurable form of a condition. The Type field
// selects the implementation; the remaining fields parameterize it.
type AnyCondition struct {
	Type string `yaml:"type"`

	// Field/Value for the field_* checks.
	Field string      `yaml:"field,omitempty"`
	Value interface{} `yaml:"value,omitempty"`

	// Kind for the kind_is check: "log", "metric", or "trace".
	Kind string `yaml:"kind,omitempty"`

	// Combinators.
	Condition  *AnyCondition  `yaml:"condition,omitempty"`  // not
	Conditions []AnyCondition `yaml:"conditions,omitempty"` // all_of, any_of
}

// Build resolves the configuration into a Condition. The enrichment-table
// registry is passed through so expression-style conditions can bind table
// lookups at build time.
func (c *AnyCondition) Build(enrichmentTables map[string]interface{}) (Condition, error) {
	switch c.Type {
	case "field_equals":
		if c.Field == "" {
			return nil, fmt.Errorf("field_equals condition requires a field")
		}
		return &FieldEquals{Field: c.Field, Value: c.Value}, nil

	case "field_contains":
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("field_contains condition requires a string value")
		}
		return &FieldContains{Field: c.Field, Substring: s}, nil

	case "field_exists":
		if c.Field == "" {
			return nil, fmt.Errorf("field_exists condition requires a field")
		}
		return &FieldExists{Field: c.Field}, nil

	case "kind_is":
		kind, err := parseKind(c.Kind)
		if err != nil {
			return nil, err
		}
		return &KindIs{EventKind: kind}, nil

	case "not":
		if c.Condition == nil {
			return nil, fmt.Errorf("not condition requires a nested condition")
		}
		inner, err := c.Condition.Build(enrichmentTables)
		if err != nil {
			return nil, err
		}
		return &Not{Condition: inner}, nil

	case "all_of", "any_of":
		if len(c.Conditions) == 0 {
			return nil, fmt.Errorf("%s condition requires nested conditions", c.Type)
		}
		inner := make([]Condition, len(c.Conditions))
		for i := range c.Conditions {
			built, err := c.Conditions[i].Build(enrichmentTables)
			if err != nil {
				return nil, err
			}
			inner[i] = built
		}
		if c.Type == "all_of" {
			return &AllOf{Conditions: inner}, nil
		}
		return &AnyOf{Conditions: inner}, nil

	default:
		return nil, fmt.Errorf("unknown condition type: %q", c.Type)
	}
}

func parseKind(s string) (event.Kind, error) {
	switch s {
	case "log":
		return event.KindLog, nil
	case "metric":
		return event.KindMetric, nil
	case "trace":
		return event.KindTrace, nil
	default:
		return 0, fmt.Errorf("unknown event kind: %q", s)
	}
}
