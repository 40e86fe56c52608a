package condition

import (
	"strings"

	"github.com/eventflow/eventflow/pkg/event"
)

// FieldEquals matches events whose field at a dotted path equals a value.
// Numeric values compare across int/float representations.
type FieldEquals struct {
	Field string
	Value interface{}
}

func (c *FieldEquals) Check(e event.Event) (bool, event.Event) {
	got, ok := e.Field(c.Field)
	if !ok {
		return false, e
	}
	return looseEqual(got, c.Value), e
}

// FieldContains matches events whose string field contains a substring.
type FieldContains struct {
	Field     string
	Substring string
}

func (c *FieldContains) Check(e event.Event) (bool, event.Event) {
	got, ok := e.Field(c.Field)
	if !ok {
		return false, e
	}
	s, ok := got.(string)
	if !ok {
		return false, e
	}
	return strings.Contains(s, c.Substring), e
}

// FieldExists matches events that have any value at the given path.
type FieldExists struct {
	Field string
}

func (c *FieldExists) Check(e event.Event) (bool, event.Event) {
	_, ok := e.Field(c.Field)
	return ok, e
}

// KindIs matches events of one payload variant.
type KindIs struct {
	EventKind event.Kind
}

func (c *KindIs) Check(e event.Event) (bool, event.Event) {
	return e.Kind() == c.EventKind, e
}

// Not inverts a condition.
type Not struct {
	Condition Condition
}

func (c *Not) Check(e event.Event) (bool, event.Event) {
	matched, e := c.Condition.Check(e)
	return !matched, e
}

// AllOf matches when every nested condition matches.
type AllOf struct {
	Conditions []Condition
}

func (c *AllOf) Check(e event.Event) (bool, event.Event) {
	for _, inner := range c.Conditions {
		var matched bool
		matched, e = inner.Check(e)
		if !matched {
			return false, e
		}
	}
	return true, e
}

// AnyOf matches when at least one nested condition matches.
type AnyOf struct {
	Conditions []Condition
}

func (c *AnyOf) Check(e event.Event) (bool, event.Event) {
	for _, inner := range c.Conditions {
		var matched bool
		matched, e = inner.Check(e)
		if matched {
			return true, e
		}
	}
	return false, e
}

// looseEqual compares values across the numeric representations yaml and
// json decoding produce.
func looseEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
