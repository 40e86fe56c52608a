package event

import "time"

// TraceEvent is a single span of a distributed trace.
type TraceEvent struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Name         string
	StartTime    time.Time
	EndTime      time.Time
	Attributes   map[string]interface{}

	meta Metadata
}

// NewTrace creates a span event.
func NewTrace(traceID, spanID, name string) *TraceEvent {
	return &TraceEvent{
		TraceID:    traceID,
		SpanID:     spanID,
		Name:       name,
		Attributes: make(map[string]interface{}),
	}
}

func (t *TraceEvent) Kind() Kind      { return KindTrace }
func (t *TraceEvent) Meta() *Metadata { return &t.meta }

// Field exposes the span identity fields and "attributes.<key>".
func (t *TraceEvent) Field(path string) (interface{}, bool) {
	switch path {
	case "name":
		return t.Name, true
	case "trace_id":
		return t.TraceID, true
	case "span_id":
		return t.SpanID, true
	case "parent_span_id":
		return t.ParentSpanID, true
	}
	segments := splitPath(path)
	if len(segments) == 2 && segments[0] == "attributes" {
		v, ok := t.Attributes[segments[1]]
		return v, ok
	}
	return nil, false
}

// SetField supports writing "name" and "attributes.<key>".
func (t *TraceEvent) SetField(path string, value interface{}) bool {
	if path == "name" {
		if s, ok := value.(string); ok {
			t.Name = s
			return true
		}
		return false
	}
	segments := splitPath(path)
	if len(segments) == 2 && segments[0] == "attributes" {
		if t.Attributes == nil {
			t.Attributes = make(map[string]interface{})
		}
		t.Attributes[segments[1]] = value
		return true
	}
	return false
}

// Clone returns a deep copy of the span.
func (t *TraceEvent) Clone() Event {
	attrs := make(map[string]interface{}, len(t.Attributes))
	for k, v := range t.Attributes {
		attrs[k] = cloneValue(v)
	}
	return &TraceEvent{
		TraceID:      t.TraceID,
		SpanID:       t.SpanID,
		ParentSpanID: t.ParentSpanID,
		Name:         t.Name,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		Attributes:   attrs,
		meta:         t.meta.CloneMeta(),
	}
}
