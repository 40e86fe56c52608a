package event

import "time"

// MetricKind distinguishes how a metric value accumulates.
type MetricKind uint8

const (
	MetricCounter MetricKind = iota
	MetricGauge
)

func (k MetricKind) String() string {
	names := []string{"counter", "gauge"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Metric is a single named measurement with tags.
type Metric struct {
	Name       string
	MetricKind MetricKind
	Value      float64
	Tags       map[string]string
	Timestamp  time.Time

	meta Metadata
}

// NewMetric creates a metric event.
func NewMetric(name string, kind MetricKind, value float64) *Metric {
	return &Metric{
		Name:       name,
		MetricKind: kind,
		Value:      value,
		Tags:       make(map[string]string),
		Timestamp:  time.Now(),
	}
}

func (m *Metric) Kind() Kind      { return KindMetric }
func (m *Metric) Meta() *Metadata { return &m.meta }

// Field exposes "name", "kind", "value", "timestamp" and "tags.<key>".
func (m *Metric) Field(path string) (interface{}, bool) {
	switch path {
	case "name":
		return m.Name, true
	case "kind":
		return m.MetricKind.String(), true
	case "value":
		return m.Value, true
	case "timestamp":
		return m.Timestamp, true
	}
	segments := splitPath(path)
	if len(segments) == 2 && segments[0] == "tags" {
		v, ok := m.Tags[segments[1]]
		return v, ok
	}
	return nil, false
}

// SetField supports writing "name" and "tags.<key>".
func (m *Metric) SetField(path string, value interface{}) bool {
	if path == "name" {
		if s, ok := value.(string); ok {
			m.Name = s
			return true
		}
		return false
	}
	segments := splitPath(path)
	if len(segments) == 2 && segments[0] == "tags" {
		if s, ok := value.(string); ok {
			if m.Tags == nil {
				m.Tags = make(map[string]string)
			}
			m.Tags[segments[1]] = s
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the metric.
func (m *Metric) Clone() Event {
	tags := make(map[string]string, len(m.Tags))
	for k, v := range m.Tags {
		tags[k] = v
	}
	return &Metric{
		Name:       m.Name,
		MetricKind: m.MetricKind,
		Value:      m.Value,
		Tags:       tags,
		Timestamp:  m.Timestamp,
		meta:       m.meta.CloneMeta(),
	}
}
