package event

// LogEvent is a structured log record: a tree of key/value fields.
type LogEvent struct {
	fields map[string]interface{}
	meta   Metadata
}

// NewLog creates an empty log event.
func NewLog() *LogEvent {
	return &LogEvent{fields: make(map[string]interface{})}
}

// LogFromMap creates a log event over the given field map. The map is owned
// by the event afterwards.
func LogFromMap(fields map[string]interface{}) *LogEvent {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &LogEvent{fields: fields}
}

func (l *LogEvent) Kind() Kind      { return KindLog }
func (l *LogEvent) Meta() *Metadata { return &l.meta }

// Fields returns the underlying field map.
func (l *LogEvent) Fields() map[string]interface{} { return l.fields }

// Field looks up a value by dotted path, descending into nested maps.
func (l *LogEvent) Field(path string) (interface{}, bool) {
	segments := splitPath(path)
	current := l.fields
	for i, seg := range segments {
		value, ok := current[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		next, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// SetField writes a value at a dotted path, creating intermediate maps.
// Writing through a non-map value replaces it with a map.
func (l *LogEvent) SetField(path string, value interface{}) bool {
	segments := splitPath(path)
	current := l.fields
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
	return true
}

// Delete removes the field at a dotted path, reporting whether it existed.
func (l *LogEvent) Delete(path string) bool {
	segments := splitPath(path)
	current := l.fields
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]interface{})
		if !ok {
			return false
		}
		current = next
	}
	last := segments[len(segments)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}

// Clone returns a deep copy of the log event.
func (l *LogEvent) Clone() Event {
	return &LogEvent{fields: cloneValue(l.fields).(map[string]interface{}), meta: l.meta.CloneMeta()}
}

// cloneValue deep-copies the JSON-like value trees used in log fields and
// trace attributes. Scalars are returned as-is.
func cloneValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, inner := range value {
			out[k] = cloneValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, inner := range value {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
