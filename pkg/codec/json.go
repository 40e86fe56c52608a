package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterDecoder("json", func() Decoder { return jsonCodec{} })
	RegisterEncoder("json", func() Encoder { return jsonCodec{} })
}

// jsonCodec maps log events to JSON objects. Metrics and traces are encoded
// as objects with their structural fields; decoding always produces a log,
// since the wire frame carries no variant tag.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Decode(data []byte) (event.Event, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}
	return event.LogFromMap(fields), nil
}

func (jsonCodec) Encode(e event.Event) ([]byte, error) {
	switch ev := e.(type) {
	case *event.LogEvent:
		return json.Marshal(ev.Fields())
	case *event.Metric:
		return json.Marshal(map[string]interface{}{
			"name":      ev.Name,
			"kind":      ev.MetricKind.String(),
			"value":     ev.Value,
			"tags":      ev.Tags,
			"timestamp": ev.Timestamp.Format(time.RFC3339Nano),
		})
	case *event.TraceEvent:
		return json.Marshal(map[string]interface{}{
			"trace_id":       ev.TraceID,
			"span_id":        ev.SpanID,
			"parent_span_id": ev.ParentSpanID,
			"name":           ev.Name,
			"start_time":     ev.StartTime.Format(time.RFC3339Nano),
			"end_time":       ev.EndTime.Format(time.RFC3339Nano),
			"attributes":     ev.Attributes,
		})
	default:
		return nil, fmt.Errorf("unsupported event type %T", e)
	}
}
