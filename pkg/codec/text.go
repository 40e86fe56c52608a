package codec

import (
	"fmt"

	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterDecoder("text", func() Decoder { return textCodec{} })
	RegisterEncoder("text", func() Encoder { return textCodec{} })
}

// textCodec treats each frame as an opaque message string.
type textCodec struct{}

func (textCodec) Name() string { return "text" }

func (textCodec) Decode(data []byte) (event.Event, error) {
	return event.LogFromMap(map[string]interface{}{"message": string(data)}), nil
}

func (textCodec) Encode(e event.Event) ([]byte, error) {
	if v, ok := e.Field("message"); ok {
		return []byte(fmt.Sprintf("%v", v)), nil
	}
	// Events without a message render as their kind, which at least keeps
	// line counts honest for sinks that tally output.
	return []byte(e.Kind().String()), nil
}
