// Package transform defines the polymorphic unit of work applied to events
// in flight: single-event function transforms and whole-batch synchronous
// transforms, plus the buffers that chain them together.
package transform

import (
	"github.com/eventflow/eventflow/pkg/event"
)

// FunctionTransform processes one event at a time, emitting zero or more
// events into the output buffer. Implementations must not block and must not
// panic on malformed input; bad events are dropped and signalled through the
// observability side channel.
type FunctionTransform interface {
	Transform(e event.Event, output *OutputsBuf)
}

// SyncTransform processes events with whole-batch granularity, for transforms
// that need batch context (deduplication, aggregation windows). It also
// supports single-event application so function transforms can be chained
// with it uniformly.
type SyncTransform interface {
	Transform(e event.Event, output *OutputsBuf)

	// TransformAll consumes the batch and writes exactly the set of output
	// events into output. It may produce fewer or more events than it
	// consumed, but must preserve the arrival order of unaffected events.
	TransformAll(events event.Batch, output *OutputsBuf)
}

// Transform is the closed result of building a transform config: exactly one
// of the two variants is set. The zero value is neither, which build sites
// treat as an unsupported transform type.
type Transform struct {
	function    FunctionTransform
	synchronous SyncTransform
}

// NewFunction wraps a function transform.
func NewFunction(f FunctionTransform) Transform {
	return Transform{function: f}
}

// NewSynchronous wraps a synchronous batch transform.
func NewSynchronous(s SyncTransform) Transform {
	return Transform{synchronous: s}
}

// IsFunction reports whether the function variant is set.
func (t Transform) IsFunction() bool { return t.function != nil }

// IsSynchronous reports whether the synchronous variant is set.
func (t Transform) IsSynchronous() bool { return t.synchronous != nil }

// Function returns the function variant, or nil.
func (t Transform) Function() FunctionTransform { return t.function }

// Synchronous returns the synchronous variant, or nil.
func (t Transform) Synchronous() SyncTransform { return t.synchronous }

// IntoSync converts either variant into a SyncTransform. Function transforms
// are adapted to batch granularity by applying them per drained event. The
// second return is false when neither variant is set.
func (t Transform) IntoSync() (SyncTransform, bool) {
	if t.synchronous != nil {
		return t.synchronous, true
	}
	if t.function != nil {
		return funcAsSync{fn: t.function}, true
	}
	return nil, false
}

// funcAsSync adapts a FunctionTransform to the SyncTransform contract.
type funcAsSync struct {
	fn FunctionTransform
}

func (a funcAsSync) Transform(e event.Event, output *OutputsBuf) {
	a.fn.Transform(e, output)
}

func (a funcAsSync) TransformAll(events event.Batch, output *OutputsBuf) {
	for _, e := range events.Drain() {
		a.fn.Transform(e, output)
	}
}
