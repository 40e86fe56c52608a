// Package pipelines implements the compound pipeline transform: a named,
// ordered sub-chain of transforms run against a shared double-buffer, gated
// by an optional routing condition.
package pipelines

import (
	"github.com/eventflow/eventflow/pkg/condition"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/transform"
)

// stage is one built sub-transform. Exactly one variant is set: function
// transforms are applied per drained event, synchronous transforms get the
// whole drained set at once.
type stage struct {
	fn   transform.FunctionTransform
	sync transform.SyncTransform
}

// Pipeline executes an ordered chain of sub-transforms against each incoming
// batch, restricted to events matching the optional condition. Unmatched
// events pass through untouched. The two interior buffers are exclusively
// owned by this instance and are empty between calls.
type Pipeline struct {
	name      string
	condition condition.Condition
	stages    []stage

	bufIn  *transform.OutputsBuf
	bufOut *transform.OutputsBuf
}

// Transform is unsupported on a pipeline: its cost model assumes batch-level
// composition, so single-event application indicates a caller bug.
func (p *Pipeline) Transform(_ event.Event, _ *transform.OutputsBuf) {
	panic("pipeline does not support single-event transform; use TransformAll")
}

// TransformAll runs the whole batch through the pipeline.
//
// Incoming events are gated by the pipeline condition: matches are queued in
// bufOut for the sub-transform chain, non-matches go straight to output and
// are never touched by pipeline transforms. Note the resulting ordering
// contract: all unmatched events reach output before anything the chain
// produces, regardless of the original interleaving. Within each group input
// order is preserved.
//
// The chain then runs each stage in declared order, swapping bufIn and
// bufOut so one stage's output becomes the next stage's input after it has
// been emptied. After the last stage, bufOut is drained into output, leaving
// both interior buffers empty for the next call.
func (p *Pipeline) TransformAll(events event.Batch, output *transform.OutputsBuf) {
	if p.condition != nil {
		for _, e := range events.Drain() {
			matched, e := p.condition.Check(e)
			if matched {
				p.bufOut.Push(e)
			} else {
				output.Push(e)
			}
		}
	} else {
		p.bufOut.Extend(events.Drain())
	}

	for _, st := range p.stages {
		p.bufIn, p.bufOut = p.bufOut, p.bufIn
		if st.fn != nil {
			for _, e := range p.bufIn.Drain() {
				st.fn.Transform(e, p.bufOut)
			}
		} else {
			st.sync.TransformAll(event.NewBatch(p.bufIn.Drain()...), p.bufOut)
		}
	}

	output.Extend(p.bufOut.Drain())
}
