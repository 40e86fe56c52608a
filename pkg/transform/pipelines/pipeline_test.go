package pipelines

import (
	"fmt"
	"strings"
	"testing"

	"github.com/eventflow/eventflow/pkg/condition"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/transform"
)

// stubConfig is a minimal transform config for exercising pipeline builds
// without pulling in real transform behavior.
type stubConfig struct {
	name        string
	build       func() transform.Transform
	outputs     []config.Output
	notNestable bool
}

func (c *stubConfig) ComponentName() string { return c.name }

func (c *stubConfig) Build(_ *config.TransformContext) (transform.Transform, error) {
	return c.build(), nil
}

func (c *stubConfig) Input() config.Input { return config.InputAll() }

func (c *stubConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	if c.outputs != nil {
		return c.outputs
	}
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *stubConfig) Nestable(_ map[string]bool) bool { return !c.notNestable }

// tagStage marks each event it sees.
type tagStage struct {
	key, value string
}

func (s tagStage) Transform(e event.Event, output *transform.OutputsBuf) {
	e.SetField(s.key, s.value)
	output.Push(e)
}

// replicateStage emits the original plus copies-1 clones.
type replicateStage struct {
	copies int
}

func (s replicateStage) Transform(e event.Event, output *transform.OutputsBuf) {
	output.Push(e)
	for i := 1; i < s.copies; i++ {
		clone := e.Clone()
		clone.SetField("copy", i)
		output.Push(clone)
	}
}

// reverseStage is a whole-batch transform that reverses event order, which
// makes it observable whether a stage saw the batch all at once.
type reverseStage struct{}

func (reverseStage) Transform(e event.Event, output *transform.OutputsBuf) {
	output.Push(e)
}

func (reverseStage) TransformAll(events event.Batch, output *transform.OutputsBuf) {
	drained := events.Drain()
	for i := len(drained) - 1; i >= 0; i-- {
		output.Push(drained[i])
	}
}

func fnStub(name string, fn transform.FunctionTransform) transform.ConfigWrapper {
	return transform.ConfigWrapper{Config: &stubConfig{
		name:  name,
		build: func() transform.Transform { return transform.NewFunction(fn) },
	}}
}

func syncStub(name string, s transform.SyncTransform) transform.ConfigWrapper {
	return transform.ConfigWrapper{Config: &stubConfig{
		name:  name,
		build: func() transform.Transform { return transform.NewSynchronous(s) },
	}}
}

func buildPipeline(t *testing.T, cfg *PipelineConfig) *Pipeline {
	t.Helper()
	built, err := cfg.Build(config.NewTransformContext())
	if err != nil {
		t.Fatalf("build pipeline %q: %v", cfg.Name, err)
	}
	sync, ok := built.IntoSync()
	if !ok {
		t.Fatalf("pipeline %q did not build to a synchronous transform", cfg.Name)
	}
	p, ok := sync.(*Pipeline)
	if !ok {
		t.Fatalf("pipeline %q built %T, want *Pipeline", cfg.Name, sync)
	}
	return p
}

func logWithMessage(msg string, extra map[string]interface{}) *event.LogEvent {
	fields := map[string]interface{}{"message": msg}
	for k, v := range extra {
		fields[k] = v
	}
	return event.LogFromMap(fields)
}

func messages(t *testing.T, events []event.Event) []string {
	t.Helper()
	out := make([]string, 0, len(events))
	for _, e := range events {
		v, ok := e.Field("message")
		if !ok {
			t.Fatalf("event %v has no message field", e)
		}
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func TestPipelinePreservesOrderThroughChain(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name: "ordered",
		Transforms: []transform.ConfigWrapper{
			fnStub("tag_a", tagStage{key: "a", value: "1"}),
			fnStub("tag_b", tagStage{key: "b", value: "2"}),
		},
	})

	in := event.NewBatch(
		logWithMessage("m1", nil),
		logWithMessage("m2", nil),
		logWithMessage("m3", nil),
		logWithMessage("m4", nil),
	)
	output := transform.NewDefaultBuf(0)
	p.TransformAll(in, output)

	got := messages(t, output.Drain())
	want := []string{"m1", "m2", "m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPipelineUnmatchedEventsBypassBeforeMatched(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name:   "gated",
		Filter: &condition.AnyCondition{Type: "field_equals", Field: "route", Value: "yes"},
		Transforms: []transform.ConfigWrapper{
			fnStub("replicate", replicateStage{copies: 2}),
		},
	})

	in := event.NewBatch(
		logWithMessage("e1", map[string]interface{}{"route": "yes"}),
		logWithMessage("e2", map[string]interface{}{"route": "no"}),
		logWithMessage("e3", map[string]interface{}{"route": "yes"}),
	)
	output := transform.NewDefaultBuf(0)
	p.TransformAll(in, output)

	// Unmatched events reach the output ahead of everything produced by the
	// chain, regardless of the original interleaving.
	got := messages(t, output.Drain())
	want := []string{"e2", "e1", "e1", "e3", "e3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPipelineUnmatchedEventsAreUntouched(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name:   "gated",
		Filter: &condition.AnyCondition{Type: "field_equals", Field: "route", Value: "yes"},
		Transforms: []transform.ConfigWrapper{
			fnStub("tag", tagStage{key: "touched", value: "yes"}),
		},
	})

	in := event.NewBatch(logWithMessage("skipped", map[string]interface{}{"route": "no"}))
	output := transform.NewDefaultBuf(0)
	p.TransformAll(in, output)

	events := output.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if _, ok := events[0].Field("touched"); ok {
		t.Error("bypassed event was modified by a pipeline transform")
	}
}

func TestPipelineSyncStageSeesWholeBatch(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name: "batchwise",
		Transforms: []transform.ConfigWrapper{
			syncStub("reverse", reverseStage{}),
		},
	})

	in := event.NewBatch(
		logWithMessage("first", nil),
		logWithMessage("second", nil),
		logWithMessage("third", nil),
	)
	output := transform.NewDefaultBuf(0)
	p.TransformAll(in, output)

	got := messages(t, output.Drain())
	want := []string{"third", "second", "first"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPipelineFanOutKeepsCardinalityAndOrder(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name: "fanout",
		Transforms: []transform.ConfigWrapper{
			fnStub("triplicate", replicateStage{copies: 3}),
		},
	})

	in := event.NewBatch(logWithMessage("x", nil), logWithMessage("y", nil))
	output := transform.NewDefaultBuf(0)
	p.TransformAll(in, output)

	got := messages(t, output.Drain())
	want := []string{"x", "x", "x", "y", "y", "y"}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPipelineInteriorBuffersEmptyBetweenCalls(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name: "reused",
		Transforms: []transform.ConfigWrapper{
			fnStub("replicate", replicateStage{copies: 2}),
			syncStub("reverse", reverseStage{}),
		},
	})

	for call := 0; call < 3; call++ {
		in := event.NewBatch(
			logWithMessage(fmt.Sprintf("a%d", call), nil),
			logWithMessage(fmt.Sprintf("b%d", call), nil),
		)
		output := transform.NewDefaultBuf(0)
		p.TransformAll(in, output)

		if got := output.Len(); got != 4 {
			t.Fatalf("call %d: got %d events, want 4", call, got)
		}
		if p.bufIn.Len() != 0 || p.bufOut.Len() != 0 {
			t.Fatalf("call %d: interior buffers not empty: in=%d out=%d",
				call, p.bufIn.Len(), p.bufOut.Len())
		}
	}
}

func TestPipelineSingleEventTransformPanics(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name: "batch-only",
		Transforms: []transform.ConfigWrapper{
			fnStub("tag", tagStage{key: "a", value: "1"}),
		},
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from single-event Transform")
		}
	}()
	p.Transform(logWithMessage("x", nil), transform.NewDefaultBuf(0))
}

func TestPipelineFilterRoutesAndTags(t *testing.T) {
	p := buildPipeline(t, &PipelineConfig{
		Name:   "p1",
		Filter: &condition.AnyCondition{Type: "field_equals", Field: "type", Value: "error"},
		Transforms: []transform.ConfigWrapper{
			{Config: &transform.AddFieldsConfig{Fields: map[string]interface{}{"seen": "p1"}}},
		},
	})

	in := event.NewBatch(
		logWithMessage("error-a", map[string]interface{}{"type": "error"}),
		logWithMessage("info-b", map[string]interface{}{"type": "info"}),
	)
	output := transform.NewDefaultBuf(0)
	p.TransformAll(in, output)

	events := output.Drain()
	got := make([]string, len(events))
	for i, e := range events {
		msg, _ := e.Field("message")
		if seen, ok := e.Field("seen"); ok {
			got[i] = fmt.Sprintf("%v+seen=%v", msg, seen)
		} else {
			got[i] = fmt.Sprintf("%v", msg)
		}
	}
	want := []string{"info-b", "error-a+seen=p1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEmptyPipelineBuildFails(t *testing.T) {
	cfg := &PipelineConfig{Name: "hollow"}
	_, err := cfg.Build(config.NewTransformContext())
	if err == nil {
		t.Fatal("expected build error for empty pipeline")
	}
	if errors.CodeOf(err) != errors.CodeEmptyPipeline {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeEmptyPipeline)
	}
	if !strings.Contains(err.Error(), "empty pipeline: hollow") {
		t.Errorf("error %q does not name the pipeline", err)
	}
}

func TestPipelineRejectsNamedOutputs(t *testing.T) {
	cfg := &PipelineConfig{
		Name: "forked",
		Transforms: []transform.ConfigWrapper{
			{Config: &stubConfig{
				name:  "splitter",
				build: func() transform.Transform { return transform.NewFunction(tagStage{key: "a", value: "1"}) },
				outputs: []config.Output{
					config.DefaultOutput(config.DataTypeAll),
					{Port: "dropped", DataType: config.DataTypeLog},
				},
			}},
		},
	}
	_, err := cfg.Build(config.NewTransformContext())
	if err == nil {
		t.Fatal("expected build error for named output")
	}
	if errors.CodeOf(err) != errors.CodeNamedOutput {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeNamedOutput)
	}
	want := "pipeline forked has transform of type splitter with a named output, unsupported"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error %q, want it to contain %q", err, want)
	}
}

func TestPipelineRejectsUnbuildableVariant(t *testing.T) {
	cfg := &PipelineConfig{
		Name: "mixed",
		Transforms: []transform.ConfigWrapper{
			{Config: &stubConfig{
				name:  "task_like",
				build: func() transform.Transform { return transform.Transform{} },
			}},
		},
	}
	_, err := cfg.Build(config.NewTransformContext())
	if err == nil {
		t.Fatal("expected build error for non-sync transform")
	}
	if errors.CodeOf(err) != errors.CodeNonSyncTransform {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeNonSyncTransform)
	}
	if !strings.Contains(err.Error(), "non-sync transform in pipeline: task_like") {
		t.Errorf("error %q does not name the offending transform", err)
	}
}

func TestPipelineSetExpansionThreadsInputs(t *testing.T) {
	set := PipelineSetConfig{
		{Name: "first", Transforms: []transform.ConfigWrapper{fnStub("tag_a", tagStage{key: "a", value: "1"})}},
		{Name: "second", Transforms: []transform.ConfigWrapper{fnStub("tag_b", tagStage{key: "b", value: "2"})}},
	}

	topology, err := set.Expand(config.NewComponentKey("pipes"), []string{"in"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	first, ok := topology.Inner["pipes.0"]
	if !ok {
		t.Fatalf("missing component pipes.0, have %v", topology.Inner)
	}
	if len(first.Inputs) != 1 || first.Inputs[0] != "in" {
		t.Errorf("pipes.0 inputs = %v, want [in]", first.Inputs)
	}

	second, ok := topology.Inner["pipes.1"]
	if !ok {
		t.Fatalf("missing component pipes.1, have %v", topology.Inner)
	}
	if len(second.Inputs) != 1 || second.Inputs[0] != "pipes.0" {
		t.Errorf("pipes.1 inputs = %v, want [pipes.0]", second.Inputs)
	}

	outs := topology.OutputIDs()
	if len(outs) != 1 || outs[0] != "pipes.1" {
		t.Errorf("expansion outputs = %v, want [pipes.1]", outs)
	}
}

func TestPipelinesExpandRejectsNestedPipeline(t *testing.T) {
	compound := &PipelinesConfig{
		Pipelines: PipelineSetConfig{
			{
				Name: "outer",
				Transforms: []transform.ConfigWrapper{
					{Config: &PipelineConfig{
						Name:       "inner",
						Transforms: []transform.ConfigWrapper{fnStub("tag", tagStage{key: "a", value: "1"})},
					}},
				},
			},
		},
	}

	_, err := compound.Expand(config.NewComponentKey("nested"), []string{"in"})
	if err == nil {
		t.Fatal("expected nesting validation error")
	}
	if errors.CodeOf(err) != errors.CodeInvalidNesting {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeInvalidNesting)
	}
	want := `the transform 0 in pipeline "outer" (at index 0) cannot be nested in [pipelines]`
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error %q, want it to contain %q", err, want)
	}
}

func TestPipelinesConfigCannotBuildDirectly(t *testing.T) {
	compound := &PipelinesConfig{}
	_, err := compound.Build(config.NewTransformContext())
	if err == nil {
		t.Fatal("expected error building unexpanded pipelines config")
	}
	if errors.CodeOf(err) != errors.CodeInvalidConfig {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.CodeInvalidConfig)
	}
}
