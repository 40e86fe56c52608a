package topology

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/condition"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/sinks"
	"github.com/eventflow/eventflow/pkg/sources"
	"github.com/eventflow/eventflow/pkg/transform"
	"github.com/eventflow/eventflow/pkg/transform/pipelines"
)

const sampleTopology = `
sources:
  in:
    type: demo
    variant: logs
    count: 8
    batch_size: 4
transforms:
  procs:
    type: pipelines
    inputs: [in]
    pipelines:
      - name: tag-errors
        filter:
          type: field_equals
          field: level
          value: error
        transforms:
          - type: add_fields
            fields:
              seen: tag-errors
      - name: stamp
        transforms:
          - type: add_fields
            fields:
              team: core
sinks:
  out:
    type: blackhole
    inputs: [procs]
`

func TestParseExpandsPipelines(t *testing.T) {
	cfg, err := Parse([]byte(sampleTopology))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, still := cfg.Transforms["procs"]; still {
		t.Fatal("compound transform was not removed by expansion")
	}

	first, ok := cfg.Transforms["procs.0"]
	if !ok {
		t.Fatalf("missing expanded component procs.0, have %v", sortedNames(cfg.Transforms))
	}
	if len(first.Inputs) != 1 || first.Inputs[0] != "in" {
		t.Errorf("procs.0 inputs = %v, want [in]", first.Inputs)
	}

	second, ok := cfg.Transforms["procs.1"]
	if !ok {
		t.Fatal("missing expanded component procs.1")
	}
	if len(second.Inputs) != 1 || second.Inputs[0] != "procs.0" {
		t.Errorf("procs.1 inputs = %v, want [procs.0]", second.Inputs)
	}

	sink := cfg.Sinks["out"]
	if len(sink.Inputs) != 1 || sink.Inputs[0] != "procs.1" {
		t.Errorf("sink inputs = %v, want [procs.1]", sink.Inputs)
	}
}

func TestParseRejectsUnknownInput(t *testing.T) {
	_, err := Parse([]byte(`
sources:
  in: {type: demo, count: 1}
sinks:
  out:
    type: blackhole
    inputs: [nowhere]
`))
	if err == nil {
		t.Fatal("expected an error for an unknown input")
	}
	if errors.CodeOf(err) != errors.CodeUnknownComponent {
		t.Errorf("code = %s, want %s", errors.CodeOf(err), errors.CodeUnknownComponent)
	}
}

func TestParseRejectsSinkAsInput(t *testing.T) {
	_, err := Parse([]byte(`
sources:
  in: {type: demo, count: 1}
transforms:
  hop:
    type: add_fields
    inputs: [out]
    fields: {a: b}
sinks:
  out:
    type: blackhole
    inputs: [in]
`))
	if err == nil || !strings.Contains(err.Error(), "cannot consume from sink") {
		t.Fatalf("err = %v, want sink-as-input rejection", err)
	}
}

func TestParseRequiresSourcesAndSinks(t *testing.T) {
	if _, err := Parse([]byte(`sinks: {out: {type: blackhole, inputs: [x]}}`)); err == nil {
		t.Error("expected an error for a topology without sources")
	}
	if _, err := Parse([]byte(`sources: {in: {type: demo}}`)); err == nil {
		t.Error("expected an error for a topology without sinks")
	}
}

func runTopology(t *testing.T, topo *Topology) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return topo.Run(ctx)
}

func buildSync(t *testing.T, cfg transform.Config) transform.SyncTransform {
	t.Helper()
	built, err := cfg.Build(config.NewTransformContext())
	if err != nil {
		t.Fatalf("building %s: %v", cfg.ComponentName(), err)
	}
	sync, ok := built.IntoSync()
	if !ok {
		t.Fatalf("%s did not build a runnable transform", cfg.ComponentName())
	}
	return sync
}

func TestBuildAndRunFromYaml(t *testing.T) {
	cfg, err := Parse([]byte(sampleTopology))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topo, err := Build(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer topo.Close()

	if err := topo.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunRoutesThroughPipeline(t *testing.T) {
	batch := event.NewBatch(
		event.LogFromMap(map[string]interface{}{"message": "boom", "level": "error"}),
		event.LogFromMap(map[string]interface{}{"message": "fine", "level": "info"}),
	)

	pipeline := buildSync(t, &pipelines.PipelineConfig{
		Name:   "errors",
		Filter: &condition.AnyCondition{Type: "field_equals", Field: "level", Value: "error"},
		Transforms: []transform.ConfigWrapper{
			{Config: &transform.AddFieldsConfig{Fields: map[string]interface{}{"seen": "errors"}}},
		},
	})

	sink := sinks.NewMemorySink()
	topo := New(zap.NewNop()).
		AddSource("src", sources.NewMemorySource(batch)).
		AddTransform("p", pipeline, nil, []string{"src"}).
		AddSink("cap", sink, []string{"p"})

	if err := runTopology(t, topo); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := sink.Events()
	if len(got) != 2 {
		t.Fatalf("sink received %d events, want 2", len(got))
	}

	// Unmatched events come out ahead of the pipeline's own output.
	if msg, _ := got[0].Field("message"); msg != "fine" {
		t.Errorf("first event message = %v, want fine", msg)
	}
	if _, tagged := got[0].Field("seen"); tagged {
		t.Error("unmatched event must pass through untouched")
	}
	if msg, _ := got[1].Field("message"); msg != "boom" {
		t.Errorf("second event message = %v, want boom", msg)
	}
	if seen, _ := got[1].Field("seen"); seen != "errors" {
		t.Errorf("matched event seen = %v, want errors", seen)
	}
}

func TestRunFanOutSharesAcknowledgement(t *testing.T) {
	batch := event.NewBatch(
		event.LogFromMap(map[string]interface{}{"message": "a"}),
		event.LogFromMap(map[string]interface{}{"message": "b"}),
		event.LogFromMap(map[string]interface{}{"message": "c"}),
	)
	notifier := batch.AddNotifier()

	left := sinks.NewMemorySink()
	right := sinks.NewMemorySink()
	topo := New(zap.NewNop()).
		AddSource("src", sources.NewMemorySource(batch)).
		AddSink("left", left, []string{"src"}).
		AddSink("right", right, []string{"src"})

	if err := runTopology(t, topo); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if left.Len() != 3 || right.Len() != 3 {
		t.Fatalf("fan-out delivered %d/%d events, want 3/3", left.Len(), right.Len())
	}

	select {
	case status := <-notifier.Done():
		if status != acks.StatusDelivered {
			t.Errorf("batch status = %s, want delivered", status)
		}
	case <-time.After(time.Second):
		t.Fatal("batch never finalized")
	}
}

func TestRunAcknowledgesThroughTransforms(t *testing.T) {
	batch := event.NewBatch(
		event.LogFromMap(map[string]interface{}{"message": "x"}),
	)
	notifier := batch.AddNotifier()

	addFields := buildSync(t, &transform.AddFieldsConfig{
		Fields: map[string]interface{}{"env": "test"},
	})

	sink := sinks.NewMemorySink()
	topo := New(zap.NewNop()).
		AddSource("src", sources.NewMemorySource(batch)).
		AddTransform("enrich", addFields, nil, []string{"src"}).
		AddSink("cap", sink, []string{"enrich"})

	if err := runTopology(t, topo); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case status := <-notifier.Done():
		if status != acks.StatusDelivered {
			t.Errorf("batch status = %s, want delivered", status)
		}
	case <-time.After(time.Second):
		t.Fatal("batch never finalized")
	}

	if env, _ := sink.Events()[0].Field("env"); env != "test" {
		t.Errorf("env = %v, want test", env)
	}
}

func TestRunValidatesWiring(t *testing.T) {
	topo := New(zap.NewNop()).
		AddSource("src", sources.NewMemorySource()).
		AddSink("cap", sinks.NewMemorySink(), []string{"ghost"})

	err := runTopology(t, topo)
	if errors.CodeOf(err) != errors.CodeUnknownComponent {
		t.Fatalf("err = %v, want unknown component", err)
	}

	empty := New(zap.NewNop())
	if err := runTopology(t, empty); err == nil {
		t.Error("expected an error for an empty topology")
	}
}
