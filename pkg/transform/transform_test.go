package transform

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
)

type upperStage struct{}

func (upperStage) Transform(e event.Event, output *OutputsBuf) {
	if v, ok := e.Field("message"); ok {
		if s, ok := v.(string); ok {
			e.SetField("message", s+"!")
		}
	}
	output.Push(e)
}

func TestOutputsBufDrainResetsButKeepsCapacity(t *testing.T) {
	buf := NewDefaultBuf(8)
	buf.Push(event.NewLog())
	buf.Push(event.NewLog())

	drained := buf.Drain()
	if len(drained) != 2 {
		t.Fatalf("drained %d events, want 2", len(drained))
	}
	if buf.Len() != 0 {
		t.Errorf("buffer len after drain = %d, want 0", buf.Len())
	}

	buf.Push(event.NewLog())
	if buf.Len() != 1 {
		t.Errorf("buffer len after push = %d, want 1", buf.Len())
	}
}

func TestOutputsBufTakeReleasesStorage(t *testing.T) {
	buf := NewDefaultBuf(4)
	buf.Push(event.NewLog())

	batch := buf.Take()
	if batch.Len() != 1 {
		t.Fatalf("batch len = %d, want 1", batch.Len())
	}
	if buf.Len() != 0 {
		t.Errorf("buffer len after take = %d, want 0", buf.Len())
	}
}

func TestTransformVariants(t *testing.T) {
	var zero Transform
	if zero.IsFunction() || zero.IsSynchronous() {
		t.Error("zero transform claims a variant")
	}
	if _, ok := zero.IntoSync(); ok {
		t.Error("zero transform converted to sync")
	}

	fn := NewFunction(upperStage{})
	if !fn.IsFunction() || fn.IsSynchronous() {
		t.Error("function transform variant flags wrong")
	}
	sync, ok := fn.IntoSync()
	if !ok {
		t.Fatal("function transform did not convert to sync")
	}

	// The adapter applies the function per drained event.
	out := NewDefaultBuf(0)
	sync.TransformAll(event.NewBatch(
		event.LogFromMap(map[string]interface{}{"message": "a"}),
		event.LogFromMap(map[string]interface{}{"message": "b"}),
	), out)
	events := out.Drain()
	if len(events) != 2 {
		t.Fatalf("adapter produced %d events, want 2", len(events))
	}
	if v, _ := events[0].Field("message"); v != "a!" {
		t.Errorf("first message = %v, want a!", v)
	}
}

func TestConfigWrapperDecodesByType(t *testing.T) {
	var w ConfigWrapper
	src := "type: add_fields\nfields:\n  env: prod\n"
	if err := yaml.Unmarshal([]byte(src), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cfg, ok := w.Config.(*AddFieldsConfig)
	if !ok {
		t.Fatalf("decoded %T, want *AddFieldsConfig", w.Config)
	}
	if cfg.Fields["env"] != "prod" {
		t.Errorf("fields = %v", cfg.Fields)
	}
}

func TestConfigWrapperRejectsUnknownType(t *testing.T) {
	var w ConfigWrapper
	if err := yaml.Unmarshal([]byte("type: telepathy\n"), &w); err == nil {
		t.Fatal("expected error for unknown transform type")
	}
}

func TestConfigWrapperRequiresType(t *testing.T) {
	var w ConfigWrapper
	if err := yaml.Unmarshal([]byte("fields: {a: 1}\n"), &w); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func buildFunction(t *testing.T, cfg Config) FunctionTransform {
	t.Helper()
	built, err := cfg.Build(config.NewTransformContext())
	if err != nil {
		t.Fatalf("build %s: %v", cfg.ComponentName(), err)
	}
	if !built.IsFunction() {
		t.Fatalf("%s built a non-function transform", cfg.ComponentName())
	}
	return built.Function()
}

func TestAddFieldsWritesNestedPaths(t *testing.T) {
	fn := buildFunction(t, &AddFieldsConfig{Fields: map[string]interface{}{
		"env":          "prod",
		"labels.team":  "infra",
		"labels.owner": "oncall",
	}})

	out := NewDefaultBuf(0)
	fn.Transform(event.NewLog(), out)

	events := out.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if v, _ := events[0].Field("env"); v != "prod" {
		t.Errorf("env = %v", v)
	}
	if v, _ := events[0].Field("labels.team"); v != "infra" {
		t.Errorf("labels.team = %v", v)
	}
}

func TestAddFieldsRequiresFields(t *testing.T) {
	if _, err := (&AddFieldsConfig{}).Build(config.NewTransformContext()); err == nil {
		t.Fatal("expected build error for empty fields")
	}
}

func TestFilterDropsNonMatching(t *testing.T) {
	cfg := &FilterConfig{}
	cfg.Condition.Type = "field_equals"
	cfg.Condition.Field = "level"
	cfg.Condition.Value = "error"
	fn := buildFunction(t, cfg)

	out := NewDefaultBuf(0)
	fn.Transform(event.LogFromMap(map[string]interface{}{"level": "error"}), out)
	fn.Transform(event.LogFromMap(map[string]interface{}{"level": "info"}), out)

	events := out.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if v, _ := events[0].Field("level"); v != "error" {
		t.Errorf("kept event level = %v, want error", v)
	}
}

func TestSampleKeepsOneInN(t *testing.T) {
	fn := buildFunction(t, &SampleConfig{Rate: 3})

	out := NewDefaultBuf(0)
	for i := 0; i < 9; i++ {
		fn.Transform(event.NewLog(), out)
	}
	if got := out.Len(); got != 3 {
		t.Errorf("kept %d of 9 events at rate 3, want 3", got)
	}
}

func TestSampleKeyFieldIsConsistent(t *testing.T) {
	fn := buildFunction(t, &SampleConfig{Rate: 10, KeyField: "request_id"})

	out := NewDefaultBuf(0)
	for i := 0; i < 5; i++ {
		fn.Transform(event.LogFromMap(map[string]interface{}{"request_id": "abc"}), out)
	}
	// Same key hashes the same way, so the decision is all-or-nothing.
	if got := out.Len(); got != 0 && got != 5 {
		t.Errorf("kept %d of 5 identical-key events, want 0 or 5", got)
	}
}

func TestSampleRejectsZeroRate(t *testing.T) {
	if _, err := (&SampleConfig{Rate: 0}).Build(config.NewTransformContext()); err == nil {
		t.Fatal("expected build error for zero rate")
	}
}

func TestDedupDropsRepeats(t *testing.T) {
	built, err := (&DedupConfig{Fields: []string{"message"}}).Build(config.NewTransformContext())
	if err != nil {
		t.Fatalf("build dedup: %v", err)
	}
	sync := built.Synchronous()
	if sync == nil {
		t.Fatal("dedup did not build a synchronous transform")
	}

	out := NewDefaultBuf(0)
	sync.TransformAll(event.NewBatch(
		event.LogFromMap(map[string]interface{}{"message": "a"}),
		event.LogFromMap(map[string]interface{}{"message": "a"}),
		event.LogFromMap(map[string]interface{}{"message": "b"}),
		event.LogFromMap(map[string]interface{}{"message": "a"}),
	), out)

	events := out.Drain()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if v, _ := events[0].Field("message"); v != "a" {
		t.Errorf("first kept = %v, want a", v)
	}
	if v, _ := events[1].Field("message"); v != "b" {
		t.Errorf("second kept = %v, want b", v)
	}
}

func TestDedupCacheEviction(t *testing.T) {
	built, err := (&DedupConfig{Fields: []string{"message"}, CacheSize: 1}).Build(config.NewTransformContext())
	if err != nil {
		t.Fatalf("build dedup: %v", err)
	}
	sync := built.Synchronous()

	out := NewDefaultBuf(0)
	sync.TransformAll(event.NewBatch(
		event.LogFromMap(map[string]interface{}{"message": "a"}),
		event.LogFromMap(map[string]interface{}{"message": "b"}), // evicts a
		event.LogFromMap(map[string]interface{}{"message": "a"}), // passes again
	), out)

	if got := out.Len(); got != 3 {
		t.Errorf("got %d events, want 3 with cache size 1", got)
	}
}

func TestMetricToLogCarriesFieldsAndAcks(t *testing.T) {
	fn := buildFunction(t, &MetricToLogConfig{HostTag: "host"})

	m := event.NewMetric("requests_total", event.MetricCounter, 42)
	m.Tags = map[string]string{"host": "web-1", "region": "us-east-1"}

	out := NewDefaultBuf(0)
	fn.Transform(m, out)

	events := out.Drain()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	log := events[0]
	if log.Kind() != event.KindLog {
		t.Fatalf("kind = %v, want log", log.Kind())
	}
	if v, _ := log.Field("name"); v != "requests_total" {
		t.Errorf("name = %v", v)
	}
	if v, _ := log.Field("value"); v != float64(42) {
		t.Errorf("value = %v", v)
	}
	if v, _ := log.Field("host"); v != "web-1" {
		t.Errorf("host = %v", v)
	}
	if v, _ := log.Field("tags.region"); v != "us-east-1" {
		t.Errorf("tags.region = %v", v)
	}
}

func TestRedactHashesConfiguredFields(t *testing.T) {
	fn := buildFunction(t, &RedactConfig{Fields: []string{"user.email"}, Salt: "pepper"})

	first := event.LogFromMap(map[string]interface{}{
		"user":    map[string]interface{}{"email": "a@example.com"},
		"message": "login",
	})
	second := event.LogFromMap(map[string]interface{}{
		"user": map[string]interface{}{"email": "a@example.com"},
	})

	out := NewDefaultBuf(0)
	fn.Transform(first, out)
	fn.Transform(second, out)

	events := out.Drain()
	v1, _ := events[0].Field("user.email")
	v2, _ := events[1].Field("user.email")
	if v1 == "a@example.com" {
		t.Error("email was not redacted")
	}
	if v1 != v2 {
		t.Errorf("same input hashed differently: %v vs %v", v1, v2)
	}
	if len(v1.(string)) != 16 {
		t.Errorf("hash length = %d, want 16", len(v1.(string)))
	}
	if v, _ := events[0].Field("message"); v != "login" {
		t.Errorf("unrelated field changed: %v", v)
	}
}
