package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/checkpoint"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/event"
)

func collect(t *testing.T, src Source, max int, timeout time.Duration) []event.Batch {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := make(chan event.Batch, max)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	var batches []event.Batch
	for len(batches) < max {
		select {
		case b := <-out:
			batches = append(batches, b)
		case err := <-done:
			if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
				t.Fatalf("source: %v", err)
			}
			// Drain batches already buffered in out before the source returned.
			for len(batches) < max {
				select {
				case b := <-out:
					batches = append(batches, b)
				default:
					return batches
				}
			}
			return batches
		case <-ctx.Done():
			return batches
		}
	}
	cancel()
	return batches
}

func TestDemoSourceBoundedCount(t *testing.T) {
	cfg := &DemoConfig{Count: 10, BatchSize: 4}
	src, err := cfg.Build(NewContext())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	batches := collect(t, src, 10, 2*time.Second)
	total := 0
	for _, b := range batches {
		total += b.Len()
	}
	if total != 10 {
		t.Errorf("produced %d events, want 10", total)
	}
}

func TestDemoSourceMetricsVariant(t *testing.T) {
	cfg := &DemoConfig{Variant: "metrics", Count: 2, BatchSize: 2}
	if cfg.OutputType() != config.DataTypeMetric {
		t.Errorf("output type = %v, want metric", cfg.OutputType())
	}
	src, err := cfg.Build(NewContext())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	batches := collect(t, src, 1, 2*time.Second)
	if len(batches) == 0 {
		t.Fatal("no batches produced")
	}
	if got := batches[0].Events()[0].Kind(); got != event.KindMetric {
		t.Errorf("kind = %v, want metric", got)
	}
}

func TestDemoSourceRejectsUnknownVariant(t *testing.T) {
	if _, err := (&DemoConfig{Variant: "traces"}).Build(NewContext()); err == nil {
		t.Fatal("expected build error")
	}
}

func TestFileSourceReadsExistingLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	content := `{"message":"one","level":"info"}` + "\n" + `{"message":"two","level":"warn"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := &FileConfig{Path: path, Codec: "json", BatchSize: 10}
	src, err := cfg.Build(NewContext())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	batches := collect(t, src, 1, 2*time.Second)
	if len(batches) == 0 {
		t.Fatal("no batches produced")
	}
	events := batches[0].Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if v, _ := events[0].Field("message"); v != "one" {
		t.Errorf("first message = %v", v)
	}
	if events[0].Meta().Source != "" && events[0].Meta().IngestedAt.IsZero() {
		t.Error("metadata not stamped")
	}
}

func TestFileSourceSkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	content := "{\"message\":\"good\"}\nnot json at all\n{\"message\":\"also good\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := &FileConfig{Path: path, Codec: "json", BatchSize: 10}
	src, err := cfg.Build(NewContext())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	batches := collect(t, src, 1, 2*time.Second)
	if len(batches) == 0 {
		t.Fatal("no batches produced")
	}
	if got := batches[0].Len(); got != 2 {
		t.Errorf("got %d events, want 2 decodable ones", got)
	}
}

func TestFileSourceResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	firstLine := "first line\n"
	content := firstLine + "second line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := checkpoint.NewFileStore(filepath.Join(dir, "checkpoints"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	buildCtx := NewContext()
	buildCtx.Key = config.NewComponentKey("tail")
	buildCtx.Checkpoints = store

	err = store.Save(context.Background(), checkpoint.Position{
		Source:   "tail",
		Resource: path,
		Offset:   int64(len(firstLine)),
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	cfg := &FileConfig{Path: path, BatchSize: 10}
	src, err := cfg.Build(buildCtx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	batches := collect(t, src, 1, 2*time.Second)
	if len(batches) == 0 {
		t.Fatal("no batches produced")
	}
	events := batches[0].Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 after resume", len(events))
	}
	if v, _ := events[0].Field("message"); v != "second line" {
		t.Errorf("message = %v, want second line", v)
	}
}

func TestFileSourceCheckpointsAfterAck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	content := "only line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store, err := checkpoint.NewFileStore(filepath.Join(dir, "checkpoints"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	buildCtx := NewContext()
	buildCtx.Key = config.NewComponentKey("tail")
	buildCtx.Checkpoints = store

	cfg := &FileConfig{Path: path, BatchSize: 10}
	src, err := cfg.Build(buildCtx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	batches := collect(t, src, 1, 2*time.Second)
	if len(batches) == 0 {
		t.Fatal("no batches produced")
	}

	// No position until the batch is acknowledged.
	if _, err := store.Load(context.Background(), "tail", path); err != checkpoint.ErrNotFound {
		t.Fatalf("premature checkpoint: %v", err)
	}

	batches[0].Finalize(acks.StatusDelivered)

	deadline := time.Now().Add(2 * time.Second)
	for {
		pos, err := store.Load(context.Background(), "tail", path)
		if err == nil {
			if pos.Offset != int64(len(content)) {
				t.Errorf("offset = %d, want %d", pos.Offset, len(content))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("checkpoint never written after ack")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemorySourceReplaysBatches(t *testing.T) {
	src := NewMemorySource(
		event.NewBatch(event.LogFromMap(map[string]interface{}{"message": "a"})),
		event.NewBatch(event.LogFromMap(map[string]interface{}{"message": "b"})),
	)
	batches := collect(t, src, 2, time.Second)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
}
