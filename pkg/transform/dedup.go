package transform

import (
	"fmt"
	"hash/fnv"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("dedup", func() Config { return &DedupConfig{} })
}

const defaultDedupCacheSize = 4096

// DedupConfig configures the dedup transform, which drops events whose
// configured fields hash to a value already seen. The seen-set is
// bounded by CacheSize and evicted in insertion order, so duplicates
// farther apart than the cache size pass through again.
type DedupConfig struct {
	Fields    []string `yaml:"fields"`
	CacheSize int      `yaml:"cache_size,omitempty"`
}

func (c *DedupConfig) ComponentName() string { return "dedup" }

func (c *DedupConfig) Build(ctx *config.TransformContext) (Transform, error) {
	if len(c.Fields) == 0 {
		return Transform{}, errors.New(errors.CodeInvalidConfig, "dedup requires at least one field")
	}
	size := c.CacheSize
	if size <= 0 {
		size = defaultDedupCacheSize
	}
	return NewSynchronous(&deduper{
		fields:  c.Fields,
		maxSize: size,
		seen:    make(map[uint64]struct{}, size),
		events:  telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}), nil
}

func (c *DedupConfig) Input() config.Input { return config.InputAll() }

func (c *DedupConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *DedupConfig) Nestable(_ map[string]bool) bool { return true }

type deduper struct {
	fields  []string
	maxSize int
	seen    map[uint64]struct{}
	order   []uint64
	events  *telemetry.ComponentEvents
}

func (t *deduper) Transform(e event.Event, output *OutputsBuf) {
	if t.isDuplicate(e) {
		e.Meta().Finalize(acks.StatusDelivered)
		t.events.EventDiscarded("duplicate", nil)
		return
	}
	output.Push(e)
}

func (t *deduper) TransformAll(events event.Batch, output *OutputsBuf) {
	for _, e := range events.Drain() {
		t.Transform(e, output)
	}
}

func (t *deduper) isDuplicate(e event.Event) bool {
	h := fnv.New64a()
	for _, path := range t.fields {
		if v, ok := e.Field(path); ok {
			fmt.Fprintf(h, "%s=%v;", path, v)
		} else {
			fmt.Fprintf(h, "%s=<missing>;", path)
		}
	}
	key := h.Sum64()

	if _, ok := t.seen[key]; ok {
		return true
	}
	t.remember(key)
	return false
}

func (t *deduper) remember(key uint64) {
	if len(t.seen) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.seen, oldest)
	}
	t.seen[key] = struct{}{}
	t.order = append(t.order, key)
}
