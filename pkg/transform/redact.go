package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterConfig("redact", func() Config { return &RedactConfig{} })
}

// RedactConfig configures the redact transform, which replaces the
// values of the named field paths with a salted SHA-256 hash. The salt
// keeps hashes from being reversed via rainbow tables; the same value
// always maps to the same hash so joins across events still work.
type RedactConfig struct {
	Fields []string `yaml:"fields"`
	Salt   string   `yaml:"salt"`
}

func (c *RedactConfig) ComponentName() string { return "redact" }

func (c *RedactConfig) Build(_ *config.TransformContext) (Transform, error) {
	if len(c.Fields) == 0 {
		return Transform{}, errors.New(errors.CodeInvalidConfig, "redact requires at least one field")
	}
	if c.Salt == "" {
		return Transform{}, errors.New(errors.CodeInvalidConfig, "redact requires a non-empty salt")
	}
	return NewFunction(&redactor{
		fields: c.Fields,
		salt:   []byte(c.Salt),
		cache:  make(map[string]string),
	}), nil
}

func (c *RedactConfig) Input() config.Input { return config.InputAll() }

func (c *RedactConfig) Outputs(_ *config.Definition, _ config.LogNamespace) []config.Output {
	return []config.Output{config.DefaultOutput(config.DataTypeAll)}
}

func (c *RedactConfig) Nestable(_ map[string]bool) bool { return true }

type redactor struct {
	fields []string
	salt   []byte

	// Cache for repeated values, common for IDs that recur across a batch.
	mu    sync.RWMutex
	cache map[string]string
}

func (t *redactor) Transform(e event.Event, output *OutputsBuf) {
	for _, path := range t.fields {
		v, ok := e.Field(path)
		if !ok {
			continue
		}
		e.SetField(path, t.hash(fmt.Sprintf("%v", v)))
	}
	output.Push(e)
}

// hash returns a hex-encoded salted SHA-256, truncated to 16 chars for
// readability (still 64 bits of entropy).
func (t *redactor) hash(value string) string {
	if value == "" {
		return ""
	}

	t.mu.RLock()
	if cached, ok := t.cache[value]; ok {
		t.mu.RUnlock()
		return cached
	}
	t.mu.RUnlock()

	h := sha256.New()
	h.Write(t.salt)
	h.Write([]byte(value))
	result := hex.EncodeToString(h.Sum(nil))[:16]

	t.mu.Lock()
	t.cache[value] = result
	t.mu.Unlock()

	return result
}
