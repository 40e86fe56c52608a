// Package checkpoint persists source read positions so that a restarted
// topology resumes where the previous run stopped instead of re-reading
// already acknowledged data.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Position is one persisted read position: a source component plus the
// resource it was reading and the byte offset it has fully acknowledged.
type Position struct {
	Source    string    `json:"source"`
	Resource  string    `json:"resource"`
	Offset    int64     `json:"offset"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound is returned by Load when no position has been saved.
var ErrNotFound = os.ErrNotExist

// Store persists positions. Implementations must be safe for concurrent use
// by multiple sources.
type Store interface {
	Save(ctx context.Context, pos Position) error
	Load(ctx context.Context, source, resource string) (Position, error)
	Delete(ctx context.Context, source, resource string) error
	Name() string
}

// sanitizeKey flattens a source/resource pair into a single token usable as
// a file name or Redis key segment.
func sanitizeKey(source, resource string) string {
	s := source + "--" + resource
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// FileStore keeps one JSON file per position under a directory. Writes go
// to a temp file first and are renamed into place, so a crash mid-write
// never leaves a truncated position behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(source, resource string) string {
	return filepath.Join(s.dir, sanitizeKey(source, resource)+".checkpoint")
}

func (s *FileStore) Save(_ context.Context, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(pos, "", "  ")
	if err != nil {
		return err
	}

	path := s.path(pos.Source, pos.Resource)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (s *FileStore) Load(_ context.Context, source, resource string) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(source, resource))
	if err != nil {
		if os.IsNotExist(err) {
			return Position{}, ErrNotFound
		}
		return Position{}, err
	}

	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return Position{}, fmt.Errorf("corrupt checkpoint for %s %s: %w", source, resource, err)
	}
	return pos, nil
}

func (s *FileStore) Delete(_ context.Context, source, resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(source, resource))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) Name() string { return "file" }

// MultiStore writes positions to a primary and a best-effort secondary, and
// reads from the primary falling back to the secondary. Useful for keeping a
// local file store alongside a shared Redis store.
type MultiStore struct {
	primary   Store
	secondary Store
}

// NewMultiStore creates a redundant store pair.
func NewMultiStore(primary, secondary Store) *MultiStore {
	return &MultiStore{primary: primary, secondary: secondary}
}

func (m *MultiStore) Save(ctx context.Context, pos Position) error {
	if err := m.primary.Save(ctx, pos); err != nil {
		return err
	}
	// Secondary is best-effort.
	_ = m.secondary.Save(ctx, pos)
	return nil
}

func (m *MultiStore) Load(ctx context.Context, source, resource string) (Position, error) {
	pos, err := m.primary.Load(ctx, source, resource)
	if err == nil {
		return pos, nil
	}
	return m.secondary.Load(ctx, source, resource)
}

func (m *MultiStore) Delete(ctx context.Context, source, resource string) error {
	err1 := m.primary.Delete(ctx, source, resource)
	err2 := m.secondary.Delete(ctx, source, resource)
	if err1 != nil {
		return err1
	}
	return err2
}

func (m *MultiStore) Name() string {
	return m.primary.Name() + "+" + m.secondary.Name()
}
