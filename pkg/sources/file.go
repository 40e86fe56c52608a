package sources

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/checkpoint"
	"github.com/eventflow/eventflow/pkg/codec"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/flow"
)

func init() {
	RegisterConfig("file", func() Config { return &FileConfig{} })
}

// FileConfig configures the file source: tail a single file, decoding each
// line with the configured codec. The read offset is checkpointed only after
// the downstream acknowledges the batch, so a crash re-reads unacknowledged
// lines instead of losing them.
type FileConfig struct {
	Path string `yaml:"path"`

	// Codec decodes each line. Defaults to "text".
	Codec string `yaml:"codec,omitempty"`

	BatchSize int `yaml:"batch_size,omitempty"`

	// FromBeginning ignores any saved checkpoint.
	FromBeginning bool `yaml:"from_beginning,omitempty"`
}

func (c *FileConfig) ComponentName() string { return "file" }

func (c *FileConfig) OutputType() config.DataType { return config.DataTypeLog }

func (c *FileConfig) Build(ctx *Context) (Source, error) {
	if c.Path == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "file source requires a path")
	}
	codecName := c.Codec
	if codecName == "" {
		codecName = "text"
	}
	dec, err := codec.NewDecoder(codecName)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "file source codec")
	}
	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	return &fileSource{
		key:           ctx.Key.ID(),
		path:          c.Path,
		decoder:       dec,
		batchSize:     batchSize,
		fromBeginning: c.FromBeginning,
		checkpoints:   ctx.Checkpoints,
		logger:        ctx.Logger,
	}, nil
}

type fileSource struct {
	key           string
	path          string
	decoder       codec.Decoder
	batchSize     int
	fromBeginning bool
	checkpoints   checkpoint.Store
	logger        *zap.Logger
}

// readAheadDepth bounds how many sealed batches the reader may run ahead of
// the topology. A slow sink propagates backpressure through the queue to the
// file read itself.
const readAheadDepth = 4

func (s *fileSource) Run(ctx context.Context, out chan<- event.Batch) error {
	queue := flow.NewBoundedQueue(readAheadDepth)
	defer queue.Close()

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(ctx, queue)
		queue.Close()
	}()

	for {
		batch, err := queue.Pop(ctx)
		if err == flow.ErrQueueClosed {
			return <-readErr
		}
		if err != nil {
			return err
		}
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLoop tails the file, decodes lines, and pushes sealed batches onto the
// read-ahead queue.
func (s *fileSource) readLoop(ctx context.Context, queue *flow.BoundedQueue) error {
	offset := s.resumeOffset(ctx)

	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(err, errors.CodeSourceFailure, "opening %s", s.path)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return errors.Wrapf(err, errors.CodeSourceFailure, "seeking %s to %d", s.path, offset)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.CodeSourceFailure, "creating file watcher")
	}
	defer watcher.Close()
	// Watch the directory: editors and log rotation replace files, and the
	// directory watch survives that.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return errors.Wrapf(err, errors.CodeSourceFailure, "watching %s", filepath.Dir(s.path))
	}

	s.logger.Info("file source started",
		zap.String("path", s.path),
		zap.Int64("offset", offset))

	reader := bufio.NewReader(f)
	batch := event.NewBatch()

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			offset += int64(len(line))
			trimmed := trimLine(line)
			if len(trimmed) > 0 {
				e, decErr := s.decoder.Decode(trimmed)
				if decErr != nil {
					s.logger.Warn("dropping undecodable line",
						zap.Int64("offset", offset),
						zap.Error(decErr))
				} else {
					e.Meta().Source = s.key
					e.Meta().IngestedAt = time.Now().UTC()
					batch.Push(e)
				}
			}
		}

		if err == nil && batch.Len() < s.batchSize {
			continue
		}

		if batch.Len() > 0 {
			s.seal(&batch, offset)
			if pushErr := queue.Push(ctx, batch); pushErr != nil {
				return pushErr
			}
			batch = event.NewBatch()
		}

		if err == nil {
			continue
		}
		if err != io.EOF {
			return errors.Wrapf(err, errors.CodeSourceFailure, "reading %s", s.path)
		}

		// At EOF, wait for the file to grow.
		if waitErr := s.waitForChange(ctx, watcher); waitErr != nil {
			return waitErr
		}
	}
}

// seal attaches the acknowledgement linkage to a finished batch. The offset
// is checkpointed only once every event in the batch has been acknowledged.
func (s *fileSource) seal(batch *event.Batch, offset int64) {
	if s.checkpoints == nil {
		return
	}
	n := batch.AddNotifier()
	go func() {
		status := <-n.Done()
		s.logger.Debug("batch finalized",
			zap.String("status", status.String()),
			zap.Int64("offset", offset))
		s.savePosition(offset)
	}()
}

func (s *fileSource) resumeOffset(ctx context.Context) int64 {
	if s.fromBeginning || s.checkpoints == nil {
		return 0
	}
	pos, err := s.checkpoints.Load(ctx, s.key, s.path)
	if err != nil {
		if err != checkpoint.ErrNotFound {
			s.logger.Warn("checkpoint load failed, reading from start", zap.Error(err))
		}
		return 0
	}
	return pos.Offset
}

func (s *fileSource) savePosition(offset int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.checkpoints.Save(ctx, checkpoint.Position{
		Source:    s.key,
		Resource:  s.path,
		Offset:    offset,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("checkpoint save failed", zap.Error(err))
	}
}

func (s *fileSource) waitForChange(ctx context.Context, watcher *fsnotify.Watcher) error {
	// A ticker backstops missed notifications on network filesystems.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New(errors.CodeSourceFailure, "file watcher closed")
			}
			if ev.Name == s.path && ev.Op.Has(fsnotify.Write) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New(errors.CodeSourceFailure, "file watcher closed")
			}
			s.logger.Warn("file watcher error", zap.Error(err))
		case <-ticker.C:
			return nil
		}
	}
}

func trimLine(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
