package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
)

func init() {
	RegisterConfig("parquet", func() Config { return &ParquetConfig{} })
}

// parquetSchema is the fixed event envelope: identity and provenance as
// columns, everything variant-specific as one JSON payload column.
var parquetSchema = arrow.NewSchema([]arrow.Field{
	{Name: "ingested_at", Type: arrow.BinaryTypes.String},
	{Name: "source", Type: arrow.BinaryTypes.String},
	{Name: "kind", Type: arrow.BinaryTypes.String},
	{Name: "payload", Type: arrow.BinaryTypes.String},
}, nil)

// ParquetConfig configures the parquet sink: events are buffered and rolled
// into a new Parquet file under Directory once RowsPerFile rows accumulate.
// Files are written to a temp path and renamed, so readers never observe a
// partial file.
type ParquetConfig struct {
	Directory string `yaml:"directory"`

	RowsPerFile int `yaml:"rows_per_file,omitempty"`

	// Compression is none, snappy, gzip, or zstd. Defaults to snappy.
	Compression string `yaml:"compression,omitempty"`
}

func (c *ParquetConfig) ComponentName() string { return "parquet" }

func (c *ParquetConfig) Input() config.Input { return config.InputAll() }

func (c *ParquetConfig) Build(ctx *Context) (Sink, error) {
	if c.Directory == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "parquet sink requires a directory")
	}
	rows := c.RowsPerFile
	if rows <= 0 {
		rows = 10000
	}

	var codec compress.Compression
	switch c.Compression {
	case "", "snappy":
		codec = compress.Codecs.Snappy
	case "none":
		codec = compress.Codecs.Uncompressed
	case "gzip":
		codec = compress.Codecs.Gzip
	case "zstd":
		codec = compress.Codecs.Zstd
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unsupported parquet compression %q", c.Compression)
	}

	return &parquetSink{
		directory:   c.Directory,
		rowsPerFile: rows,
		compression: codec,
		logger:      ctx.Logger,
	}, nil
}

type parquetSink struct {
	directory   string
	rowsPerFile int
	compression compress.Compression
	logger      *zap.Logger

	builder *array.RecordBuilder
	rows    int
	pending []event.Batch
}

func (s *parquetSink) Run(ctx context.Context, in <-chan event.Batch) error {
	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return errors.Wrapf(err, errors.CodeInvalidConfig, "creating %s", s.directory)
	}
	s.builder = array.NewRecordBuilder(memory.DefaultAllocator, parquetSchema)
	defer s.builder.Release()

	for {
		select {
		case <-ctx.Done():
			s.roll()
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return s.roll()
			}
			s.appendBatch(batch)
			if s.rows >= s.rowsPerFile {
				if err := s.roll(); err != nil {
					s.logger.Error("parquet roll failed", zap.Error(err))
				}
			}
		}
	}
}

func (s *parquetSink) appendBatch(batch event.Batch) {
	for _, e := range batch.Events() {
		payload, err := json.Marshal(payloadOf(e))
		if err != nil {
			e.Meta().Finalize(acks.StatusErrored)
			continue
		}
		s.builder.Field(0).(*array.StringBuilder).Append(e.Meta().IngestedAt.Format(time.RFC3339Nano))
		s.builder.Field(1).(*array.StringBuilder).Append(e.Meta().Source)
		s.builder.Field(2).(*array.StringBuilder).Append(e.Kind().String())
		s.builder.Field(3).(*array.StringBuilder).Append(string(payload))
		s.rows++
	}
	s.pending = append(s.pending, batch)
}

// roll writes the buffered rows as one Parquet file and acknowledges the
// batches it covers.
func (s *parquetSink) roll() error {
	if s.rows == 0 {
		s.finalizePending(acks.StatusDelivered)
		return nil
	}

	rec := s.builder.NewRecord()
	defer rec.Release()
	s.rows = 0

	path := filepath.Join(s.directory,
		fmt.Sprintf("events-%s.parquet", time.Now().UTC().Format("20060102T150405.000000000Z")))
	tempPath := path + ".tmp"

	if err := s.writeFile(tempPath, rec); err != nil {
		os.Remove(tempPath)
		s.finalizePending(acks.StatusErrored)
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		s.finalizePending(acks.StatusErrored)
		return errors.Wrapf(err, errors.CodeDeliveryFailed, "renaming %s", tempPath)
	}

	s.logger.Debug("wrote parquet file",
		zap.String("path", path),
		zap.Int64("rows", rec.NumRows()))
	s.finalizePending(acks.StatusDelivered)
	return nil
}

func (s *parquetSink) writeFile(path string, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.CodeDeliveryFailed, "creating %s", path)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(s.compression),
		parquet.WithCreatedBy("eventflow"),
	)
	writer, err := pqarrow.NewFileWriter(parquetSchema, f, writerProps, pqarrow.NewArrowWriterProperties())
	if err != nil {
		f.Close()
		return errors.Wrap(err, errors.CodeDeliveryFailed, "creating parquet writer")
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return errors.Wrap(err, errors.CodeDeliveryFailed, "writing parquet record")
	}
	return writer.Close()
}

func (s *parquetSink) finalizePending(status acks.Status) {
	for _, batch := range s.pending {
		batch.Finalize(status)
	}
	s.pending = s.pending[:0]
}

func payloadOf(e event.Event) interface{} {
	switch ev := e.(type) {
	case *event.LogEvent:
		return ev.Fields()
	case *event.Metric:
		return map[string]interface{}{
			"name":  ev.Name,
			"kind":  ev.MetricKind.String(),
			"value": ev.Value,
			"tags":  ev.Tags,
		}
	case *event.TraceEvent:
		return map[string]interface{}{
			"trace_id":   ev.TraceID,
			"span_id":    ev.SpanID,
			"name":       ev.Name,
			"attributes": ev.Attributes,
		}
	default:
		return nil
	}
}
