package sinks

import (
	"bytes"
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/codec"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/resilience"
)

func init() {
	RegisterConfig("s3", func() Config { return &S3Config{} })
}

// S3Config configures the S3 sink: events are encoded line-by-line into an
// in-memory object and uploaded when the object grows past FlushBytes or the
// flush interval elapses. Batches are acknowledged only after their object
// upload succeeds.
type S3Config struct {
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to object keys, before the date path.
	Prefix string `yaml:"prefix,omitempty"`

	Region string `yaml:"region,omitempty"`

	// Codec encodes each event. Defaults to "json".
	Codec string `yaml:"codec,omitempty"`

	FlushBytes    int           `yaml:"flush_bytes,omitempty"`
	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

func (c *S3Config) ComponentName() string { return "s3" }

func (c *S3Config) Input() config.Input { return config.InputAll() }

func (c *S3Config) Build(ctx *Context) (Sink, error) {
	if c.Bucket == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "s3 sink requires a bucket")
	}
	codecName := c.Codec
	if codecName == "" {
		codecName = "json"
	}
	enc, err := codec.NewEncoder(codecName)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "s3 sink codec")
	}

	flushBytes := c.FlushBytes
	if flushBytes <= 0 {
		flushBytes = 10 << 20 // 10 MiB
	}
	flushInterval := c.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}

	return &s3Sink{
		bucket:        c.Bucket,
		prefix:        c.Prefix,
		region:        c.Region,
		encoder:       enc,
		flushBytes:    flushBytes,
		flushInterval: flushInterval,
		logger:        ctx.Logger,
	}, nil
}

type s3Sink struct {
	bucket        string
	prefix        string
	region        string
	encoder       codec.Encoder
	flushBytes    int
	flushInterval time.Duration
	logger        *zap.Logger

	client  *s3.Client
	buf     bytes.Buffer
	pending []event.Batch
}

func (s *s3Sink) Run(ctx context.Context, in <-chan event.Batch) error {
	var opts []func(*awsconfig.LoadOptions) error
	if s.region != "" {
		opts = append(opts, awsconfig.WithRegion(s.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "loading AWS configuration")
	}
	s.client = s3.NewFromConfig(awsCfg)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			if err := s.flush(ctx); err != nil {
				s.logger.Error("periodic flush failed", zap.Error(err))
			}
		case batch, ok := <-in:
			if !ok {
				return s.flush(ctx)
			}
			s.append(batch)
			if s.buf.Len() >= s.flushBytes {
				if err := s.flush(ctx); err != nil {
					s.logger.Error("size-triggered flush failed", zap.Error(err))
				}
			}
		}
	}
}

func (s *s3Sink) append(batch event.Batch) {
	for _, e := range batch.Events() {
		data, err := s.encoder.Encode(e)
		if err != nil {
			e.Meta().Finalize(acks.StatusErrored)
			continue
		}
		s.buf.Write(data)
		s.buf.WriteByte('\n')
	}
	s.pending = append(s.pending, batch)
}

// flush uploads the accumulated object and acknowledges the batches it
// covers. The upload outcome applies to all of them: one object, one fate.
func (s *s3Sink) flush(ctx context.Context) error {
	if s.buf.Len() == 0 {
		s.finalizePending(acks.StatusDelivered)
		return nil
	}

	key := s.objectKey(time.Now().UTC())
	err := resilience.Do(ctx, resilience.DefaultPolicy(), func() error {
		_, putErr := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &s.bucket,
			Key:    &key,
			Body:   bytes.NewReader(s.buf.Bytes()),
		})
		return putErr
	})
	if err != nil {
		s.finalizePending(acks.StatusErrored)
		s.buf.Reset()
		return errors.Wrapf(err, errors.CodeDeliveryFailed, "uploading s3://%s/%s", s.bucket, key)
	}

	s.logger.Debug("uploaded object",
		zap.String("key", key),
		zap.Int("bytes", s.buf.Len()),
		zap.Int("batches", len(s.pending)))

	s.finalizePending(acks.StatusDelivered)
	s.buf.Reset()
	return nil
}

func (s *s3Sink) finalizePending(status acks.Status) {
	for _, batch := range s.pending {
		batch.Finalize(status)
	}
	s.pending = s.pending[:0]
}

func (s *s3Sink) objectKey(now time.Time) string {
	return fmt.Sprintf("%s%s/%s-%s.log",
		s.prefix,
		now.Format("2006/01/02"),
		now.Format("20060102T150405Z"),
		uuid.NewString())
}
