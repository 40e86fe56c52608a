package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/eventflow/eventflow/pkg/acks"
	"github.com/eventflow/eventflow/pkg/config"
	"github.com/eventflow/eventflow/pkg/errors"
	"github.com/eventflow/eventflow/pkg/event"
	"github.com/eventflow/eventflow/pkg/telemetry"
)

func init() {
	RegisterConfig("duckdb", func() Config { return &DuckDBConfig{} })
}

// DuckDBConfig configures the duckdb sink: events land in a local DuckDB
// table, queryable with SQL while the topology is still running.
type DuckDBConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path,omitempty"`

	// Table name. Defaults to "events".
	Table string `yaml:"table,omitempty"`
}

func (c *DuckDBConfig) ComponentName() string { return "duckdb" }

func (c *DuckDBConfig) Input() config.Input { return config.InputAll() }

func (c *DuckDBConfig) Build(ctx *Context) (Sink, error) {
	table := c.Table
	if table == "" {
		table = "events"
	}
	if !isIdentifier(table) {
		return nil, errors.Newf(errors.CodeInvalidConfig, "invalid duckdb table name %q", c.Table)
	}
	return &duckdbSink{
		path:   c.Path,
		table:  table,
		logger: ctx.Logger,
		events: telemetry.NewComponentEvents(ctx.Logger, ctx.Key.ID()),
	}, nil
}

type duckdbSink struct {
	path   string
	table  string
	logger *zap.Logger
	events *telemetry.ComponentEvents
}

func (s *duckdbSink) Run(ctx context.Context, in <-chan event.Batch) error {
	db, err := sql.Open("duckdb", s.path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "opening duckdb")
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			ingested_at TIMESTAMP,
			source VARCHAR,
			kind VARCHAR,
			payload VARCHAR
		)
	`)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "creating duckdb table")
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO `+s.table+` (ingested_at, source, kind, payload)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "preparing insert")
	}
	defer stmt.Close()

	s.logger.Info("duckdb sink ready",
		zap.String("path", s.path),
		zap.String("table", s.table))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.insert(ctx, db, stmt, batch); err != nil {
				batch.Finalize(acks.StatusErrored)
				return err
			}
			batch.Finalize(acks.StatusDelivered)
			s.events.EventsSent(batch.Len())
		}
	}
}

// insert writes the whole batch in one transaction so the acknowledgement
// matches what is actually queryable.
func (s *duckdbSink) insert(ctx context.Context, db *sql.DB, stmt *sql.Stmt, batch event.Batch) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDeliveryFailed, "starting transaction")
	}
	txStmt := tx.StmtContext(ctx, stmt)

	for _, e := range batch.Events() {
		payload, err := json.Marshal(payloadOf(e))
		if err != nil {
			s.events.EventDiscarded("encode_failed", err)
			continue
		}
		ingested := e.Meta().IngestedAt
		if ingested.IsZero() {
			ingested = time.Now().UTC()
		}
		if _, err := txStmt.ExecContext(ctx, ingested, e.Meta().Source, e.Kind().String(), string(payload)); err != nil {
			tx.Rollback()
			return errors.Wrap(err, errors.CodeDeliveryFailed, "inserting event")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDeliveryFailed, "committing batch")
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
