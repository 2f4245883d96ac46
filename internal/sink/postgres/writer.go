package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"energy-queue/internal/domain"
	"energy-queue/internal/metrics"
)

const insertRecordSQL = `
	INSERT INTO energy_cost_log (message_timestamp, consumption_mw, estimated_cost)
	VALUES ($1, $2, $3)
`

// execer is the part of *pgxpool.Pool the writer uses.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Writer implements sink.Writer on the energy_cost_log table.
type Writer struct {
	exec  execer
	close func()
}

// NewWriter creates a new PostgreSQL-backed log writer. Close releases the pool.
func NewWriter(db *DB) *Writer {
	return &Writer{exec: db.pool, close: db.Close}
}

// Append inserts one record. The insert is committed when Exec returns.
func (w *Writer) Append(ctx context.Context, rec domain.LogRecord) error {
	start := time.Now()
	tag, err := w.exec.Exec(ctx, insertRecordSQL, rec.Timestamp, rec.Consumption, rec.Cost)
	if err == nil && tag.RowsAffected() != 1 {
		err = fmt.Errorf("inserted %d rows, want 1", tag.RowsAffected())
	}
	metrics.ObserveStorage("postgres", "append", time.Since(start).Seconds(), err)

	if err != nil {
		return fmt.Errorf("failed to insert log record: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (w *Writer) Close() error {
	if w.close != nil {
		w.close()
	}
	return nil
}
