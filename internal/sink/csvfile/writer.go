// Package csvfile writes log records to an append-only CSV file.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"energy-queue/internal/domain"
	"energy-queue/internal/metrics"
)

// Lines written at the top of a new log file.
var (
	NoteLine   = []string{"Note: Cost of energy is $1 for every 1500 MW used"}
	HeaderLine = []string{"Timestamp", "Energy Consumption (MW)", "Estimated Energy Cost ($)"}
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("log file is closed")

// logFile is the part of *os.File the writer uses.
type logFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Close() error
}

// Writer implements sink.Writer on a local CSV file.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   logFile
	size   int64
	closed bool
}

// Open opens the log file for appending. A file that does not exist yet is
// created with the note and header lines.
func Open(path string) (*Writer, error) {
	path = filepath.Clean(path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_EXCL, 0o644)
	created := err == nil
	if errors.Is(err, fs.ErrExist) {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	w := &Writer{
		path: path,
		file: f,
		size: info.Size(),
	}

	if created {
		if err := w.writeAndSync(NoteLine, HeaderLine); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to initialize log file: %w", err)
		}
	}
	return w, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one row and syncs the file before returning.
func (w *Writer) Append(ctx context.Context, rec domain.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	start := time.Now()
	err := w.writeAndSync(rec.Fields())
	metrics.ObserveStorage("csvfile", "append", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("failed to append log record: %w", err)
	}
	return nil
}

// writeAndSync encodes rows into a fresh buffer and writes them with a single
// call, so a failed write leaves no state behind for the next one. A row that
// was not both written and synced is cut back off the file.
func (w *Writer) writeAndSync(rows ...[]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}

	n, err := w.file.Write(buf.Bytes())
	if err == nil {
		err = w.file.Sync()
	}
	if err != nil {
		if n > 0 {
			if terr := w.file.Truncate(w.size); terr != nil {
				return errors.Join(err, fmt.Errorf("failed to truncate partial row: %w", terr))
			}
		}
		return err
	}
	w.size += int64(n)
	return nil
}

// Close closes the file. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
