// Package sink defines where the listener writes its log records.
package sink

import (
	"context"
	"errors"
	"fmt"

	"energy-queue/internal/domain"
)

// Writer appends log records to durable storage. Append must not return
// before the record is durable, because the listener acknowledges the
// message as soon as Append returns nil.
type Writer interface {
	Append(ctx context.Context, rec domain.LogRecord) error
	Close() error
}

// Multi fans a record out to several writers.
type Multi struct {
	writers []Writer
}

// NewMulti creates a writer that appends to every given writer in order.
func NewMulti(writers ...Writer) *Multi {
	return &Multi{writers: writers}
}

// Append writes to each writer in order and stops at the first failure.
// The message is then redelivered, so writers earlier in the list may see
// the same record twice.
func (m *Multi) Append(ctx context.Context, rec domain.LogRecord) error {
	for i, w := range m.writers {
		if err := w.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append to sink %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer and returns all close errors joined.
func (m *Multi) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
