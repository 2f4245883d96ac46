// Package store defines the listener's record of processed messages.
// A message redelivered after a crash between its log append and its ack
// is recognised here and acknowledged without a second append.
package store

import (
	"context"
)

// DedupStore remembers message ids that have been written to the log.
// All methods must be safe for concurrent use.
type DedupStore interface {
	// Seen reports whether id was marked processed and has not expired.
	Seen(ctx context.Context, id string) (bool, error)

	// MarkProcessed records id as processed.
	MarkProcessed(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// Nop is a DedupStore that never remembers anything.
type Nop struct{}

// Seen always returns false.
func (Nop) Seen(ctx context.Context, id string) (bool, error) { return false, nil }

// MarkProcessed does nothing.
func (Nop) MarkProcessed(ctx context.Context, id string) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
