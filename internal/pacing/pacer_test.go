package pacing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_FirstWaitIsImmediate(t *testing.T) {
	p := New(time.Hour, 1)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait() took %v", elapsed)
	}
}

func TestPacer_SpacesSubsequentWaits(t *testing.T) {
	p := New(50*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// Two intervals between three rows.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three waits took %v, want at least ~100ms", elapsed)
	}
}

func TestPacer_ZeroIntervalDisablesPacing(t *testing.T) {
	p := New(0, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unpaced waits took %v", elapsed)
	}
}

func TestPacer_WaitHonoursCancellation(t *testing.T) {
	p := New(time.Hour, 1)
	_ = p.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() on canceled ctx = %v, want context.Canceled", err)
	}
}
