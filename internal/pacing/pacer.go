// Package pacing spaces out published rows.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer allows one row per interval. The first row never waits.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a pacer. An interval of zero disables pacing.
func New(interval time.Duration, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Pacer{
		limiter:  rate.NewLimiter(limit, burst),
		interval: interval,
	}
}

// Wait blocks until the next row may be published or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the configured interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
