// Package pacing spaces out calls to rate-limited upstream providers.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer admits one call per interval. The first call is admitted immediately.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a Pacer. A non-positive interval admits every call immediately.
func New(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Wait blocks until the next call is admitted or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the configured spacing between calls.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
