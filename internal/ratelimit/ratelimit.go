// Package ratelimit provides the async token bucket used independently per
// WS subscription stream and per private REST endpoint (spec §4.4).
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with burst=1: Acquire suspends until exactly
// one token is available. Cancelling the context releases no partial
// reservation.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a Limiter that refills at ratePerSec tokens/second with
// burst=1, per spec §4.4 ("fixed refill rate and burst = 1").
func New(ratePerSec float64) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(ratePerSec), 1)}
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// SetRate changes the refill rate in place, used when a venue's documented
// limit differs per endpoint family (e.g. Binance subscribe vs order
// placement).
func (l *Limiter) SetRate(ratePerSec float64) {
	l.lim.SetLimit(rate.Limit(ratePerSec))
}
