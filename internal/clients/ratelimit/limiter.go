// Package ratelimit provides client-side rate limiting for upstream API
// clients (C2), enforcing a minimum inter-request delay per upstream.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate with the construction shape the
// clients need: a minimum delay between requests, expressed directly
// instead of as a requests-per-minute figure.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter that permits one request every minDelay, with no
// burst beyond a single token — each client enforces the spec's delay
// independently of how many goroutines are calling it.
func New(minDelay time.Duration) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// Wait blocks until the next request is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Known per-upstream delays (§4.2).
const (
	PriceDelay           = 2 * time.Second // at most 30/min
	WeatherObsDelay      = 3 * time.Second // at most 20/min
	WeatherRealtimeDelay = 1 * time.Second // at most 60/min
)
