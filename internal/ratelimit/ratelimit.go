// Package ratelimit provides a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by all callers of one upstream.
type Limiter struct {
	limiter *rate.Limiter
}

// NewPerSecond creates a limiter allowing rps requests per second with the
// given burst. rps <= 0 disables limiting.
func NewPerSecond(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now, consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the configured rate in requests per second.
func (l *Limiter) Limit() float64 {
	return float64(l.limiter.Limit())
}
