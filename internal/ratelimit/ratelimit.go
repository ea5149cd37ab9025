// Package ratelimit throttles publishes per topic. It is grounded on the
// teacher pack's sibling rate-limiter project, generalized from per-client
// HTTP throttling to per-topic publish throttling and rebuilt directly on
// golang.org/x/time/rate instead of a hand-rolled token bucket.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Result carries a rate limiting decision and enough metadata for a caller
// to report or retry intelligently, mirroring the decision shape the
// teacher's Redis-backed gateway token bucket returns.
type Result struct {
	Allowed    bool
	Remaining  float64
	Burst      int
	RetryAfter time.Duration
}

// Limiter gates publishes to a single topic. A zero-value events-per-second
// rate means unthrottled: Allow always succeeds and Wait always returns
// immediately.
type Limiter struct {
	limiter *rate.Limiter
}

// New builds a Limiter from an events-per-second rate and a burst size. A
// non-positive eventsPerSecond disables throttling entirely.
func New(eventsPerSecond float64, burst int) *Limiter {
	if eventsPerSecond <= 0 {
		return &Limiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Allow is the non-blocking gate Send consults before calling the
// publisher. It must run before any sequence is reserved: throttling must
// never consume a w_head slot.
func (l *Limiter) Allow() bool {
	if l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done. This is an
// explicit backpressure policy an adapter opts into; the core never calls
// it.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// AllowResult is Allow plus the metadata a CLI or façade health report
// wants to surface, for callers that need more than a bool.
func (l *Limiter) AllowResult() Result {
	if l.limiter == nil {
		return Result{Allowed: true}
	}
	now := time.Now()
	reservation := l.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Allowed: false, Burst: l.limiter.Burst()}
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.Cancel()
		return Result{Allowed: false, Burst: l.limiter.Burst(), RetryAfter: delay}
	}
	return Result{Allowed: true, Burst: l.limiter.Burst(), Remaining: float64(l.limiter.Tokens())}
}
