// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"sync"
	"time"
)

// Limiter is a token bucket rate gate with introspectable effective rate,
// used to cap the volume of kept traces per second regardless of how the
// sampling rate decision was reached.
//
// This is hand-rolled on a mutex rather than wired to golang.org/x/time/rate
// because that package does not expose the accepted/total sliding-window
// ratio this module needs to report as `_dd.limit_psr`; see DESIGN.md.
type Limiter struct {
	mu           sync.Mutex
	maxPerSecond float64
	tokens       float64
	lastRefill   time.Time

	// window tracks accepted/total counts over the trailing ~1s for
	// EffectiveRate.
	windowStart time.Time
	accepted    int64
	total       int64
}

// NewLimiter returns a Limiter allowing up to maxPerSecond tokens per second,
// with a burst capacity equal to maxPerSecond.
func NewLimiter(maxPerSecond float64) *Limiter {
	now := time.Now()
	return &Limiter{
		maxPerSecond: maxPerSecond,
		tokens:       maxPerSecond,
		lastRefill:   now,
		windowStart:  now,
	}
}

// Allow consumes one token if available at time now, returning whether the
// call was allowed and the effective accept rate over the trailing window.
func (l *Limiter) Allow(now time.Time) (allowed bool, effectiveRate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(now)
	if now.Sub(l.windowStart) >= time.Second {
		l.windowStart = now
		l.accepted = 0
		l.total = 0
	}
	l.total++
	if l.tokens >= 1 {
		l.tokens--
		l.accepted++
		allowed = true
	}
	return allowed, l.rate()
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.maxPerSecond
	if l.tokens > l.maxPerSecond {
		l.tokens = l.maxPerSecond
	}
	l.lastRefill = now
}

func (l *Limiter) rate() float64 {
	if l.total == 0 {
		return 1
	}
	return float64(l.accepted) / float64(l.total)
}

// EffectiveRate returns the current accepted/total ratio without consuming a
// token.
func (l *Limiter) EffectiveRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate()
}
