// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDGeneratorSpanIDNeverZero(t *testing.T) {
	g := NewIDGenerator(false)
	for i := 0; i < 1000; i++ {
		assert.NotZero(t, g.SpanID(), "SpanID() must never return 0")
	}
}

func TestIDGeneratorTraceIDUpperDisabled(t *testing.T) {
	g := NewIDGenerator(false)
	assert.Zero(t, g.TraceIDUpper(time.Now()), "with 128-bit ids disabled, TraceIDUpper should return 0")
}

func TestIDGeneratorTraceIDUpperEncodesTimestamp(t *testing.T) {
	g := NewIDGenerator(true)
	now := time.Unix(1700000000, 0)
	u := g.TraceIDUpper(now)
	sec := u >> 32
	assert.Equal(t, uint64(now.Unix())&0xffffffff, sec)
}

func TestSystemClockMonotonic(t *testing.T) {
	a := SystemClock.Tick()
	b := SystemClock.Tick()
	assert.False(t, b < a, "Tick() should never go backward")
}

// controlledClock lets a test drive Wall and Tick independently, to prove
// that span duration tracks the monotonic tick rather than the wall clock.
type controlledClock struct {
	wall time.Time
	tick time.Duration
}

func (c *controlledClock) Wall() time.Time     { return c.wall }
func (c *controlledClock) Tick() time.Duration { return c.tick }

func TestSpanDurationUsesMonotonicTickNotWallClock(t *testing.T) {
	tr := newTestTracer(t)
	clk := &controlledClock{wall: time.Unix(1000, 0), tick: 0}
	tr.clock = clk

	sp := tr.newSpan("op", &startSpanConfig{})

	// Jump the wall clock backward (as if NTP stepped it) while the
	// monotonic tick advances normally.
	clk.wall = time.Unix(500, 0)
	clk.tick = 5 * time.Second

	sp.Finish()

	if sp.duration != int64(5*time.Second) {
		t.Errorf("duration = %d, want %d (the monotonic tick delta, unaffected by the wall-clock step backward)",
			sp.duration, int64(5*time.Second))
	}
}
