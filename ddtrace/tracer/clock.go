// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"math/rand/v2"
	"time"
)

// Clock abstracts time so tests can control span timestamps and durations
// deterministically. Wall is used for timestamps written to the wire; Tick is
// a monotonic reading used only to compute durations, so it never jumps
// backward even if the system clock is adjusted mid-trace.
type Clock interface {
	Wall() time.Time
	Tick() time.Duration
}

type systemClock struct{}

func (systemClock) Wall() time.Time     { return time.Now() }
func (systemClock) Tick() time.Duration { return time.Duration(monotonicNow()) }
func monotonicNow() int64               { return int64(time.Since(clockEpoch)) }

// clockEpoch anchors monotonicNow; time.Since uses the monotonic reading
// carried by a time.Time from time.Now, so the difference ignores wall-clock
// adjustments.
var clockEpoch = time.Now()

// SystemClock is the default Clock, backed by the host's wall and monotonic
// clocks.
var SystemClock Clock = systemClock{}

// IDGenerator yields span ids and the upper 64 bits of new 128-bit trace ids.
type IDGenerator interface {
	// SpanID returns a uniformly random non-zero 64-bit span identifier.
	SpanID() uint64
	// TraceIDUpper returns the upper 64 bits of a newly created trace id, or
	// 0 if 128-bit trace ids are disabled.
	TraceIDUpper(createdAt time.Time) uint64
}

type randomIDGenerator struct {
	enable128Bit bool
}

// NewIDGenerator returns the default IDGenerator. When enable128Bit is true,
// new traces get an upper 64 bits whose top 32 bits encode the Unix-seconds
// timestamp of trace creation (the bottom 32 bits of the upper half and the
// full lower half remain random), matching the supplemented behavior
// documented in SPEC_FULL.md §12.
func NewIDGenerator(enable128Bit bool) IDGenerator {
	return randomIDGenerator{enable128Bit: enable128Bit}
}

func (g randomIDGenerator) SpanID() uint64 {
	for {
		if id := rand.Uint64(); id != 0 {
			return id
		}
	}
}

func (g randomIDGenerator) TraceIDUpper(createdAt time.Time) uint64 {
	if !g.enable128Bit {
		return 0
	}
	sec := uint64(createdAt.Unix()) & 0xffffffff
	lower32 := uint64(rand.Uint32())
	return (sec << 32) | lower32
}
