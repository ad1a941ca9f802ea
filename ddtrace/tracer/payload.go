// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"io"
	"sync"
)

// spanList is a finished trace chunk: the list of spans flushed together,
// either because the whole trace finished or because partial flush cut a
// long-running trace into pieces.
type spanList []*Span

// payloadStats summarizes a payload's current size for logging and for the
// collector's flush-trigger heuristics.
type payloadStats struct {
	size      int
	itemCount int
}

// payload accumulates spanList chunks as msgpack-encoded array elements
// that can be streamed out via io.Reader without re-encoding everything
// already pushed; see payloadV04 for the wire-format details.
type payload interface {
	io.Reader

	push(t spanList) (payloadStats, error)
	itemCount() int
	size() int
	reset()
	clear()
}

// https://github.com/msgpack/msgpack/blob/master/spec.md#array-format-family
const (
	msgpackArrayFix byte = 0x90 // up to 15 items
	msgpackArray16  byte = 0xdc // up to 2^16-1 items, 2-byte size follows
	msgpackArray32  byte = 0xdd // up to 2^32-1 items, 4-byte size follows
)

// newPayload returns a payload ready to accept spanList pushes.
func newPayload() payload {
	return &safePayload{p: newPayloadV04()}
}

// safePayload wraps a payload with a mutex so the collector's flush
// goroutine and the event-scheduler-driven periodic flush never race.
type safePayload struct {
	mu sync.Mutex
	p  *payloadV04
}

func (s *safePayload) push(t spanList) (payloadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.push(t)
}

func (s *safePayload) itemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.itemCount()
}

func (s *safePayload) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.size()
}

func (s *safePayload) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.reset()
}

func (s *safePayload) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.clear()
}

func (s *safePayload) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Read(b)
}
