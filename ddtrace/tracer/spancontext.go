// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"sync"
	"sync/atomic"

	"github.com/segmenttrace/dd-trace-go/internal/log"
	"github.com/segmenttrace/dd-trace-go/internal/samplernames"
)

// SpanContext identifies a span's position within its trace and carries the
// state that must survive propagation across process boundaries: the trace
// and span ids, the sampling priority/origin, and baggage.
type SpanContext struct {
	traceID TraceID
	spanID  uint64

	trace *trace
	span  *Span

	errorCount atomic.Int32

	mu         sync.RWMutex
	baggage    map[string]string
	hasBaggage atomic.Bool
	origin     string
	spanLinks  []SpanLink

	isRemote bool
}

// TraceID returns the 32-hex-digit representation of the full 128-bit trace
// id.
func (c *SpanContext) TraceID() string {
	if c == nil {
		return ""
	}
	return c.traceID.HexEncoded()
}

// TraceIDBytes returns the raw 128-bit trace id.
func (c *SpanContext) TraceIDBytes() TraceID { return c.traceID }

// TraceIDLower64 returns the legacy 64-bit Datadog trace id.
func (c *SpanContext) TraceIDLower64() uint64 { return c.traceID.Lower() }

// SpanID returns the id of the span that owns this context.
func (c *SpanContext) SpanID() uint64 { return c.spanID }

// IsRemote reports whether this context was extracted from an incoming
// carrier rather than created locally.
func (c *SpanContext) IsRemote() bool { return c.isRemote }

// Origin returns the `_dd.origin` value, or "" if unset.
func (c *SpanContext) Origin() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.origin
}

// SpanLinks returns a defensive copy of the span links recorded on this
// context (e.g. from a conflicting cross-style extraction).
func (c *SpanContext) SpanLinks() []SpanLink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SpanLink, len(c.spanLinks))
	copy(out, c.spanLinks)
	return out
}

func (c *SpanContext) addSpanLink(l SpanLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spanLinks = append(c.spanLinks, l)
}

// SetBaggageItem attaches a key/value pair propagated to descendant spans and
// across process boundaries.
func (c *SpanContext) SetBaggageItem(key, val string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baggage == nil {
		c.baggage = make(map[string]string, 1)
	}
	c.baggage[key] = val
	c.hasBaggage.Store(true)
}

// BaggageItem returns the value for key, or "" if absent.
func (c *SpanContext) BaggageItem(key string) string {
	if !c.hasBaggage.Load() {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baggage[key]
}

// ForeachBaggageItem calls fn for every baggage item; iteration stops early
// if fn returns false.
func (c *SpanContext) ForeachBaggageItem(fn func(k, v string) bool) {
	if !c.hasBaggage.Load() {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.baggage {
		if !fn(k, v) {
			return
		}
	}
}

// SamplingPriority returns the trace-level sampling priority, if one has
// been decided yet.
func (c *SpanContext) SamplingPriority() (p int, ok bool) {
	return c.trace.samplingPriority()
}

func (c *SpanContext) setSamplingPriority(p int, sampler samplernames.SamplerName) {
	c.trace.setSamplingPriority(p, sampler)
}

func (c *SpanContext) forceSetSamplingPriority(p int, sampler samplernames.SamplerName) {
	c.trace.setSamplingPriority(p, sampler)
}

func (c *SpanContext) finish() {
	c.trace.finishedOne(c.span)
}

// newSpanContext builds the context for a newly created span. If parent is a
// local span's context, the new span joins the parent's trace; if parent was
// extracted from a carrier, the new span becomes the root of a fresh trace
// segment that inherits the extracted priority and propagating tags;
// otherwise a fresh trace segment is created, optionally generating a 128-bit
// trace id (see SPEC_FULL.md §12).
func newSpanContext(tr *tracer, span *Span, parent *SpanContext) *SpanContext {
	c := &SpanContext{spanID: span.spanID}
	if parent != nil {
		c.trace = parent.trace
		if parent.isRemote {
			c.trace = newTrace(tr)
			if pt := parent.trace; pt != nil {
				pt.mu.RLock()
				if pt.priority != nil {
					p := *pt.priority
					c.trace.priority = &p
				}
				for k, v := range pt.propagatingTags {
					c.trace.setPropagatingTagLocked(k, v)
				}
				pt.mu.RUnlock()
			}
		}
		c.traceID = parent.traceID
		parent.mu.RLock()
		c.origin = parent.origin
		if parent.hasBaggage.Load() {
			c.baggage = make(map[string]string, len(parent.baggage))
			for k, v := range parent.baggage {
				c.baggage[k] = v
			}
			c.hasBaggage.Store(true)
		}
		parent.mu.RUnlock()
		c.errorCount.Store(parent.errorCount.Load())
	} else {
		c.trace = newTrace(tr)
		upper := tr.idGenerator.TraceIDUpper(tr.clock.Wall())
		c.traceID = TraceID{}.SetLower(span.spanID).SetUpper(upper)
	}
	c.span = span
	span.context = c
	if c.trace.root == nil {
		c.trace.root = span
	}
	c.trace.push(span)
	return c
}

// samplingDecision tracks whether the trace's fate has been locked in,
// mirroring the CAS-guarded enum the teacher uses to ensure only the first
// decision sticks.
type samplingDecision uint32

const (
	decisionNone samplingDecision = iota
	decisionDrop
	decisionKeep
)

const (
	traceStartSize = 10
	traceMaxSize   = int(1e5)
)

// trace is the TraceSegment: the set of spans produced within one process for
// one trace, along with the sampling decision and propagating tags shared by
// all of them.
type trace struct {
	mu sync.RWMutex

	tracer *tracer

	spans           []*Span
	tags            map[string]string
	propagatingTags map[string]string

	finished int
	full     bool

	priority *float64
	locked   bool

	decision samplingDecision

	root *Span
}

func newTrace(tr *tracer) *trace {
	return &trace{
		tracer: tr,
		spans:  make([]*Span, 0, traceStartSize),
	}
}

func (t *trace) samplingPriority() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.priority == nil {
		return 0, false
	}
	return int(*t.priority), true
}

func (t *trace) setSamplingPriority(p int, sampler samplernames.SamplerName) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setSamplingPriorityLocked(p, sampler)
}

func (t *trace) setSamplingPriorityLocked(p int, sampler samplernames.SamplerName) bool {
	if t.locked {
		log.Debug("sampling priority change to %d ignored: trace already finalized", p)
		return false
	}
	updated := t.priority == nil || int(*t.priority) != p
	f := float64(p)
	t.priority = &f
	if p > 0 && sampler != samplernames.Unknown {
		if dm, ok := samplernames.DecisionMaker(sampler); ok {
			if t.propagatingTags[keyDecisionMaker] != dm {
				t.setPropagatingTagLocked(keyDecisionMaker, dm)
				updated = true
			}
		}
	} else if p <= 0 {
		if _, ok := t.propagatingTags[keyDecisionMaker]; ok {
			delete(t.propagatingTags, keyDecisionMaker)
			updated = true
		}
	}
	return updated
}

func (t *trace) setPropagatingTagLocked(k, v string) {
	if t.propagatingTags == nil {
		t.propagatingTags = make(map[string]string, 1)
	}
	t.propagatingTags[k] = v
}

func (t *trace) propagatingTag(k string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.propagatingTags[k]
}

func (t *trace) keep() {
	t.casDecision(decisionKeep)
}

func (t *trace) drop() {
	t.casDecision(decisionDrop)
}

func (t *trace) casDecision(d samplingDecision) {
	for {
		cur := samplingDecision(atomicLoadDecision(&t.decision))
		if cur != decisionNone {
			return
		}
		if atomicCASDecision(&t.decision, decisionNone, d) {
			return
		}
	}
}

// push adds a newly created span to the segment. The push that reaches the
// 100,000-span overflow cap (SPEC_FULL.md §12) marks the segment full, logs an
// error and discards every buffered span; later pushes are dropped silently.
func (t *trace) push(sp *Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		return
	}
	if len(t.spans) >= traceMaxSize {
		t.full = true
		t.spans = nil
		log.Error("trace buffer full (%d spans), dropping segment", traceMaxSize)
		return
	}
	t.spans = append(t.spans, sp)
}

// propagateTraceTags copies the trace-level tags and propagating tags (plus
// the 128-bit trace id hex tag) onto s. Called once, when the first span in
// the buffer finishes (see SPEC_FULL.md §12 for why "first in buffer", not
// "root").
func (t *trace) propagateTraceTags(s *Span) {
	t.mu.RLock()
	tags := make(map[string]string, len(t.tags)+len(t.propagatingTags))
	for k, v := range t.tags {
		tags[k] = v
	}
	for k, v := range t.propagatingTags {
		tags[k] = v
	}
	t.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range tags {
		s.setMeta(k, v)
	}
	if s.context.traceID.HasUpper() {
		s.setMeta(keyTraceID128, s.context.traceID.UpperHex())
	}
}

// finishedOne runs the finalization algorithm described in SPEC_FULL.md §4.7
// and §12: records the finish, realizes the trace sampling decision exactly
// once (when the root finishes), propagates trace tags once (when the first
// buffered span finishes), and hands off a fully-finished (or, under partial
// flush, fully-finished-so-far) chunk to the collector.
func (t *trace) finishedOne(sp *Span) {
	t.mu.Lock()
	if t.full {
		t.mu.Unlock()
		return
	}
	t.finished++
	isRoot := sp == t.root
	isFirst := len(t.spans) > 0 && sp == t.spans[0]
	t.mu.Unlock()

	if isRoot {
		t.finalizeRoot(sp)
	}
	if isFirst {
		t.propagateTraceTags(sp)
	}

	t.mu.Lock()
	var toFlush []*Span
	if t.finished >= len(t.spans) && len(t.spans) > 0 {
		toFlush = t.spans
		t.spans = nil
		t.finished = 0
	} else if t.tracer != nil && t.tracer.config.partialFlushEnabled && t.finished >= t.tracer.config.partialFlushMinSpans {
		finishedSpans := make([]*Span, 0, t.finished)
		remaining := make([]*Span, 0, len(t.spans)-t.finished)
		for _, s2 := range t.spans {
			s2.mu.RLock()
			fin := s2.finished
			s2.mu.RUnlock()
			if fin {
				finishedSpans = append(finishedSpans, s2)
			} else {
				remaining = append(remaining, s2)
			}
		}
		t.spans = remaining
		t.finished = 0
		toFlush = finishedSpans
	}
	tr := t.tracer
	t.mu.Unlock()

	if len(toFlush) > 0 && tr != nil {
		tr.submitChunk(toFlush)
	}
}

// finalizeRoot realizes the trace sampling decision and writes its priority
// tag onto the root span. Called without t.mu held, since sampling may need
// to take it.
func (t *trace) finalizeRoot(root *Span) {
	if t.tracer != nil {
		t.tracer.sampleTrace(root)
	}
	if p, ok := t.samplingPriority(); ok {
		root.mu.Lock()
		root.setMetric(keySamplingPriority, float64(p))
		root.mu.Unlock()
	}
	t.mu.Lock()
	t.locked = true
	t.mu.Unlock()
}

func atomicLoadDecision(d *samplingDecision) samplingDecision {
	return samplingDecision(atomic.LoadUint32((*uint32)(d)))
}

func atomicCASDecision(d *samplingDecision, old, new samplingDecision) bool {
	return atomic.CompareAndSwapUint32((*uint32)(d), uint32(old), uint32(new))
}
