// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/segmenttrace/dd-trace-go/internal/log"
)

// tracer is the engine behind the package-level Start/StartSpan/Stop API: it
// owns id generation, sampling, propagation and the collector that ships
// finished trace chunks to the agent.
type tracer struct {
	config *config

	idGenerator IDGenerator
	clock       Clock

	propagator  Propagator
	sampler     *TraceSampler
	spanSampler *SpanSampler

	scheduler *eventScheduler
	collector *Collector
}

var activeTracer atomic.Pointer[tracer]

// Start initializes the global tracer. Calling Start twice without an
// intervening Stop replaces the previous tracer, stopping it first.
func Start(opts ...StartOption) {
	cfg := newConfig(opts...)
	t := newTracer(cfg)
	if old := activeTracer.Swap(t); old != nil {
		old.stop()
	}
	if cfg.logStartup {
		logStartup(cfg)
	}
}

// Stop flushes and shuts down the global tracer. Safe to call when no
// tracer was started.
func Stop() {
	if t := activeTracer.Swap(nil); t != nil {
		t.stop()
	}
}

func newTracer(cfg *config) *tracer {
	if cfg.debug {
		log.SetLevel(log.LevelDebug)
	}
	sampler := NewTraceSampler(cfg.traceRules, cfg.sampleRate, cfg.maxTracesPerSecond)
	spanSampler := NewSpanSampler(cfg.spanRules)
	transport := NewHTTPTransport(AgentAddr(cfg.agentHost, cfg.agentPort), cfg.httpTimeout)
	collector := NewCollector(transport, sampler, cfg.flushInterval)
	sched := newEventScheduler(nil)
	collector.Start(sched)

	t := &tracer{
		config:      cfg,
		idGenerator: NewIDGenerator(cfg.enable128Bit),
		clock:       SystemClock,
		propagator:  NewPropagatorDirectional(cfg.extractPropagationStyles, cfg.injectPropagationStyles),
		sampler:     sampler,
		spanSampler: spanSampler,
		scheduler:   sched,
		collector:   collector,
	}
	return t
}

func (t *tracer) stop() {
	t.collector.Stop(2 * time.Second)
	t.scheduler.Stop()
}

// sampleTrace realizes the sampling decision for a trace's root span.
func (t *tracer) sampleTrace(root *Span) {
	if t.sampler != nil {
		t.sampler.Sample(root)
	}
}

// submitChunk hands a fully- (or, under partial flush, partially-) finished
// trace chunk to the collector, first applying single-span sampling to any
// chunk whose trace was not kept.
func (t *tracer) submitChunk(chunk []*Span) {
	if kept, ok := chunkKeptPriority(chunk); ok && !kept && t.spanSampler != nil {
		filtered := make([]*Span, 0, len(chunk))
		for _, sp := range chunk {
			if t.spanSampler.Sample(sp) {
				filtered = append(filtered, sp)
			}
		}
		chunk = filtered
	}
	if len(chunk) == 0 {
		return
	}
	t.collector.Push(chunk)
}

func chunkKeptPriority(chunk []*Span) (kept bool, ok bool) {
	for _, sp := range chunk {
		if sp.context == nil {
			continue
		}
		if p, has := sp.context.SamplingPriority(); has {
			return p > 0, true
		}
	}
	return false, false
}

// newSpan creates the id, context and bookkeeping shared by every span.
func (t *tracer) newSpan(operationName string, cfg *startSpanConfig) *Span {
	id := cfg.spanID
	if id == 0 {
		id = t.idGenerator.SpanID()
	}
	start := t.clock.Wall()
	if !cfg.startTime.IsZero() {
		start = cfg.startTime
	}
	sp := &Span{
		name:      operationName,
		service:   t.config.serviceName,
		resource:  operationName,
		start:     start.UnixNano(),
		startTick: t.clock.Tick(),
		spanID:    id,
	}
	if cfg.service != "" {
		sp.service = cfg.service
	}
	if cfg.resource != "" {
		sp.resource = cfg.resource
	}
	sp.spanType = cfg.spanType
	sp.noDebugStack = cfg.noDebugStack

	var parentCtx *SpanContext
	if cfg.parent != nil {
		parentCtx = cfg.parent
		sp.parentID = cfg.parent.spanID
		if cfg.parent.isRemote {
			sp.spanLinks = cfg.parent.SpanLinks()
		}
	}
	newSpanContext(t, sp, parentCtx)

	if parentCtx == nil || parentCtx.isRemote {
		sp.mu.Lock()
		for k, v := range t.config.globalTags {
			sp.setMeta(k, v)
		}
		if t.config.env != "" {
			sp.setMeta("env", t.config.env)
		}
		if t.config.version != "" {
			sp.setMeta("version", t.config.version)
		}
		if t.config.reportHostname {
			if h, err := os.Hostname(); err == nil {
				sp.setMeta(keyHostname, h)
			}
		}
		sp.mu.Unlock()
	}
	for k, v := range cfg.tags {
		sp.SetTag(k, v)
	}
	return sp
}

// StartSpan starts a new span. With no ChildOf option it becomes the local
// root of a new trace; otherwise it joins its parent's trace segment.
func StartSpan(operationName string, opts ...StartSpanOption) *Span {
	t := activeTracer.Load()
	if t == nil {
		t = newTracer(newConfig())
		// An unstarted tracer still produces usable, locally consistent
		// spans; it just never flushes them anywhere.
		t.collector.Stop(0)
		t.scheduler.Stop()
	}
	cfg := &startSpanConfig{startTime: time.Time{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return t.newSpan(operationName, cfg)
}

// Extract reads a SpanContext out of carrier using the active tracer's
// configured propagation styles.
func Extract(carrier interface{}) (*SpanContext, error) {
	t := activeTracer.Load()
	if t == nil {
		return nil, newError(CodeOther, "tracer not started")
	}
	return t.propagator.Extract(carrier)
}

// Inject writes ctx into carrier using the active tracer's configured
// propagation styles.
func Inject(ctx *SpanContext, carrier interface{}) error {
	t := activeTracer.Load()
	if t == nil {
		return newError(CodeOther, "tracer not started")
	}
	return t.propagator.Inject(ctx, carrier)
}
