// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/segmenttrace/dd-trace-go/ddtrace/ext"
	"github.com/segmenttrace/dd-trace-go/internal/log"
	"github.com/segmenttrace/dd-trace-go/internal/samplernames"
)

// SpanLink references another span, used to record cross-process links (for
// example, a discarded trace id from a conflicting propagation style; see
// SPEC_FULL.md §12).
type SpanLink struct {
	TraceID    TraceID           `msg:"trace_id"`
	SpanID     uint64            `msg:"span_id"`
	Attributes map[string]string `msg:"attributes,omitempty"`
}

// Span represents a single timed, tagged unit of work. Every mutator is safe
// to call concurrently with Finish; mutators silently no-op once the span has
// finished, since spans are read without locking once handed to the
// collector (see DESIGN.md spancontext.go entry).
type Span struct {
	mu sync.RWMutex

	name      string
	service   string
	resource  string
	spanType  string
	start     int64         // wall-clock ns since epoch, written to the wire
	startTick time.Duration // monotonic tick at span creation, used for duration
	duration  int64         // ns

	meta    map[string]string
	metrics map[string]float64

	spanID   uint64
	parentID uint64
	error    int32

	spanLinks []SpanLink

	finished     bool
	noDebugStack bool
	integration  string

	context *SpanContext
}

// Context returns the SpanContext identifying this span's position in its
// trace. The returned value stays valid after Finish.
func (s *Span) Context() *SpanContext {
	if s == nil {
		return nil
	}
	return s.context
}

// SpanID returns the span's own 64-bit identifier.
func (s *Span) SpanID() uint64 {
	if s == nil {
		return 0
	}
	return s.spanID
}

// StartChild starts a new span that is a child of s, sharing its trace
// segment.
func (s *Span) StartChild(operationName string, opts ...StartSpanOption) *Span {
	if s == nil {
		return nil
	}
	opts = append(opts, ChildOf(s.Context()))
	return StartSpan(operationName, opts...)
}

// SetOperationName changes the span's operation name.
func (s *Span) SetOperationName(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.name = name
}

// SetTag attaches a key/value pair of metadata to the span. Booleans, errors
// and the well-known keys in package ext route to specialized handling;
// numeric values become metrics; everything else is stringified into meta.
func (s *Span) SetTag(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	switch key {
	case ext.Error:
		s.setTagError(value)
		return
	case ext.ManualKeep:
		if v, ok := value.(bool); ok && v {
			s.context.forceSetSamplingPriority(ext.PriorityUserKeep, samplernames.Manual)
		}
		return
	case ext.ManualDrop:
		if v, ok := value.(bool); ok && v {
			s.context.forceSetSamplingPriority(ext.PriorityUserReject, samplernames.Manual)
		}
		return
	case ext.SpanName:
		if v, ok := value.(string); ok {
			s.name = v
		}
		return
	case ext.ServiceName:
		if v, ok := value.(string); ok {
			s.service = v
		}
		return
	case ext.ResourceName:
		if v, ok := value.(string); ok {
			s.resource = v
		}
		return
	case ext.SpanType:
		if v, ok := value.(string); ok {
			s.spanType = v
		}
		return
	}
	switch v := value.(type) {
	case nil:
		s.setMeta(key, "")
	case bool:
		if v {
			s.setMeta(key, "true")
		} else {
			s.setMeta(key, "false")
		}
	case string:
		s.setMeta(key, v)
	case error:
		s.setMeta(key, v.Error())
	case float64:
		s.setMetric(key, v)
	case float32:
		s.setMetric(key, float64(v))
	case int:
		s.setMetric(key, float64(v))
	case int64:
		s.setMetric(key, float64(v))
	case uint64:
		s.setMetric(key, float64(v))
	case fmt.Stringer:
		s.setMeta(key, stringerSafe(v))
	default:
		if num, ok := toFloat64(value); ok {
			s.setMetric(key, num)
			return
		}
		s.setMeta(key, fmt.Sprint(value))
	}
}

// stringerSafe calls String() recovering from a panic on a nil pointer
// receiver, matching the teacher's defensive SetTag handling for
// fmt.Stringer values (see DESIGN.md span.go entry).
func stringerSafe(v fmt.Stringer) (out string) {
	defer func() {
		if r := recover(); r != nil {
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Ptr && rv.IsNil() {
				out = "<nil>"
				return
			}
			panic(r)
		}
	}()
	return v.String()
}

func toFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// setTagError implements the ext.Error tag: accepts bool, error, or nil.
func (s *Span) setTagError(value any) {
	switch v := value.(type) {
	case nil:
		s.setError(false)
	case bool:
		s.setError(v)
	case error:
		s.setError(true)
		s.setMeta(ext.ErrorMsg, v.Error())
		s.setMeta(ext.ErrorType, reflect.TypeOf(v).String())
	default:
		s.setError(true)
	}
}

func (s *Span) setError(yes bool) {
	if yes {
		if s.error == 0 {
			s.context.errorCount.Add(1)
		}
		s.error = 1
	} else {
		if s.error > 0 {
			s.context.errorCount.Add(-1)
		}
		s.error = 0
	}
}

// setMeta sets a string tag; not safe for concurrent use, call under s.mu.
func (s *Span) setMeta(key, v string) {
	if s.meta == nil {
		s.meta = make(map[string]string, 1)
	}
	delete(s.metrics, key)
	s.meta[key] = v
}

// setMetric sets a numeric tag; not safe for concurrent use, call under s.mu.
func (s *Span) setMetric(key string, v float64) {
	if s.metrics == nil {
		s.metrics = make(map[string]float64, 1)
	}
	delete(s.meta, key)
	s.metrics[key] = v
}

// AddLink appends a SpanLink to the span.
func (s *Span) AddLink(link SpanLink) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.spanLinks = append(s.spanLinks, link)
}

// SetUser associates user identity information with the trace's root span.
func (s *Span) SetUser(id string) {
	if s == nil {
		return
	}
	root := s.Root()
	if root == nil {
		return
	}
	root.mu.Lock()
	defer root.mu.Unlock()
	if root.finished {
		return
	}
	root.setMeta("usr.id", id)
}

// Root returns the local root span of s's trace segment.
func (s *Span) Root() *Span {
	if s == nil || s.context == nil || s.context.trace == nil {
		return nil
	}
	return s.context.trace.root
}

// FinishOption customizes a call to Finish.
type FinishOption func(*finishConfig)

type finishConfig struct {
	finishTime time.Time
	explicit   bool
	err        error
}

// FinishTime overrides the span's end time, taking precedence over the
// monotonic tick baseline used by the default Finish() path.
func FinishTime(t time.Time) FinishOption {
	return func(c *finishConfig) { c.finishTime = t; c.explicit = true }
}

// WithError attaches an error to the span as part of finishing it.
func WithError(err error) FinishOption {
	return func(c *finishConfig) { c.err = err }
}

// Finish marks the span complete. It is idempotent: calls after the first
// are no-ops.
func (s *Span) Finish(opts ...FinishOption) {
	if s == nil {
		return
	}
	cfg := finishConfig{finishTime: time.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.err != nil {
		s.mu.Lock()
		if !s.finished {
			s.setTagError(cfg.err)
		}
		s.mu.Unlock()
	}
	s.finish(cfg.finishTime.UnixNano(), cfg.explicit)
}

// clockOf returns the Clock the span was created under, falling back to
// SystemClock for a span whose trace carries no tracer (e.g. in tests).
func (s *Span) clockOf() Clock {
	if s.context != nil && s.context.trace != nil && s.context.trace.tracer != nil {
		return s.context.trace.tracer.clock
	}
	return SystemClock
}

// finish computes the span's duration and marks it complete. Per
// SPEC_FULL.md §4.7, duration is the monotonic delta from the tick recorded
// at span creation, so it stays correct across wall-clock adjustments; an
// explicit FinishTime overrides this with a wall-clock diff instead.
func (s *Span) finish(finishTime int64, explicitFinishTime bool) {
	tick := s.clockOf().Tick()
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	if s.duration == 0 {
		if explicitFinishTime {
			s.duration = finishTime - s.start
		} else {
			s.duration = int64(tick - s.startTick)
		}
	}
	if s.duration < 0 {
		s.duration = 0
	}
	s.finished = true
	s.mu.Unlock()

	if log.DebugEnabled() {
		log.Debug("Finished span: name=%s service=%s resource=%s trace_id=%s span_id=%d",
			s.name, s.service, s.resource, s.context.TraceID(), s.spanID)
	}
	s.context.finish()
}

// String returns a debug representation of the span, not for production use.
func (s *Span) String() string {
	if s == nil {
		return "<nil>"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Span{name=%s service=%s resource=%s trace_id=%s span_id=%d parent_id=%d}",
		s.name, s.service, s.resource, s.context.TraceID(), s.spanID, s.parentID)
}
