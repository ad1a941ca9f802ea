// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/segmenttrace/dd-trace-go/ddtrace/ext"
	"github.com/segmenttrace/dd-trace-go/internal/log"
	"github.com/segmenttrace/dd-trace-go/internal/samplernames"
)

// TextMapWriter sets key/value pairs into a carrier, typically HTTP headers.
type TextMapWriter interface {
	Set(key, val string)
}

// TextMapReader iterates over the key/value pairs of a carrier.
type TextMapReader interface {
	ForeachKey(handler func(key, val string) error) error
}

// HTTPHeadersCarrier adapts an http.Header to TextMapWriter/TextMapReader.
type HTTPHeadersCarrier http.Header

func (c HTTPHeadersCarrier) Set(key, val string) { http.Header(c).Set(key, val) }

func (c HTTPHeadersCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, vals := range c {
		for _, v := range vals {
			if err := handler(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// TextMapCarrier adapts a plain map to TextMapWriter/TextMapReader.
type TextMapCarrier map[string]string

func (c TextMapCarrier) Set(key, val string) { c[key] = val }

func (c TextMapCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Propagator injects a SpanContext into, and extracts one out of, a carrier.
type Propagator interface {
	Inject(ctx *SpanContext, carrier interface{}) error
	Extract(carrier interface{}) (*SpanContext, error)
}

var (
	errInvalidCarrier       = newError(CodeMalformedHeaders, "carrier does not implement the required TextMap interface")
	errInvalidSpanContext   = newError(CodeMissingTraceID, "span context is missing a trace id or span id")
	errSpanContextNotFound  = newError(CodeMissingTraceID, "no span context found in carrier")
	errSpanContextCorrupted = newError(CodeMalformedHeaders, "span context found in carrier is corrupted")
)

const (
	headerTraceID       = "x-datadog-trace-id"
	headerParentID      = "x-datadog-parent-id"
	headerPriority      = "x-datadog-sampling-priority"
	headerOrigin        = "x-datadog-origin"
	headerTraceTags     = "x-datadog-tags"
	headerBaggagePrefix = "ot-baggage-"

	propagationExtractMaxSize = 512
)

// NewPropagator builds the chained propagator used by a tracer, selecting
// Datadog, W3C tracecontext and/or B3 styles independently for extraction and
// injection, per the comma-separated style name lists (as from
// DD_TRACE_PROPAGATION_STYLE_EXTRACT/_INJECT). An empty list falls back to
// Datadog + tracecontext; unrecognized style names are logged and skipped.
// styles is used for both directions when only one list is given (e.g. from
// the combined DD_TRACE_PROPAGATION_STYLE or the WithPropagationStyles
// option).
func NewPropagator(styles []string) Propagator {
	return NewPropagatorDirectional(styles, styles)
}

// NewPropagatorDirectional builds a chained propagator whose extraction order
// and injection order can differ, matching SPEC_FULL.md §6's separate
// DD_TRACE_PROPAGATION_STYLE_EXTRACT and DD_TRACE_PROPAGATION_STYLE_INJECT
// environment variables.
func NewPropagatorDirectional(extractStyles, injectStyles []string) Propagator {
	return &chainedPropagator{
		extract: buildPropagators(extractStyles),
		inject:  buildPropagators(injectStyles),
	}
}

func buildPropagators(styles []string) []Propagator {
	if len(styles) == 0 {
		styles = []string{"datadog", "tracecontext"}
	}
	var out []Propagator
	for _, s := range styles {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "datadog":
			out = append(out, &propagatorDatadog{})
		case "tracecontext":
			out = append(out, &propagatorW3C{})
		case "b3", "b3multi":
			out = append(out, &propagatorB3{})
		case "b3 single header", "b3single":
			out = append(out, &propagatorB3Single{})
		case "none":
			// explicit no-op
		default:
			log.Warn("unrecognized propagation style: %s", s)
		}
	}
	return out
}

// chainedPropagator injects with every configured inject-style propagator and
// extracts with the first extract-style propagator that succeeds, recording
// a SpanLink for any subsequent style that decodes a conflicting trace id
// (SPEC_FULL.md §12).
type chainedPropagator struct {
	extract []Propagator
	inject  []Propagator
}

func (p *chainedPropagator) Inject(ctx *SpanContext, carrier interface{}) error {
	if ctx == nil {
		return errInvalidSpanContext
	}
	for _, pr := range p.inject {
		if err := pr.Inject(ctx, carrier); err != nil {
			return err
		}
	}
	return nil
}

func (p *chainedPropagator) Extract(carrier interface{}) (*SpanContext, error) {
	var primary *SpanContext
	var firstErr error
	for i, pr := range p.extract {
		ctx, err := pr.Extract(carrier)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if primary == nil {
			primary = ctx
			continue
		}
		if primary.traceID == ctx.traceID {
			continue
		}
		primary.addSpanLink(SpanLink{
			TraceID: ctx.traceID,
			SpanID:  ctx.spanID,
			Attributes: map[string]string{
				"reason":           "terminated_context",
				"context_headers":  strconv.Itoa(i),
			},
		})
	}
	if primary == nil {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, errSpanContextNotFound
	}
	return primary, nil
}

// propagatorDatadog implements the legacy Datadog header format.
type propagatorDatadog struct{}

func (p *propagatorDatadog) Inject(ctx *SpanContext, carrier interface{}) error {
	w, ok := carrier.(TextMapWriter)
	if !ok {
		return errInvalidCarrier
	}
	if ctx.traceID.Empty() || ctx.spanID == 0 {
		return errInvalidSpanContext
	}
	w.Set(headerTraceID, strconv.FormatUint(ctx.traceID.Lower(), 10))
	w.Set(headerParentID, strconv.FormatUint(ctx.spanID, 10))
	if pr, ok := ctx.SamplingPriority(); ok {
		w.Set(headerPriority, strconv.Itoa(pr))
	}
	if origin := ctx.Origin(); origin != "" {
		w.Set(headerOrigin, origin)
	}
	ctx.ForeachBaggageItem(func(k, v string) bool {
		w.Set(headerBaggagePrefix+k, v)
		return true
	})
	if tags := marshalPropagatingTags(ctx); tags != "" {
		w.Set(headerTraceTags, tags)
	}
	return nil
}

func (p *propagatorDatadog) Extract(carrier interface{}) (*SpanContext, error) {
	r, ok := carrier.(TextMapReader)
	if !ok {
		return nil, errInvalidCarrier
	}
	var ctx SpanContext
	var sawTraceID, sawSpanID bool
	err := r.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case headerTraceID:
			low, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return errSpanContextCorrupted
			}
			ctx.traceID = ctx.traceID.SetLower(low)
			sawTraceID = true
		case headerParentID:
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return errSpanContextCorrupted
			}
			ctx.spanID = id
			sawSpanID = true
		case headerPriority:
			pr, err := strconv.Atoi(v)
			if err != nil {
				return errSpanContextCorrupted
			}
			ensureTrace(&ctx)
			ctx.setSamplingPriority(pr, samplernames.Unknown)
		case headerOrigin:
			ctx.origin = v
		case headerTraceTags:
			unmarshalPropagatingTags(&ctx, v)
		default:
			if strings.HasPrefix(strings.ToLower(k), headerBaggagePrefix) {
				ctx.SetBaggageItem(strings.TrimPrefix(strings.ToLower(k), headerBaggagePrefix), v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawTraceID || !sawSpanID {
		return nil, errSpanContextNotFound
	}
	if ctx.trace != nil {
		if tid := ctx.trace.propagatingTag(keyTraceID128); tid != "" {
			if full, err := ctx.traceID.SetUpperFromHex(tid); err == nil {
				ctx.traceID = full
			} else {
				delete(ctx.trace.propagatingTags, keyTraceID128)
			}
		}
	}
	ctx.isRemote = true
	return &ctx, nil
}

func ensureTrace(ctx *SpanContext) {
	if ctx.trace == nil {
		ctx.trace = newTrace(nil)
	}
}

func marshalPropagatingTags(ctx *SpanContext) string {
	if ctx.trace == nil {
		return ""
	}
	ctx.trace.mu.RLock()
	defer ctx.trace.mu.RUnlock()
	var sb strings.Builder
	for k, v := range ctx.trace.propagatingTags {
		if k == keyTracestate || k == keyTraceparent {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	if _, ok := ctx.trace.propagatingTags[keyTraceID128]; !ok && ctx.traceID.HasUpper() {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(keyTraceID128 + "=" + ctx.traceID.UpperHex())
	}
	return sb.String()
}

func unmarshalPropagatingTags(ctx *SpanContext, v string) {
	ensureTrace(ctx)
	if len(v) > propagationExtractMaxSize {
		log.Warn("dropping %s: exceeds %d bytes", headerTraceTags, propagationExtractMaxSize)
		ctx.trace.setPropagatingTagLocked(keyPropagationError, "extract_max_size")
		return
	}
	ctx.trace.mu.Lock()
	defer ctx.trace.mu.Unlock()
	for _, kv := range strings.Split(v, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "_dd.p.") {
			continue
		}
		ctx.trace.setPropagatingTagLocked(parts[0], parts[1])
	}
}

const (
	b3HeaderTraceID = "x-b3-traceid"
	b3HeaderSpanID  = "x-b3-spanid"
	b3HeaderSampled = "x-b3-sampled"
	b3HeaderSingle  = "b3"
)

// propagatorB3 implements the B3 multi-header format.
type propagatorB3 struct{}

func (p *propagatorB3) Inject(ctx *SpanContext, carrier interface{}) error {
	w, ok := carrier.(TextMapWriter)
	if !ok {
		return errInvalidCarrier
	}
	if ctx.traceID.Empty() || ctx.spanID == 0 {
		return errInvalidSpanContext
	}
	if ctx.traceID.HasUpper() {
		w.Set(b3HeaderTraceID, ctx.traceID.HexEncoded())
	} else {
		w.Set(b3HeaderTraceID, strconv.FormatUint(ctx.traceID.Lower(), 16))
	}
	w.Set(b3HeaderSpanID, strconv.FormatUint(ctx.spanID, 16))
	if pr, ok := ctx.SamplingPriority(); ok {
		if pr >= ext.PriorityAutoKeep {
			w.Set(b3HeaderSampled, "1")
		} else {
			w.Set(b3HeaderSampled, "0")
		}
	}
	return nil
}

func (p *propagatorB3) Extract(carrier interface{}) (*SpanContext, error) {
	r, ok := carrier.(TextMapReader)
	if !ok {
		return nil, errInvalidCarrier
	}
	var ctx SpanContext
	var sawTraceID, sawSpanID bool
	err := r.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case b3HeaderTraceID:
			tid, err := TraceIDFromHex(v)
			if err != nil {
				return errSpanContextCorrupted
			}
			ctx.traceID = tid
			sawTraceID = true
		case b3HeaderSpanID:
			id, err := strconv.ParseUint(v, 16, 64)
			if err != nil {
				return errSpanContextCorrupted
			}
			ctx.spanID = id
			sawSpanID = true
		case b3HeaderSampled:
			ensureTrace(&ctx)
			switch v {
			case "1":
				ctx.setSamplingPriority(ext.PriorityAutoKeep, samplernames.Unknown)
			case "0":
				ctx.setSamplingPriority(ext.PriorityAutoReject, samplernames.Unknown)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawTraceID || !sawSpanID {
		return nil, errSpanContextNotFound
	}
	ctx.isRemote = true
	return &ctx, nil
}

// propagatorB3Single implements the single-header `b3: {trace}-{span}-{sampled}` format.
type propagatorB3Single struct{}

func (p *propagatorB3Single) Inject(ctx *SpanContext, carrier interface{}) error {
	w, ok := carrier.(TextMapWriter)
	if !ok {
		return errInvalidCarrier
	}
	if ctx.traceID.Empty() || ctx.spanID == 0 {
		return errInvalidSpanContext
	}
	var sb strings.Builder
	if ctx.traceID.HasUpper() {
		sb.WriteString(ctx.traceID.HexEncoded())
	} else {
		sb.WriteString(strconv.FormatUint(ctx.traceID.Lower(), 16))
	}
	sb.WriteByte('-')
	sb.WriteString(strconv.FormatUint(ctx.spanID, 16))
	if pr, ok := ctx.SamplingPriority(); ok {
		sb.WriteByte('-')
		if pr >= ext.PriorityAutoKeep {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	w.Set(b3HeaderSingle, sb.String())
	return nil
}

func (p *propagatorB3Single) Extract(carrier interface{}) (*SpanContext, error) {
	r, ok := carrier.(TextMapReader)
	if !ok {
		return nil, errInvalidCarrier
	}
	var ctx SpanContext
	var found bool
	err := r.ForeachKey(func(k, v string) error {
		if strings.ToLower(k) != b3HeaderSingle {
			return nil
		}
		parts := strings.Split(v, "-")
		if len(parts) < 2 {
			return errSpanContextCorrupted
		}
		tid, err := TraceIDFromHex(parts[0])
		if err != nil {
			return errSpanContextCorrupted
		}
		sid, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			return errSpanContextCorrupted
		}
		ctx.traceID = tid
		ctx.spanID = sid
		found = true
		if len(parts) >= 3 {
			ensureTrace(&ctx)
			switch parts[2] {
			case "1", "d":
				ctx.setSamplingPriority(ext.PriorityAutoKeep, samplernames.Unknown)
			case "0":
				ctx.setSamplingPriority(ext.PriorityAutoReject, samplernames.Unknown)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSpanContextNotFound
	}
	ctx.isRemote = true
	return &ctx, nil
}

const (
	keyTraceparent = "traceparent"
	keyTracestate  = "tracestate"
)

// propagatorW3C implements the W3C traceparent/tracestate format, including
// the `dd=` vendor section of tracestate
// (s:<priority>;o:<origin>;p:<parent id>;t.<k>:<v>).
type propagatorW3C struct{}

func (p *propagatorW3C) Inject(ctx *SpanContext, carrier interface{}) error {
	w, ok := carrier.(TextMapWriter)
	if !ok {
		return errInvalidCarrier
	}
	if ctx.traceID.Empty() || ctx.spanID == 0 {
		return errInvalidSpanContext
	}
	flags := "00"
	if pr, ok := ctx.SamplingPriority(); ok && pr >= ext.PriorityAutoKeep {
		flags = "01"
	}
	w.Set(keyTraceparent, "00-"+ctx.traceID.HexEncoded()+"-"+hex16(ctx.spanID)+"-"+flags)
	w.Set(keyTracestate, composeTracestate(ctx))
	return nil
}

func hex16(v uint64) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		b[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(b)
}

// composeTracestate builds the `dd=` vendor entry, preserving any non-dd
// entries previously observed on extraction.
func composeTracestate(ctx *SpanContext) string {
	var dd strings.Builder
	if pr, ok := ctx.SamplingPriority(); ok {
		dd.WriteString("s:")
		dd.WriteString(strconv.Itoa(pr))
	}
	if origin := ctx.Origin(); origin != "" {
		if dd.Len() > 0 {
			dd.WriteByte(';')
		}
		dd.WriteString("o:")
		dd.WriteString(sanitizeTracestateValue(origin))
	}
	if dd.Len() > 0 {
		dd.WriteByte(';')
	}
	dd.WriteString("p:")
	dd.WriteString(hex16(ctx.spanID))
	if ctx.trace != nil {
		ctx.trace.mu.RLock()
		for k, v := range ctx.trace.propagatingTags {
			if !strings.HasPrefix(k, "_dd.p.") || k == keyTraceID128 {
				continue
			}
			if dd.Len() > 0 {
				dd.WriteByte(';')
			}
			dd.WriteString("t.")
			dd.WriteString(strings.TrimPrefix(k, "_dd.p."))
			dd.WriteByte(':')
			dd.WriteString(sanitizeTracestateValue(v))
		}
		ctx.trace.mu.RUnlock()
	}
	entry := "dd=" + dd.String()
	if rest := ctx.trace.propagatingTag(keyTracestate); rest != "" {
		if other := stripDDEntry(rest); other != "" {
			return entry + "," + other
		}
	}
	return entry
}

func sanitizeTracestateValue(v string) string {
	r := strings.NewReplacer("=", "~", ",", "_", ";", "_")
	return r.Replace(v)
}

func stripDDEntry(tracestate string) string {
	var kept []string
	for _, entry := range strings.Split(tracestate, ",") {
		if !strings.HasPrefix(strings.TrimSpace(entry), "dd=") {
			kept = append(kept, entry)
		}
	}
	return strings.Join(kept, ",")
}

func (p *propagatorW3C) Extract(carrier interface{}) (*SpanContext, error) {
	r, ok := carrier.(TextMapReader)
	if !ok {
		return nil, errInvalidCarrier
	}
	var ctx SpanContext
	var traceparent, tracestate string
	err := r.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case keyTraceparent:
			traceparent = v
		case keyTracestate:
			tracestate = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if traceparent == "" {
		return nil, errSpanContextNotFound
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) < 4 || len(parts[1]) != 32 || len(parts[2]) != 16 {
		return nil, errSpanContextCorrupted
	}
	tid, err := TraceIDFromHex(parts[1])
	if err != nil || tid.Empty() {
		return nil, errSpanContextCorrupted
	}
	sid, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil || sid == 0 {
		return nil, errSpanContextCorrupted
	}
	ctx.traceID = tid
	ctx.spanID = sid
	ensureTrace(&ctx)
	if tracestate != "" {
		ctx.trace.setPropagatingTagLocked(keyTracestate, tracestate)
		applyDDTracestate(&ctx, tracestate, parts[3])
	} else if len(parts[3]) == 2 && parts[3][1]&1 == 1 {
		ctx.setSamplingPriority(ext.PriorityAutoKeep, samplernames.Unknown)
	}
	ctx.isRemote = true
	return &ctx, nil
}

func applyDDTracestate(ctx *SpanContext, tracestate, flags string) {
	ctx.trace.mu.Lock()
	defer ctx.trace.mu.Unlock()
	for _, entry := range strings.Split(tracestate, ",") {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, "dd=") {
			continue
		}
		for _, kv := range strings.Split(strings.TrimPrefix(entry, "dd="), ";") {
			k, v, ok := strings.Cut(kv, ":")
			if !ok {
				continue
			}
			switch {
			case k == "s":
				if pr, err := strconv.Atoi(v); err == nil {
					ctx.trace.setSamplingPriorityLocked(pr, samplernames.Unknown)
				}
			case k == "o":
				ctx.origin = v
			case strings.HasPrefix(k, "t."):
				ctx.trace.setPropagatingTagLocked("_dd.p."+strings.TrimPrefix(k, "t."), v)
			}
		}
		return
	}
	if len(flags) == 2 && flags[1]&1 == 1 {
		ctx.trace.setSamplingPriorityLocked(ext.PriorityAutoKeep, samplernames.Unknown)
	}
}
