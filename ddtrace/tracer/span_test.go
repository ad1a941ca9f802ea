// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmenttrace/dd-trace-go/ddtrace/ext"
)

func newTestSpan() *Span {
	sp := &Span{name: "op", service: "web", resource: "/", start: time.Now().UnixNano()}
	sp.context = &SpanContext{spanID: 1, traceID: TraceIDFromLower(1), trace: newTrace(nil)}
	sp.context.span = sp
	sp.context.trace.root = sp
	return sp
}

func TestSetTagString(t *testing.T) {
	sp := newTestSpan()
	sp.SetTag("http.url", "/cart")
	assert.Equal(t, "/cart", sp.meta["http.url"])
}

func TestSetTagNumeric(t *testing.T) {
	sp := newTestSpan()
	sp.SetTag("retry.count", 3)
	assert.Equal(t, float64(3), sp.metrics["retry.count"])
}

func TestSetTagBool(t *testing.T) {
	sp := newTestSpan()
	sp.SetTag("cache.hit", true)
	assert.Equal(t, "true", sp.meta["cache.hit"])
}

func TestSetTagErrorFromError(t *testing.T) {
	sp := newTestSpan()
	sp.SetTag(ext.Error, errors.New("boom"))
	assert.NotZero(t, sp.error, "expected error flag to be set")
	assert.Equal(t, "boom", sp.meta[ext.ErrorMsg])
}

func TestSetTagManualKeepForcesPriority(t *testing.T) {
	sp := newTestSpan()
	sp.SetTag(ext.ManualKeep, true)
	p, ok := sp.context.SamplingPriority()
	require.True(t, ok)
	assert.Equal(t, ext.PriorityUserKeep, p)
}

func TestSetTagRewritesCoreFields(t *testing.T) {
	sp := newTestSpan()
	sp.SetTag(ext.ServiceName, "new-service")
	sp.SetTag(ext.ResourceName, "new-resource")
	assert.Equal(t, "new-service", sp.service)
	assert.Equal(t, "new-resource", sp.resource)
}

func TestFinishIsIdempotent(t *testing.T) {
	sp := newTestSpan()
	sp.Finish()
	d := sp.duration
	time.Sleep(time.Millisecond)
	sp.Finish()
	assert.Equal(t, d, sp.duration, "a second Finish call should not change the duration")
}

func TestFinishWithErrorTagsTheSpan(t *testing.T) {
	sp := newTestSpan()
	sp.Finish(WithError(errors.New("kaboom")))
	assert.NotZero(t, sp.error, "Finish(WithError(...)) should set the error flag")
}

func TestSetTagAfterFinishIsNoop(t *testing.T) {
	sp := newTestSpan()
	sp.Finish()
	sp.SetTag("late", "tag")
	_, ok := sp.meta["late"]
	assert.False(t, ok, "SetTag after Finish should be a no-op")
}

type stringerPtr struct{ s string }

func (s *stringerPtr) String() string { return s.s }

func TestStringerSafeHandlesNilPointer(t *testing.T) {
	var sp *stringerPtr
	assert.Equal(t, "<nil>", stringerSafe(sp))

	ok := &stringerPtr{s: "value"}
	assert.Equal(t, "value", stringerSafe(ok))
}

func TestSpanStringIncludesCoreFields(t *testing.T) {
	sp := newTestSpan()
	assert.Contains(t, sp.String(), "name=op")
}
