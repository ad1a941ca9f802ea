// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"testing"

	"github.com/segmenttrace/dd-trace-go/ddtrace/ext"
	"github.com/segmenttrace/dd-trace-go/internal/samplernames"
)

func newRootSpan(service, env string) *Span {
	sp := &Span{service: service, meta: map[string]string{"env": env}}
	sp.context = &SpanContext{spanID: 1, traceID: TraceIDFromLower(1), trace: newTrace(nil)}
	sp.context.trace.root = sp
	return sp
}

func TestTraceSamplerLeavesExistingPriorityAlone(t *testing.T) {
	s := NewTraceSampler(nil, 1.0, 1000)
	root := newRootSpan("web", "prod")
	root.context.setSamplingPriority(2, samplernames.Manual)

	s.Sample(root)

	if p, _ := root.context.SamplingPriority(); p != 2 {
		t.Errorf("sampler should not override an existing decision, got %d", p)
	}
}

func TestTraceSamplerRulePrecedesAgentAndDefault(t *testing.T) {
	rule := TraceSamplingRule{Matcher: SpanMatcher{Service: "web"}, Rate: 1.0}
	s := NewTraceSampler([]TraceSamplingRule{rule}, 0.0, 1000)
	s.UpdateAgentRates(map[string]float64{"service:web,env:": 0.0})

	root := newRootSpan("web", "")
	s.Sample(root)

	if p, ok := root.context.SamplingPriority(); !ok || p != ext.PriorityAutoKeep {
		t.Errorf("a matching rule with rate 1.0 should keep the trace even when agent/default rates are 0, got (%d,%v)", p, ok)
	}
	root.mu.RLock()
	if _, ok := root.metrics[keyRulePSR]; !ok {
		t.Error("expected _dd.rule_psr to be tagged")
	}
	root.mu.RUnlock()
}

func TestTraceSamplerFallsBackToAgentRate(t *testing.T) {
	s := NewTraceSampler(nil, 0.0, 1000)
	s.UpdateAgentRates(map[string]float64{"service:web,env:prod": 1.0})

	root := newRootSpan("web", "prod")
	s.Sample(root)

	if p, ok := root.context.SamplingPriority(); !ok || p != ext.PriorityAutoKeep {
		t.Errorf("should keep using the agent rate for service:web,env:prod, got (%d,%v)", p, ok)
	}
	root.mu.RLock()
	if _, ok := root.metrics[keyAgentPSR]; !ok {
		t.Error("expected _dd.agent_psr to be tagged")
	}
	root.mu.RUnlock()
}

func TestTraceSamplerFallsBackToDefault(t *testing.T) {
	s := NewTraceSampler(nil, 1.0, 1000)
	root := newRootSpan("web", "prod")
	s.Sample(root)

	if p, ok := root.context.SamplingPriority(); !ok || p != ext.PriorityAutoKeep {
		t.Errorf("default rate of 1.0 should keep, got (%d,%v)", p, ok)
	}
}

func TestTraceSamplerGlobalLimiterCanVeto(t *testing.T) {
	s := NewTraceSampler(nil, 1.0, 0)
	root := newRootSpan("web", "prod")
	s.Sample(root)

	if p, ok := root.context.SamplingPriority(); !ok || p != ext.PriorityAutoReject {
		t.Errorf("a global rate limit of 0 should veto an otherwise-kept trace, got (%d,%v)", p, ok)
	}
}

func TestTraceSamplerRuleLimiterAppliesBeforeGlobal(t *testing.T) {
	// A per-rule limit below 1/s starts with less than one token in its
	// burst bucket, so the very first trace it sees is rejected.
	rule := TraceSamplingRule{Matcher: SpanMatcher{}, Rate: 1.0, MaxPerSecond: 0.5}
	s := NewTraceSampler([]TraceSamplingRule{rule}, 1.0, 1000)
	root := newRootSpan("web", "prod")
	s.Sample(root)

	if p, ok := root.context.SamplingPriority(); !ok || p != ext.PriorityAutoReject {
		t.Errorf("a per-rule limit with an empty burst bucket should veto the match, got (%d,%v)", p, ok)
	}
}

func TestTraceSamplerRuleStillSubjectToGlobalLimiter(t *testing.T) {
	// The rule itself has no per-rule limit and would keep at rate 1.0, but
	// the global limiter's rate of 0 must still veto it.
	rule := TraceSamplingRule{Matcher: SpanMatcher{}, Rate: 1.0}
	s := NewTraceSampler([]TraceSamplingRule{rule}, 1.0, 0)
	root := newRootSpan("web", "prod")
	s.Sample(root)

	if p, ok := root.context.SamplingPriority(); !ok || p != ext.PriorityAutoReject {
		t.Errorf("a global rate limit of 0 should veto a rule match too, got (%d,%v)", p, ok)
	}
}
