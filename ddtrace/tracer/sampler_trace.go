// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"sync/atomic"

	"github.com/segmenttrace/dd-trace-go/ddtrace/ext"
	"github.com/segmenttrace/dd-trace-go/internal/log"
	"github.com/segmenttrace/dd-trace-go/internal/samplernames"
)

// TraceSamplingRule pairs a SpanMatcher evaluated against a trace's local
// root span with a fixed sample rate and, optionally, a per-rule rate limit.
type TraceSamplingRule struct {
	Matcher      SpanMatcher
	Rate         Rate
	MaxPerSecond float64
}

// TraceSampler decides, for each trace's root span, whether the trace is
// kept or dropped, following SPEC_FULL.md §4.5's precedence:
//  1. A sampling priority already present on the trace (set manually, or
//     extracted from an upstream propagator) is left untouched.
//  2. The first matching trace sampling rule applies, subject to its own
//     rate limiter if one is configured.
//  3. Otherwise the most specific agent-pushed rate for the root's
//     service/env pair applies.
//  4. Otherwise the tracer's configured default rate applies.
// In all but case 1, the global rate limiter has final veto power.
type TraceSampler struct {
	rules       []TraceSamplingRule
	ruleLimiter []*Limiter // parallel to rules; nil entries means unlimited

	defaultRate Rate
	agentRates  atomic.Pointer[map[string]float64]

	limiter *Limiter
}

// NewTraceSampler builds a TraceSampler with the given rules (evaluated in
// order), default rate, and global limit (traces/second). A limit of 0 does
// not disable the global limiter: a limiter configured with rate 0 never
// admits, so every trace that would be kept is dropped.
func NewTraceSampler(rules []TraceSamplingRule, defaultRate Rate, maxTracesPerSecond float64) *TraceSampler {
	s := &TraceSampler{
		rules:       rules,
		ruleLimiter: make([]*Limiter, len(rules)),
		defaultRate: defaultRate,
		limiter:     NewLimiter(maxTracesPerSecond),
	}
	for i, r := range rules {
		if r.MaxPerSecond > 0 {
			s.ruleLimiter[i] = NewLimiter(r.MaxPerSecond)
		}
	}
	empty := map[string]float64{}
	s.agentRates.Store(&empty)
	return s
}

// UpdateAgentRates atomically replaces the per-service/env rate table pushed
// down by the agent's rate-by-service response (SPEC_FULL.md §4.9).
func (s *TraceSampler) UpdateAgentRates(rates map[string]float64) {
	cp := make(map[string]float64, len(rates))
	for k, v := range rates {
		cp[k] = v
	}
	s.agentRates.Store(&cp)
}

// Sample decides root's sampling priority in place, writing the mechanism
// tags (`_dd.rule_psr`, `_dd.agent_psr`, `_dd.limit_psr`) that record how the
// decision was reached.
func (s *TraceSampler) Sample(root *Span) {
	if root == nil || root.context == nil {
		return
	}
	if _, ok := root.context.SamplingPriority(); ok {
		// Already decided: manual tag, or inherited from an extracted
		// upstream context. Leave it alone.
		return
	}
	root.mu.RLock()
	service, env := root.service, root.meta["env"]
	root.mu.RUnlock()

	if idx, rule := s.matchRule(root); rule != nil {
		s.applyRule(root, *rule, s.ruleLimiter[idx])
		return
	}
	if rate, ok := s.agentRate(service, env); ok {
		s.applyAgentRate(root, rate)
		return
	}
	s.applyDefault(root)
}

func (s *TraceSampler) matchRule(root *Span) (int, *TraceSamplingRule) {
	for i := range s.rules {
		if s.rules[i].Matcher.MatchesSpan(root) {
			return i, &s.rules[i]
		}
	}
	return -1, nil
}

func (s *TraceSampler) applyRule(root *Span, rule TraceSamplingRule, limiter *Limiter) {
	root.mu.Lock()
	root.setMetric(keyRulePSR, float64(rule.Rate))
	root.mu.Unlock()
	keep := sampleByRate(root.context.traceID.Lower(), rule.Rate)
	if keep && limiter != nil {
		allowed, effRate := limiter.Allow(SystemClock.Wall())
		root.mu.Lock()
		root.setMetric(keyLimitPSR, effRate)
		root.mu.Unlock()
		keep = allowed
	}
	keep = s.limitGlobal(root, keep)
	s.finalize(root, keep, samplernames.Rule)
}

func (s *TraceSampler) agentRate(service, env string) (Rate, bool) {
	rates := *s.agentRates.Load()
	if r, ok := rates[agentRateKey(service, env)]; ok {
		return Rate(r), true
	}
	if r, ok := rates["service:,env:"]; ok {
		return Rate(r), true
	}
	return 0, false
}

func agentRateKey(service, env string) string {
	return "service:" + service + ",env:" + env
}

func (s *TraceSampler) applyAgentRate(root *Span, rate Rate) {
	root.mu.Lock()
	root.setMetric(keyAgentPSR, float64(rate))
	root.mu.Unlock()
	keep := sampleByRate(root.context.traceID.Lower(), rate)
	keep = s.limitGlobal(root, keep)
	s.finalize(root, keep, samplernames.AgentRate)
}

func (s *TraceSampler) applyDefault(root *Span) {
	keep := sampleByRate(root.context.traceID.Lower(), s.defaultRate)
	keep = s.limitGlobal(root, keep)
	s.finalize(root, keep, samplernames.Default)
}

func (s *TraceSampler) limitGlobal(root *Span, keep bool) bool {
	if !keep {
		return false
	}
	allowed, effRate := s.limiter.Allow(SystemClock.Wall())
	root.mu.Lock()
	root.setMetric(keyLimitPSR, effRate)
	root.mu.Unlock()
	return allowed
}

func (s *TraceSampler) finalize(root *Span, keep bool, mechanism samplernames.SamplerName) {
	priority := samplerPriorityFor(keep)
	if root.context.trace.setSamplingPriority(priority, mechanism) {
		log.Debug("trace_id=%s sampling decision: keep=%v mechanism=%s", root.context.TraceID(), keep, mechanism)
	}
}

func samplerPriorityFor(keep bool) int {
	if keep {
		return ext.PriorityAutoKeep
	}
	return ext.PriorityAutoReject
}
