// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

// SpanSamplingRule selects individual spans to keep even when their trace
// was dropped, per SPEC_FULL.md §4.6. Each rule carries its own rate and an
// optional per-rule-per-second cap.
type SpanSamplingRule struct {
	Matcher      SpanMatcher
	Rate         Rate
	MaxPerSecond float64
}

// SpanSampler evaluates SpanSamplingRules against individual finishing spans
// whose trace was not kept by trace-level sampling.
type SpanSampler struct {
	rules   []SpanSamplingRule
	limiter []*Limiter
}

// NewSpanSampler builds a SpanSampler from the given rules, evaluated in
// order; the first match wins.
func NewSpanSampler(rules []SpanSamplingRule) *SpanSampler {
	s := &SpanSampler{rules: rules, limiter: make([]*Limiter, len(rules))}
	for i, r := range rules {
		if r.MaxPerSecond > 0 {
			s.limiter[i] = NewLimiter(r.MaxPerSecond)
		}
	}
	return s
}

// Sample evaluates sp against the configured rules. If a rule matches and
// keeps the span, it tags sp with the single-span-sampling metadata
// (`_dd.span_sampling.mechanism`, `.rule_rate`, `.max_per_second`) and
// returns true.
func (s *SpanSampler) Sample(sp *Span) bool {
	if s == nil || sp == nil {
		return false
	}
	for i, rule := range s.rules {
		if !rule.Matcher.MatchesSpan(sp) {
			continue
		}
		if !sampleByRate(sp.context.traceID.Lower()^sp.spanID, rule.Rate) {
			return false
		}
		if lim := s.limiter[i]; lim != nil {
			allowed, _ := lim.Allow(SystemClock.Wall())
			if !allowed {
				return false
			}
		}
		sp.mu.Lock()
		sp.setMetric(keySpanSamplingMechanism, 8) // mechanism 8: single span sampling rule
		sp.setMetric(keySingleSpanSamplingRuleRate, float64(rule.Rate))
		if rule.MaxPerSecond > 0 {
			sp.setMetric(keySingleSpanSamplingMPS, rule.MaxPerSecond)
		}
		sp.mu.Unlock()
		return true
	}
	return false
}
