// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import "github.com/segmenttrace/dd-trace-go/internal/glob"

// SpanMatcher is a conjunctive glob predicate over a span's core fields and
// tags. An empty pattern for any field means "match anything" for that
// field. Tag patterns are matched against the tag's stringified value; a tag
// named in Tags that the span does not carry never matches.
type SpanMatcher struct {
	Service  string
	Name     string
	Resource string
	Tags     map[string]string
}

// Matches reports whether the given service/name/resource/tags satisfy every
// configured pattern.
func (m SpanMatcher) Matches(service, name, resource string, tags map[string]string) bool {
	if !glob.Match(m.Service, service) {
		return false
	}
	if !glob.Match(m.Name, name) {
		return false
	}
	if !glob.Match(m.Resource, resource) {
		return false
	}
	for k, pattern := range m.Tags {
		v, ok := tags[k]
		if !ok || !glob.Match(pattern, v) {
			return false
		}
	}
	return true
}

// MatchesSpan is a convenience wrapper reading the relevant fields directly
// off a Span.
func (m SpanMatcher) MatchesSpan(s *Span) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return m.Matches(s.service, s.name, s.resource, s.meta)
}
