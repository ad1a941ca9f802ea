// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanMatcherMatches(t *testing.T) {
	assert := assert.New(t)
	m := SpanMatcher{
		Service:  "web-*",
		Name:     "http.request",
		Resource: "",
		Tags:     map[string]string{"http.method": "GET"},
	}

	assert.True(m.Matches("web-checkout", "http.request", "/cart", map[string]string{"http.method": "GET"}))
	assert.False(m.Matches("worker", "http.request", "/cart", map[string]string{"http.method": "GET"}), "service pattern should reject non-matching service")
	assert.False(m.Matches("web-checkout", "grpc.request", "/cart", map[string]string{"http.method": "GET"}), "name pattern should reject non-matching name")
	assert.False(m.Matches("web-checkout", "http.request", "/cart", map[string]string{"http.method": "POST"}), "tag pattern should reject a mismatched tag value")
	assert.False(m.Matches("web-checkout", "http.request", "/cart", nil), "tag pattern should reject a span missing the tag entirely")
}

func TestSpanMatcherEmptyFieldsMatchAnything(t *testing.T) {
	m := SpanMatcher{}
	assert.True(t, m.Matches("anything", "anything", "anything", map[string]string{"k": "v"}),
		"a SpanMatcher with no configured patterns should match any span")
}

func TestSpanMatcherMatchesSpan(t *testing.T) {
	sp := &Span{service: "web-checkout", name: "http.request", resource: "/cart", meta: map[string]string{"env": "prod"}}
	m := SpanMatcher{Service: "web-*", Tags: map[string]string{"env": "prod"}}
	assert.True(t, m.MatchesSpan(sp), "MatchesSpan should read fields directly off the span")
}
