// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverridesCodeOptions(t *testing.T) {
	t.Setenv("DD_SERVICE", "from-env")
	t.Setenv("DD_TRACE_SAMPLE_RATE", "0.25")

	cfg := newConfig(WithService("from-code"), WithSampleRate(1.0))
	assert.Equal(t, "from-env", cfg.serviceName, "env var should win over the code option")
	assert.Equal(t, Rate(0.25), cfg.sampleRate, "env var should win over the code option")
}

func TestCodeOptionsApplyWithoutEnv(t *testing.T) {
	assert := assert.New(t)
	cfg := newConfig(WithService("checkout"), WithEnv("staging"), WithRateLimit(50))
	assert.Equal("checkout", cfg.serviceName)
	assert.Equal("staging", cfg.env)
	assert.Equal(float64(50), cfg.maxTracesPerSecond)
}

func TestParseTagsEnv(t *testing.T) {
	assert := assert.New(t)
	tags := parseTagsEnv("team:payments,region:us-east")
	assert.Equal("payments", tags["team"])
	assert.Equal("us-east", tags["region"])
	assert.Empty(parseTagsEnv(""), "empty DD_TAGS should parse to no tags")
}

func TestWithPartialFlushEnablesAndSetsMinSpans(t *testing.T) {
	cfg := newConfig(WithPartialFlush(20))
	assert.True(t, cfg.partialFlushEnabled, "WithPartialFlush should enable partial flush")
	assert.Equal(t, 20, cfg.partialFlushMinSpans)
}

func TestDefaultPropagationStyles(t *testing.T) {
	cfg := newConfig()
	assert.Len(t, cfg.extractPropagationStyles, 2)
	assert.Len(t, cfg.injectPropagationStyles, 2)
}

func TestPropagationStyleEnvSplitsExtractAndInject(t *testing.T) {
	t.Setenv("DD_TRACE_PROPAGATION_STYLE", "b3")
	t.Setenv("DD_TRACE_PROPAGATION_STYLE_EXTRACT", "datadog,b3")

	cfg := newConfig()
	assert.Equal(t, []string{"datadog", "b3"}, cfg.extractPropagationStyles,
		"the more specific _EXTRACT var should win over the combined var")
	assert.Equal(t, []string{"b3"}, cfg.injectPropagationStyles,
		"with no _INJECT override, the combined var applies")
}

func TestAgentURLEnvOverridesHostAndPort(t *testing.T) {
	t.Setenv("DD_TRACE_AGENT_URL", "http://collector.internal:9126")
	cfg := newConfig(WithAgentAddr("localhost", "8126"))
	assert.Equal(t, "collector.internal", cfg.agentHost)
	assert.Equal(t, "9126", cfg.agentPort)
}

func TestReportHostnameEnv(t *testing.T) {
	t.Setenv("DD_TRACE_REPORT_HOSTNAME", "true")
	cfg := newConfig()
	assert.True(t, cfg.reportHostname)
}

func TestTraceSamplingRulesEnvParsesJSON(t *testing.T) {
	t.Setenv("DD_TRACE_SAMPLING_RULES", `[{"service":"web","sample_rate":0.5,"max_per_second":100}]`)
	cfg := newConfig()
	if assert.Len(t, cfg.traceRules, 1) {
		assert.Equal(t, "web", cfg.traceRules[0].Matcher.Service)
		assert.Equal(t, Rate(0.5), cfg.traceRules[0].Rate)
		assert.Equal(t, float64(100), cfg.traceRules[0].MaxPerSecond)
	}
}

func TestSpanSamplingRulesEnvParsesJSON(t *testing.T) {
	t.Setenv("DD_SPAN_SAMPLING_RULES", `[{"name":"db.query","sample_rate":1.0}]`)
	cfg := newConfig()
	if assert.Len(t, cfg.spanRules, 1) {
		assert.Equal(t, "db.query", cfg.spanRules[0].Matcher.Name)
		assert.Equal(t, Rate(1.0), cfg.spanRules[0].Rate)
	}
}

func TestMalformedSamplingRulesEnvIsIgnored(t *testing.T) {
	t.Setenv("DD_TRACE_SAMPLING_RULES", "not-json")
	cfg := newConfig()
	assert.Empty(t, cfg.traceRules, "malformed JSON should be ignored, not panic or crash config loading")
}
