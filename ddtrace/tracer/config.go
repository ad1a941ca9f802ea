// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmenttrace/dd-trace-go/internal/log"
)

// config holds every tunable of a tracer, built from defaults, functional
// Options, and finally environment variable overrides (see finalize),
// matching the precedence order SPEC_FULL.md §6 documents.
type config struct {
	serviceName string
	env         string
	version     string

	agentHost string
	agentPort string
	httpTimeout time.Duration

	sampleRate         Rate
	maxTracesPerSecond float64
	traceRules         []TraceSamplingRule
	spanRules          []SpanSamplingRule

	extractPropagationStyles []string
	injectPropagationStyles  []string
	enable128Bit             bool

	partialFlushEnabled  bool
	partialFlushMinSpans int

	flushInterval time.Duration

	globalTags     map[string]string
	reportHostname bool

	debug      bool
	logStartup bool
}

func newConfig(opts ...StartOption) *config {
	c := &config{
		serviceName:              defaultServiceName(),
		agentHost:                defaultAgentHost,
		agentPort:                defaultAgentPort,
		httpTimeout:              2 * time.Second,
		sampleRate:               1.0,
		maxTracesPerSecond:       100,
		extractPropagationStyles: []string{"datadog", "tracecontext"},
		injectPropagationStyles:  []string{"datadog", "tracecontext"},
		enable128Bit:             true,
		partialFlushEnabled:      false,
		partialFlushMinSpans:     1000,
		flushInterval:            defaultFlushInterval,
		globalTags:               map[string]string{},
		logStartup:               true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applyEnv()
	return c
}

func defaultServiceName() string {
	if len(os.Args) > 0 {
		if base := lastPathElem(os.Args[0]); base != "" {
			return base
		}
	}
	return "unnamed-go-service"
}

func lastPathElem(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// applyEnv layers environment variable overrides on top of whatever the
// caller's Options set, matching the precedence documented in
// SPEC_FULL.md §6: code-configured Options lose to explicit env vars.
func (c *config) applyEnv() {
	if v := os.Getenv("DD_SERVICE"); v != "" {
		c.serviceName = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		c.env = v
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		c.version = v
	}
	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		c.agentHost = v
	}
	if v := os.Getenv("DD_TRACE_AGENT_PORT"); v != "" {
		c.agentPort = v
	}
	// DD_TRACE_AGENT_URL takes precedence over DD_AGENT_HOST/DD_TRACE_AGENT_PORT
	// since it names the whole endpoint in one value.
	if v := os.Getenv("DD_TRACE_AGENT_URL"); v != "" {
		if u, err := url.Parse(v); err == nil && u.Hostname() != "" {
			c.agentHost = u.Hostname()
			if p := u.Port(); p != "" {
				c.agentPort = p
			}
		} else {
			log.Warn("DD_TRACE_AGENT_URL=%q is not a valid URL, ignoring", v)
		}
	}
	if v := os.Getenv("DD_TRACE_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			if r, err := NewRate(f); err == nil {
				c.sampleRate = r
			}
		}
	}
	if v := os.Getenv("DD_TRACE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.maxTracesPerSecond = f
		}
	}
	// DD_TRACE_PROPAGATION_STYLE sets both directions at once; the more
	// specific _EXTRACT/_INJECT variables, if set, override it independently.
	if v := os.Getenv("DD_TRACE_PROPAGATION_STYLE"); v != "" {
		styles := splitEnvList(v)
		c.extractPropagationStyles = styles
		c.injectPropagationStyles = styles
	}
	if v := os.Getenv("DD_TRACE_PROPAGATION_STYLE_EXTRACT"); v != "" {
		c.extractPropagationStyles = splitEnvList(v)
	}
	if v := os.Getenv("DD_TRACE_PROPAGATION_STYLE_INJECT"); v != "" {
		c.injectPropagationStyles = splitEnvList(v)
	}
	if v := os.Getenv("DD_TRACE_REPORT_HOSTNAME"); v != "" {
		c.reportHostname = parseBoolEnv(v, c.reportHostname)
	}
	if v := os.Getenv("DD_TRACE_SAMPLING_RULES"); v != "" {
		rules, err := parseTraceSamplingRulesJSON(v)
		if err != nil {
			log.Warn("DD_TRACE_SAMPLING_RULES: %s", err)
		} else {
			c.traceRules = rules
		}
	}
	if v := os.Getenv("DD_SPAN_SAMPLING_RULES"); v != "" {
		rules, err := parseSpanSamplingRulesJSON(v)
		if err != nil {
			log.Warn("DD_SPAN_SAMPLING_RULES: %s", err)
		} else {
			c.spanRules = rules
		}
	}
	if v := os.Getenv("DD_TRACE_128_BIT_TRACEID_GENERATION_ENABLED"); v != "" {
		c.enable128Bit = parseBoolEnv(v, c.enable128Bit)
	}
	if v := os.Getenv("DD_TRACE_PARTIAL_FLUSH_ENABLED"); v != "" {
		c.partialFlushEnabled = parseBoolEnv(v, c.partialFlushEnabled)
	}
	if v := os.Getenv("DD_TRACE_PARTIAL_FLUSH_MIN_SPANS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.partialFlushMinSpans = n
		}
	}
	if v := os.Getenv("DD_TRACE_DEBUG"); v != "" {
		c.debug = parseBoolEnv(v, c.debug)
	}
	if v := os.Getenv("DD_TRACE_STARTUP_LOGS"); v != "" {
		c.logStartup = parseBoolEnv(v, c.logStartup)
	}
	for k, v := range parseTagsEnv(os.Getenv("DD_TAGS")) {
		c.globalTags[k] = v
	}
}

func parseBoolEnv(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseTagsEnv(v string) map[string]string {
	tags := map[string]string{}
	if v == "" {
		return tags
	}
	for _, kv := range strings.Fields(strings.ReplaceAll(v, ",", " ")) {
		k, val, ok := strings.Cut(kv, ":")
		if !ok {
			continue
		}
		tags[k] = val
	}
	return tags
}

func splitEnvList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// jsonSamplingRule is the wire shape of one entry in DD_TRACE_SAMPLING_RULES
// or DD_SPAN_SAMPLING_RULES, matching the Datadog tracer config schema.
type jsonSamplingRule struct {
	Service      string            `json:"service"`
	Name         string            `json:"name"`
	Resource     string            `json:"resource"`
	Tags         map[string]string `json:"tags"`
	SampleRate   float64           `json:"sample_rate"`
	MaxPerSecond float64           `json:"max_per_second"`
}

func (r jsonSamplingRule) matcher() SpanMatcher {
	return SpanMatcher{Service: r.Service, Name: r.Name, Resource: r.Resource, Tags: r.Tags}
}

func parseTraceSamplingRulesJSON(v string) ([]TraceSamplingRule, error) {
	var raw []jsonSamplingRule
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return nil, err
	}
	rules := make([]TraceSamplingRule, 0, len(raw))
	for _, r := range raw {
		rules = append(rules, TraceSamplingRule{
			Matcher:      r.matcher(),
			Rate:         Rate(r.SampleRate),
			MaxPerSecond: r.MaxPerSecond,
		})
	}
	return rules, nil
}

func parseSpanSamplingRulesJSON(v string) ([]SpanSamplingRule, error) {
	var raw []jsonSamplingRule
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return nil, err
	}
	rules := make([]SpanSamplingRule, 0, len(raw))
	for _, r := range raw {
		rules = append(rules, SpanSamplingRule{
			Matcher:      r.matcher(),
			Rate:         Rate(r.SampleRate),
			MaxPerSecond: r.MaxPerSecond,
		})
	}
	return rules, nil
}
