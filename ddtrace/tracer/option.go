// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import "time"

// StartOption configures a tracer at Start time.
type StartOption func(*config)

// WithService sets the service name reported on every span that doesn't
// override it itself.
func WithService(name string) StartOption {
	return func(c *config) { c.serviceName = name }
}

// WithEnv sets the `env` tag applied to the root span of every trace.
func WithEnv(env string) StartOption {
	return func(c *config) { c.env = env }
}

// WithServiceVersion sets the `version` tag applied to the root span of
// every trace.
func WithServiceVersion(version string) StartOption {
	return func(c *config) { c.version = version }
}

// WithAgentAddr overrides the agent host:port the tracer flushes to.
func WithAgentAddr(host, port string) StartOption {
	return func(c *config) {
		if host != "" {
			c.agentHost = host
		}
		if port != "" {
			c.agentPort = port
		}
	}
}

// WithHTTPTimeout overrides the per-flush HTTP request timeout.
func WithHTTPTimeout(d time.Duration) StartOption {
	return func(c *config) { c.httpTimeout = d }
}

// WithGlobalTag attaches a tag to every span's local root.
func WithGlobalTag(key string, value string) StartOption {
	return func(c *config) { c.globalTags[key] = value }
}

// WithSampleRate sets the tracer's default trace sampling rate, used when no
// sampling rule or agent rate applies.
func WithSampleRate(rate float64) StartOption {
	return func(c *config) {
		if r, err := NewRate(rate); err == nil {
			c.sampleRate = r
		}
	}
}

// WithSamplingRules installs the ordered trace sampling rules evaluated
// before falling back to the agent rate / default rate.
func WithSamplingRules(rules []TraceSamplingRule) StartOption {
	return func(c *config) { c.traceRules = rules }
}

// WithSpanSamplingRules installs the single-span-sampling rules evaluated
// for spans belonging to a dropped trace.
func WithSpanSamplingRules(rules []SpanSamplingRule) StartOption {
	return func(c *config) { c.spanRules = rules }
}

// WithRateLimit caps the number of traces kept per second, independent of
// the sampling rate that decided to keep them.
func WithRateLimit(tracesPerSecond float64) StartOption {
	return func(c *config) { c.maxTracesPerSecond = tracesPerSecond }
}

// WithPropagationStyles sets the ordered list of propagation styles used for
// both injection and extraction (e.g. "datadog", "tracecontext", "b3").
func WithPropagationStyles(styles ...string) StartOption {
	return func(c *config) {
		c.extractPropagationStyles = styles
		c.injectPropagationStyles = styles
	}
}

// WithPropagationStylesExtract sets the ordered list of propagation styles
// tried, in order, when extracting an incoming context.
func WithPropagationStylesExtract(styles ...string) StartOption {
	return func(c *config) { c.extractPropagationStyles = styles }
}

// WithPropagationStylesInject sets the list of propagation styles written
// when injecting an outgoing context; every style in the list is applied.
func WithPropagationStylesInject(styles ...string) StartOption {
	return func(c *config) { c.injectPropagationStyles = styles }
}

// With128BitTraceIDs enables or disables embedding a timestamp in the upper
// 64 bits of newly created trace ids.
func With128BitTraceIDs(enabled bool) StartOption {
	return func(c *config) { c.enable128Bit = enabled }
}

// WithPartialFlush enables partial flush once a trace segment has at least
// minSpans finished spans still buffered.
func WithPartialFlush(minSpans int) StartOption {
	return func(c *config) {
		c.partialFlushEnabled = true
		if minSpans > 0 {
			c.partialFlushMinSpans = minSpans
		}
	}
}

// WithFlushInterval overrides how often buffered trace chunks are sent to
// the agent.
func WithFlushInterval(d time.Duration) StartOption {
	return func(c *config) { c.flushInterval = d }
}

// WithDebugMode enables verbose debug logging.
func WithDebugMode(enabled bool) StartOption {
	return func(c *config) { c.debug = enabled }
}

// WithLogStartup enables or disables the startup diagnostics log line.
func WithLogStartup(enabled bool) StartOption {
	return func(c *config) { c.logStartup = enabled }
}

// StartSpanOption configures an individual StartSpan call.
type StartSpanOption func(*startSpanConfig)

type startSpanConfig struct {
	parent     *SpanContext
	startTime  time.Time
	service    string
	resource   string
	spanType   string
	tags       map[string]interface{}
	spanID     uint64
	noDebugStack bool
}

// ChildOf sets the parent of the new span. A nil parent starts a new trace.
func ChildOf(ctx *SpanContext) StartSpanOption {
	return func(c *startSpanConfig) { c.parent = ctx }
}

// StartTime overrides the span's start time.
func StartTime(t time.Time) StartSpanOption {
	return func(c *startSpanConfig) { c.startTime = t }
}

// ServiceName sets the span's service, overriding the tracer default.
func ServiceName(name string) StartSpanOption {
	return func(c *startSpanConfig) { c.service = name }
}

// ResourceName sets the span's resource.
func ResourceName(name string) StartSpanOption {
	return func(c *startSpanConfig) { c.resource = name }
}

// SpanType sets the span's type (e.g. "web", "sql").
func SpanType(name string) StartSpanOption {
	return func(c *startSpanConfig) { c.spanType = name }
}

// Tag attaches a tag to the span at creation time.
func Tag(key string, value interface{}) StartSpanOption {
	return func(c *startSpanConfig) {
		if c.tags == nil {
			c.tags = make(map[string]interface{}, 1)
		}
		c.tags[key] = value
	}
}

// WithSpanID forces the new span's id instead of generating one randomly,
// used when reconstructing a span whose id must match an external system.
func WithSpanID(id uint64) StartSpanOption {
	return func(c *startSpanConfig) { c.spanID = id }
}
