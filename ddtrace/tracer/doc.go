// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package tracer implements a Datadog-compatible distributed tracing
// client: spans and trace segments, context propagation across the
// Datadog, W3C tracecontext, and B3 header styles, trace- and span-level
// sampling, and a collector that batches and ships finished traces to an
// agent over the v0.4 msgpack protocol.
package tracer
