// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package ext holds the string and integer constants shared across the tracer's
// public surface: sampling priorities and well-known tag keys.
package ext

// Sampling priorities, as carried by the `_sampling_priority_v1` metric and the
// Datadog/W3C propagation headers.
const (
	PriorityUserReject = -1
	PriorityAutoReject = 0
	PriorityAutoKeep   = 1
	PriorityUserKeep   = 2
)

// Well-known tag keys recognized specially by Span.SetTag.
const (
	// Error marks a span as having failed; accepts bool, error, or nil.
	Error = "error"
	// ErrorMsg, ErrorType and ErrorStack hold the decomposed error tag.
	ErrorMsg   = "error.msg"
	ErrorType  = "error.type"
	ErrorStack = "error.stack"

	// ManualKeep and ManualDrop force a sampling decision when set to true.
	ManualKeep = "manual.keep"
	ManualDrop = "manual.drop"

	// SpanName, ServiceName, ResourceName and SpanType let SetTag rewrite the
	// span's core fields through the generic tag API.
	SpanName     = "span.name"
	ServiceName  = "service.name"
	ResourceName = "resource.name"
	SpanType     = "span.type"
)
