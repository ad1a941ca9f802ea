// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

// Well-known internal tag keys written by the sampler and propagation layers.
const (
	keySamplingPriority = "_sampling_priority_v1"
	keyDecisionMaker     = "_dd.p.dm"
	keyOrigin            = "_dd.origin"
	keyAgentPSR          = "_dd.agent_psr"
	keyRulePSR           = "_dd.rule_psr"
	keyLimitPSR          = "_dd.limit_psr"
	keyTraceID128        = "_dd.p.tid"
	keyPropagationError  = "_dd.propagation_error"
	keyHostname          = "_dd.hostname"

	keySpanSamplingMechanism      = "_dd.span_sampling.mechanism"
	keySingleSpanSamplingRuleRate = "_dd.span_sampling.rule_rate"
	keySingleSpanSamplingMPS      = "_dd.span_sampling.max_per_second"

	keyDroppedSegments = "_dd.tracer.dropped_segments"
)
