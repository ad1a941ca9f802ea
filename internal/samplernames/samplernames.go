// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package samplernames enumerates the mechanisms by which a sampling decision
// can be made, and their encoding as the `_dd.p.dm` decision-maker tag suffix.
package samplernames

// SamplerName identifies which component decided a trace's sampling priority.
type SamplerName int

const (
	// Unknown is the zero value; no decision-maker tag is written for it.
	Unknown SamplerName = iota
	// Default is the tracer's own default sample rate.
	Default
	// AgentRate is a per-service/env rate pushed down by the agent.
	AgentRate
	// Rule is a user-configured trace sampling rule.
	Rule
	// Manual is an explicit SetTag(ext.ManualKeep/ManualDrop, true) call.
	Manual
	// Remote is a sampling priority that arrived via propagation.
	Remote
	// AppSec is a decision forced by the security product (kept for tag
	// compatibility with the wire format; this module never sets it itself).
	AppSec
)

// dmValue maps a SamplerName to the string written into `_dd.p.dm`, matching
// the wire encoding documented in the agent's ingestion pipeline.
var dmValue = map[SamplerName]string{
	Default:   "-0",
	AgentRate: "-1",
	Rule:      "-3",
	Manual:    "-4",
	AppSec:    "-5",
	Remote:    "-6",
}

// DecisionMaker returns the `_dd.p.dm` value for s, and ok=false if s carries
// no decision-maker tag (Unknown).
func DecisionMaker(s SamplerName) (value string, ok bool) {
	v, ok := dmValue[s]
	return v, ok
}

func (s SamplerName) String() string {
	switch s {
	case Default:
		return "default"
	case AgentRate:
		return "agent_rate"
	case Rule:
		return "rule"
	case Manual:
		return "manual"
	case Remote:
		return "remote"
	case AppSec:
		return "appsec"
	default:
		return "unknown"
	}
}
