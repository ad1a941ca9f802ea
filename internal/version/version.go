// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package version exposes the tracer's own release tag, reported in startup
// diagnostics and the Datadog-Meta-Tracer-Version header.
package version

// Tag is the tracer's release version, reported to the agent and printed in
// the startup diagnostic log.
const Tag = "1.0.0-dev"
