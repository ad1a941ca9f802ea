// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/segmenttrace/dd-trace-go/internal/log"
	"github.com/segmenttrace/dd-trace-go/internal/version"
)

// startupInfo is the diagnostic snapshot logged once at Start, giving
// operators a single structured line to grep for when a service's traces
// aren't showing up.
type startupInfo struct {
	Date         string  `json:"date"`
	Lang         string  `json:"lang"`
	LangVersion  string  `json:"lang_version"`
	Architecture string  `json:"architecture"`
	TracerVersion string `json:"tracer_version"`

	Service string `json:"service"`
	Env     string `json:"env"`
	Version string `json:"dd_version"`

	AgentURL   string `json:"agent_url"`
	AgentError string `json:"agent_error,omitempty"`

	Debug              bool    `json:"debug"`
	SampleRate         float64 `json:"sample_rate"`
	SampleRateLimit    float64 `json:"sample_rate_limit"`
	TraceSamplingRules int     `json:"trace_sampling_rules"`
	SpanSamplingRules  int     `json:"span_sampling_rules"`

	PropagationStylesExtract []string `json:"propagation_styles_extract"`
	PropagationStylesInject  []string `json:"propagation_styles_inject"`
	Enable128BitTraceIDs     bool     `json:"128_bit_trace_id_generation_enabled"`

	PartialFlushEnabled  bool `json:"partial_flush_enabled"`
	PartialFlushMinSpans int  `json:"partial_flush_min_spans"`

	Tags map[string]string `json:"tags"`
}

// checkEndpoint probes the agent with a zero-length msgpack array so Start
// can report whether the configured agent address is actually reachable.
func checkEndpoint(client *http.Client, url string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte{0x90}))
	if err != nil {
		return fmt.Errorf("building diagnostic request: %w", err)
	}
	req.Header.Set(headerTraceCount, "0")
	req.Header.Set(headerContentType, "application/msgpack")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// logStartup emits one structured JSON log line describing the tracer's
// resolved configuration.
func logStartup(cfg *config) {
	agentURL := "http://" + AgentAddr(cfg.agentHost, cfg.agentPort) + tracesPath
	info := startupInfo{
		Date:                 time.Now().Format(time.RFC3339),
		Lang:                 "Go",
		LangVersion:          runtime.Version(),
		Architecture:         runtime.GOARCH,
		TracerVersion:        version.Tag,
		Service:              cfg.serviceName,
		Env:                  cfg.env,
		Version:              cfg.version,
		AgentURL:             agentURL,
		Debug:                cfg.debug,
		SampleRate:           float64(cfg.sampleRate),
		SampleRateLimit:      cfg.maxTracesPerSecond,
		TraceSamplingRules:   len(cfg.traceRules),
		SpanSamplingRules:    len(cfg.spanRules),
		PropagationStylesExtract: cfg.extractPropagationStyles,
		PropagationStylesInject:  cfg.injectPropagationStyles,
		Enable128BitTraceIDs:     cfg.enable128Bit,
		PartialFlushEnabled:  cfg.partialFlushEnabled,
		PartialFlushMinSpans: cfg.partialFlushMinSpans,
		Tags:                 cfg.globalTags,
	}
	if err := checkEndpoint(&http.Client{Timeout: 2 * time.Second}, agentURL); err != nil {
		info.AgentError = err.Error()
		log.Warn("DIAGNOSTICS unable to reach agent at %s: %s", agentURL, err)
	}
	bs, err := json.Marshal(info)
	if err != nil {
		log.Warn("DIAGNOSTICS failed to marshal startup info: %s", err)
		return
	}
	log.Info("DATADOG TRACER CONFIGURATION %s", string(bs))
}
