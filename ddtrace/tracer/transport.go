// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/segmenttrace/dd-trace-go/internal/version"
)

const (
	defaultAgentHost = "localhost"
	defaultAgentPort = "8126"
	tracesPath       = "/v0.4/traces"

	headerTraceCount  = "X-Datadog-Trace-Count"
	headerContentType = "Content-Type"
)

// agentResponse is the body the agent sends back after accepting a trace
// payload: a set of sampling rates to apply per service/env, keyed exactly
// as TraceSampler.agentRate expects.
type agentResponse struct {
	RateByService map[string]float64 `json:"rate_by_service"`
}

// Transport delivers encoded trace payloads to the Datadog Agent (or any
// v0.4-compatible collector) and returns the agent's rate-by-service update.
type Transport interface {
	Send(ctx context.Context, p payload, itemCount int) (rateByService map[string]float64, err error)
}

// httpTransport is the default Transport, speaking the v0.4 msgpack trace
// protocol over a plain http.Client.
type httpTransport struct {
	url    string
	client *http.Client
}

// NewHTTPTransport builds a Transport posting to the agent reachable at
// addr (host:port), with the given per-request timeout.
func NewHTTPTransport(addr string, timeout time.Duration) Transport {
	return &httpTransport{
		url: "http://" + addr + tracesPath,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				DialContext: (&net.Dialer{
					Timeout: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

func (t *httpTransport) Send(ctx context.Context, p payload, itemCount int) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, p)
	if err != nil {
		return nil, wrapError(CodeAgentHTTPFailure, err, "building request")
	}
	req.Header.Set(headerContentType, "application/msgpack")
	req.Header.Set(headerTraceCount, strconv.Itoa(itemCount))
	req.Header.Set("Datadog-Meta-Lang", "go")
	req.Header.Set("Datadog-Meta-Lang-Version", runtime.Version())
	req.Header.Set("Datadog-Meta-Tracer-Version", version.Tag)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, wrapError(CodeAgentHTTPFailure, err, "sending %d traces to %s", itemCount, t.url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, wrapError(CodeAgentResponseMalformed, err, "reading agent response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(CodeAgentHTTPFailure, "agent responded %s: %s", resp.Status, string(body))
	}
	if len(body) == 0 {
		return nil, nil
	}
	var ar agentResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, wrapError(CodeAgentResponseMalformed, err, "decoding agent response: %s", string(body))
	}
	return ar.RateByService, nil
}

// AgentAddr formats an agent host:port pair, defaulting each half.
func AgentAddr(host, port string) string {
	if host == "" {
		host = defaultAgentHost
	}
	if port == "" {
		port = defaultAgentPort
	}
	return fmt.Sprintf("%s:%s", host, port)
}
