// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func startFakeAgent(t *testing.T, onRequest func(r *http.Request)) *httptest.Server {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if onRequest != nil {
			onRequest(r)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"rate_by_service": map[string]float64{}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func agentAddr(t *testing.T, srv *httptest.Server) (host, port string) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	return u.Hostname(), u.Port()
}

func TestStartSpanFinishAndStopFlushesToAgent(t *testing.T) {
	var gotTraceCount string
	srv := startFakeAgent(t, func(r *http.Request) {
		gotTraceCount = r.Header.Get(headerTraceCount)
	})
	host, port := agentAddr(t, srv)

	Start(
		WithAgentAddr(host, port),
		WithLogStartup(false),
		WithFlushInterval(time.Hour),
		WithService("checkout"),
	)

	root := StartSpan("web.request", ServiceName("checkout"), ResourceName("GET /cart"))
	child := root.StartChild("db.query")
	child.Finish()
	root.Finish()

	Stop()

	if gotTraceCount == "" {
		t.Fatal("expected the final flush on Stop to reach the fake agent")
	}
	if gotTraceCount != "1" {
		t.Errorf("trace count header = %q, want %q", gotTraceCount, "1")
	}
}

func TestStartSpanWithoutStartProducesUsableSpan(t *testing.T) {
	Stop()
	sp := StartSpan("standalone")
	if sp.context.traceID.Empty() {
		t.Fatal("a span started without Start should still get a valid trace id")
	}
	sp.Finish()
}

func TestExtractInjectRoundTripThroughActiveTracer(t *testing.T) {
	srv := startFakeAgent(t, nil)
	host, port := agentAddr(t, srv)
	Start(WithAgentAddr(host, port), WithLogStartup(false), WithFlushInterval(time.Hour))
	defer Stop()

	root := StartSpan("web.request")
	carrier := HTTPHeadersCarrier(http.Header{})
	if err := Inject(root.Context(), carrier); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	got, err := Extract(carrier)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.TraceID() != root.Context().TraceID() {
		t.Errorf("round-tripped trace id mismatch: got %s, want %s", got.TraceID(), root.Context().TraceID())
	}
	root.Finish()
}

func TestChildSpanSharesTraceAndGetsParentID(t *testing.T) {
	Stop()
	root := StartSpan("parent")
	child := root.StartChild("child")
	if child.parentID != root.SpanID() {
		t.Errorf("child.parentID = %d, want %d", child.parentID, root.SpanID())
	}
	if child.Context().TraceID() != root.Context().TraceID() {
		t.Error("child should share the parent's trace id")
	}
	child.Finish()
	root.Finish()
}
