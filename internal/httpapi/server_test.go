package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"sdworker/pkg/types"
)

type mockService struct {
	out  json.RawMessage
	got  types.Job
	ctxs []context.Context
}

func (m *mockService) Handle(ctx context.Context, job types.Job) json.RawMessage {
	m.got = job
	m.ctxs = append(m.ctxs, ctx)
	return m.out
}

func postRunSync(h http.Handler, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/runsync", bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRunSyncCompleted(t *testing.T) {
	svc := &mockService{out: json.RawMessage(`{"images":["abc"]}`)}
	rec := postRunSync(NewMux(svc), `{"input":{"prompt":"a cat"}}`, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp types.RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Status != types.StatusCompleted || string(resp.Output) != `{"images":["abc"]}` {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.ID, "test-") || resp.ID != svc.got.ID {
		t.Fatalf("job id=%q handler saw %q", resp.ID, svc.got.ID)
	}
	if string(svc.got.Input) != `{"prompt":"a cat"}` {
		t.Fatalf("handler input=%s", svc.got.Input)
	}
}

func TestRunSyncFailedOutput(t *testing.T) {
	svc := &mockService{out: json.RawMessage(`{"error":"connection refused"}`)}
	rec := postRunSync(NewMux(svc), `{"input":{}}`, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp types.RunResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != types.StatusFailed {
		t.Fatalf("expected FAILED, got %+v", resp)
	}
}

func TestRunSyncRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name, body, ct string
		want           int
	}{
		{"no content type", `{"input":{}}`, "", http.StatusUnsupportedMediaType},
		{"text content type", `{"input":{}}`, "text/plain", http.StatusUnsupportedMediaType},
		{"invalid json", `{"input":`, "application/json", http.StatusBadRequest},
		{"missing input", `{"id":"x"}`, "application/json", http.StatusBadRequest},
		{"null input", `{"input":null}`, "application/json; charset=utf-8", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{out: json.RawMessage(`{}`)}
			rec := postRunSync(NewMux(svc), tc.body, tc.ct)
			if rec.Code != tc.want {
				t.Fatalf("status=%d want %d", rec.Code, tc.want)
			}
			var e types.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" || e.Code != tc.want {
				t.Fatalf("bad error payload: %s", rec.Body.String())
			}
			if len(svc.ctxs) != 0 {
				t.Fatalf("handler must not run")
			}
		})
	}
}

func TestRunSyncBodyLimit(t *testing.T) {
	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	svc := &mockService{out: json.RawMessage(`{}`)}
	rec := postRunSync(NewMux(svc), `{"input":{"prompt":"a very long prompt"}}`, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRunSyncUsesBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	SetBaseContext(base)
	defer SetBaseContext(nil)

	svc := &mockService{out: json.RawMessage(`{}`)}
	postRunSync(NewMux(svc), `{"input":{}}`, "application/json")
	if len(svc.ctxs) != 1 || svc.ctxs[0].Value(key{}) != "base" {
		t.Fatalf("job should run on the server base context")
	}
}

func TestRunSyncLogsWithZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	svc := &mockService{out: json.RawMessage(`{}`)}
	postRunSync(NewMux(svc), `{"input":{}}`, "application/json")
	if !strings.Contains(buf.String(), "runsync start") || !strings.Contains(buf.String(), "runsync end") {
		t.Fatalf("missing log lines: %s", buf.String())
	}
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
}

func TestCORSHeaders(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	h := NewMux(&mockService{out: json.RawMessage(`{}`)})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/runsync", "POST", "200"))
	postRunSync(h, `{"input":{}}`, "application/json")
	if after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/runsync", "POST", "200")); after != before+1 {
		t.Fatalf("requests_total: before=%v after=%v", before, after)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "sdworker_http_requests_total") {
		t.Fatalf("metrics endpoint missing series: %d", rec.Code)
	}
}

func TestOutputError(t *testing.T) {
	if msg, ok := outputError(json.RawMessage(`{"error":"boom"}`)); !ok || msg != "boom" {
		t.Fatalf("got %q %v", msg, ok)
	}
	for _, in := range []string{`{"images":[]}`, `[]`, `not json`} {
		if _, ok := outputError(json.RawMessage(in)); ok {
			t.Fatalf("%s should not be an error output", in)
		}
	}
}
