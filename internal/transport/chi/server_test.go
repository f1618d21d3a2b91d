package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/usecase/health"
)

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func TestAnswerPost(t *testing.T) {
	a := &mockAnswerer{
		def: "rrf",
		results: []result.Result{
			result.NewInline("[1].name", 0.032, "Healthy"),
			result.NewInline("[0].name", 0.016, "SaferCodes"),
		},
	}
	s, state := newTestServer(t, a, nil)
	h := NewRouter(s, nil, zap.NewNop())

	rr := do(t, h, http.MethodPost, "/v1/answer", `{"query":"  healthcare  ","query_id":"q-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Query-ID") != "q-1" {
		t.Errorf("X-Query-ID = %q", rr.Header().Get("X-Query-ID"))
	}

	resp := decode[AnswerResponse](t, rr)
	if resp.QueryID != "q-1" || resp.Merge != "rrf" {
		t.Errorf("unexpected response header fields: %+v", resp)
	}
	if len(resp.Results) != 2 || resp.Results[0].ID != "[1].name" || resp.Results[0].Content != "Healthy" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}

	if len(a.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(a.calls))
	}
	call := a.calls[0]
	if call.query != "healthcare" || call.opts.QueryID != "q-1" || call.opts.Merge != "" {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.state == state || state.HasQuery() {
		t.Error("request must evaluate on a fork of the shared state")
	}
}

func TestAnswerGet(t *testing.T) {
	a := &mockAnswerer{def: "rrf"}
	s, _ := newTestServer(t, a, nil)
	h := NewRouter(s, nil, zap.NewNop())

	rr := do(t, h, http.MethodGet, "/v1/answer?q=covid+apps&merge=only_dense", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[AnswerResponse](t, rr)
	if resp.Merge != "only_dense" {
		t.Errorf("merge = %q", resp.Merge)
	}
	if resp.QueryID == "" {
		t.Error("expected generated query id")
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty result list, got %+v", resp.Results)
	}
	if a.calls[0].query != "covid apps" || a.calls[0].opts.Merge != "only_dense" {
		t.Errorf("unexpected call: %+v", a.calls[0])
	}
	if a.calls[0].opts.QueryID != resp.QueryID {
		t.Errorf("generated id %q not forwarded (%q)", resp.QueryID, a.calls[0].opts.QueryID)
	}
}

func TestAnswer_BadRequests(t *testing.T) {
	s, _ := newTestServer(t, &mockAnswerer{}, nil)
	h := NewRouter(s, nil, zap.NewNop())

	tests := []struct {
		name, method, target, body string
	}{
		{"missing q", http.MethodGet, "/v1/answer", ""},
		{"blank q", http.MethodGet, "/v1/answer?q=+", ""},
		{"bad json", http.MethodPost, "/v1/answer", "{"},
		{"empty query", http.MethodPost, "/v1/answer", `{"query":""}`},
		{"too long", http.MethodPost, "/v1/answer", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", maxQueryLength+1))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, tc.method, tc.target, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400: %s", rr.Code, rr.Body.String())
			}
			if resp := decode[ErrorResponse](t, rr); resp.Code != CodeBadRequest {
				t.Errorf("code = %s", resp.Code)
			}
		})
	}
}

func TestAnswer_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"unknown merge", &domain.UnknownNameError{Kind: "merge", Name: "nope"}, http.StatusNotFound, CodeMergeNotFound},
		{"undeclared bridge", &domain.UnknownNameError{Kind: "bridge", Name: "b", From: "rrf"},
			http.StatusInternalServerError, CodeConfiguration},
		{"unsupported", &domain.UnsupportedMergeMethodError{Merge: "m", Method: "x"},
			http.StatusNotImplemented, CodeUnsupportedMethod},
		{"unresolved", &domain.UnresolvedReferenceError{ID: "[9].name", Position: 0},
			http.StatusInternalServerError, CodeUnresolved},
		{"build", &domain.BuildError{Key: "k", Encoder: "e", Err: errors.New("x")},
			http.StatusInternalServerError, CodeBuildFailed},
		{"provider inside build", &domain.BuildError{Key: "k", Encoder: "e", Err: domain.ErrEmbeddingProviderError},
			http.StatusBadGateway, CodeProviderError},
		{"llm", fmt.Errorf("transform: %w", domain.ErrTransformProviderError), http.StatusBadGateway, CodeProviderError},
		{"timeout", fmt.Errorf("embed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, &mockAnswerer{err: tc.err}, nil)
			rr := do(t, NewRouter(s, nil, zap.NewNop()), http.MethodPost, "/v1/answer", `{"query":"q"}`)
			if rr.Code != tc.status {
				t.Fatalf("status %d, want %d", rr.Code, tc.status)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Code != tc.code {
				t.Errorf("code = %s, want %s", resp.Code, tc.code)
			}
			if tc.code == CodeInternalError && resp.Message != "internal error" {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

func TestListMerges(t *testing.T) {
	s, _ := newTestServer(t, &mockAnswerer{def: "rrf"}, nil)
	rr := do(t, NewRouter(s, nil, zap.NewNop()), http.MethodGet, "/v1/merges", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	resp := decode[MergeListResponse](t, rr)
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 merges, got %d", len(resp.Items))
	}
	first, second := resp.Items[0], resp.Items[1]
	if first.Name != "rrf" || !first.Default || first.Limit != 5 || len(first.Bridges) != 2 {
		t.Errorf("unexpected first merge: %+v", first)
	}
	if second.Name != "only_dense" || second.Default || second.Limit != 10 || second.Bridges == nil {
		t.Errorf("unexpected second merge: %+v", second)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status health.Status
		code   int
	}{
		{health.Healthy, http.StatusOK},
		{health.Degraded, http.StatusOK},
		{health.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			h := &mockHealth{report: health.Report{
				Status: tc.status,
				Checks: map[string]health.CheckResult{"database": health.CheckOK},
			}}
			s, _ := newTestServer(t, &mockAnswerer{}, h)
			rr := do(t, NewRouter(s, []string{"secret"}, zap.NewNop()), http.MethodGet, "/health", "")
			if rr.Code != tc.code {
				t.Fatalf("status %d, want %d", rr.Code, tc.code)
			}
			resp := decode[HealthResponse](t, rr)
			if resp.Status != string(tc.status) || resp.Checks["database"] != "ok" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestRouter_AuthAndRequestID(t *testing.T) {
	s, _ := newTestServer(t, &mockAnswerer{}, nil)
	h := NewRouter(s, []string{"secret"}, zap.NewNop())

	rr := do(t, h, http.MethodGet, "/v1/merges", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/merges", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_NotFound(t *testing.T) {
	s, _ := newTestServer(t, &mockAnswerer{}, nil)
	rr := do(t, NewRouter(s, nil, zap.NewNop()), http.MethodGet, "/v2/answer", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Message != "route not found" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	rr = do(t, NewRouter(s, nil, zap.NewNop()), http.MethodDelete, "/v1/answer", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestRecoverJSON(t *testing.T) {
	s, _ := newTestServer(t, &mockAnswerer{panics: true}, nil)
	rr := do(t, NewRouter(s, nil, zap.NewNop()), http.MethodPost, "/v1/answer", `{"query":"q"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeInternalError {
		t.Errorf("code = %s", resp.Code)
	}
}
