package chi

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/usecase/health"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

type answerCall struct {
	query string
	opts  retriever.AnswerOptions
	state *pipeline.State
}

type mockAnswerer struct {
	results []result.Result
	err     error
	def     string
	calls   []answerCall
	panics  bool
}

func (m *mockAnswerer) Answer(
	_ context.Context, query string, state *pipeline.State, opts retriever.AnswerOptions,
) ([]result.Result, error) {
	if m.panics {
		panic("boom")
	}
	state.AttachQuery(query)
	m.calls = append(m.calls, answerCall{query: query, opts: opts, state: state})
	return m.results, m.err
}

func (m *mockAnswerer) DefaultMerge() string { return m.def }

type mockHealth struct {
	report health.Report
}

func (m *mockHealth) Check(context.Context) health.Report { return m.report }

func newTestState(t *testing.T) *pipeline.State {
	t.Helper()
	s, err := pipeline.NewState(document.NewCollection([]map[string]any{
		{"name": "SaferCodes"},
		{"name": "Healthy"},
	}), document.LeafRaw)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func testPipeline() *pipeline.Config {
	return &pipeline.Config{
		Merges: []pipeline.MergeConfig{
			{Name: "rrf", Method: "reciprocal_rank", Bridges: []string{"sparse", "dense"}, Limit: 5},
			{Name: "only_dense", Method: "expr", Expr: "dense"},
		},
	}
}

func newTestServer(t *testing.T, a *mockAnswerer, h *mockHealth) (*Server, *pipeline.State) {
	t.Helper()
	if h == nil {
		h = &mockHealth{report: health.Report{Status: health.Healthy, Checks: map[string]health.CheckResult{}}}
	}
	state := newTestState(t)
	return NewServer(a, state, testPipeline(), h, Options{}, zap.NewNop()), state
}
