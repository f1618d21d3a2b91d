package encoder

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
	"github.com/kailas-cloud/ragpipe/internal/usecase/indexcache"
)

func newTestService(emb *mockEmbedder, tr *mockTransformer, cache *indexcache.Cache) *Service {
	vecs := map[string]Vectorizer{}
	if emb != nil {
		vecs["minilm"] = Vectorizer{Documents: emb, Queries: emb}
	}
	var transformer domain.Transformer
	if tr != nil {
		transformer = tr
	}
	if cache == nil {
		return New(vecs, transformer, nil, Metrics{}, zap.NewNop())
	}
	return New(vecs, transformer, cache, Metrics{}, zap.NewNop())
}

func TestBuild_BM25(t *testing.T) {
	s := newTestService(nil, nil, nil)
	ctx := context.Background()
	state := newTestState(t, "healthcare clinics")

	docs, err := s.Build(ctx, rep.MustParse(".description#sparse"), pipeline.RepConfig{Encoder: BM25}, state)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if docs.Kind() != index.KindSparse || docs.Len() != 3 {
		t.Fatalf("unexpected index kind=%s len=%d", docs.Kind(), docs.Len())
	}

	query, err := s.Build(ctx, rep.MustParse("query.text#sparse"), pipeline.RepConfig{Encoder: BM25}, state)
	if err != nil {
		t.Fatalf("Build query: %v", err)
	}
	q, err := query.QueryRep()
	if err != nil || q.Text != "healthcare clinics" {
		t.Fatalf("QueryRep = %+v, %v", q, err)
	}

	results, err := docs.Retrieve(ctx, q, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 || results[0].ID() != "[1].description" {
		t.Fatalf("expected [1].description first, got %+v", results)
	}
}

func TestBuild_Vectorizer(t *testing.T) {
	emb := &mockEmbedder{}
	s := newTestService(emb, nil, nil)

	idx, err := s.Build(context.Background(), rep.MustParse(".name#dense"),
		pipeline.RepConfig{Encoder: "minilm"}, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, ok := idx.(*index.Dense)
	if !ok || d.Len() != 3 || d.Dim() != 2 || d.Stored() {
		t.Fatalf("unexpected dense index %+v", idx)
	}
	if len(emb.texts) != 3 || emb.texts[0] != "SaferCodes" {
		t.Errorf("embedded texts = %v", emb.texts)
	}
}

func TestBuild_QueryUsesQueryEmbedder(t *testing.T) {
	docEmb, queryEmb := &mockEmbedder{}, &mockEmbedder{}
	s := New(map[string]Vectorizer{"minilm": {Documents: docEmb, Queries: queryEmb}},
		nil, nil, Metrics{}, zap.NewNop())

	if _, err := s.Build(context.Background(), rep.MustParse("query.text#dense"),
		pipeline.RepConfig{Encoder: "minilm"}, newTestState(t, "clinic")); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(docEmb.texts) != 0 || len(queryEmb.texts) != 1 {
		t.Errorf("doc=%v query=%v", docEmb.texts, queryEmb.texts)
	}
}

func TestBuild_PassthroughField(t *testing.T) {
	s := newTestService(nil, nil, nil)

	idx, err := s.Build(context.Background(), rep.MustParse(".#_alt"),
		pipeline.RepConfig{Encoder: Passthrough}, newTestState(t, ""))
	if err == nil {
		t.Fatalf("expected error: third document has no alt, got %+v", idx)
	}

	idx, err = s.Build(context.Background(), rep.MustParse(".#_name"),
		pipeline.RepConfig{Encoder: Passthrough}, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	items := idx.(index.ItemSource).Items()
	if items.Len() != 3 || items.Values[1] != "Healthy" || items.Paths[1] != "[1]" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestBuild_LLMTransform(t *testing.T) {
	tr := &mockTransformer{}
	s := newTestService(nil, tr, nil)
	cfg := pipeline.RepConfig{
		Encoder: "llm-keywords",
		Options: map[string]any{"prompt": "keywords: {text}", "query_prompt": "query: {text}", "concurrency": 2},
	}

	idx, err := s.Build(context.Background(), rep.MustParse(".name#kw"), cfg, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	items := idx.(index.ItemSource).Items()
	if idx.Kind() != index.KindObject || items.Values[0] != "KEYWORDS: SAFERCODES" {
		t.Fatalf("unexpected items %+v", items)
	}

	q, err := s.Build(context.Background(), rep.MustParse("query.text#kw"), cfg, newTestState(t, "clinic"))
	if err != nil {
		t.Fatalf("Build query: %v", err)
	}
	qr, _ := q.QueryRep()
	if qr.Text != "QUERY: CLINIC" {
		t.Errorf("query transform = %q", qr.Text)
	}
}

func TestBuild_LLMWithoutProvider(t *testing.T) {
	s := newTestService(nil, nil, nil)
	_, err := s.Build(context.Background(), rep.MustParse(".name#kw"),
		pipeline.RepConfig{Encoder: "llm"}, newTestState(t, ""))
	if !errors.Is(err, domain.ErrBuild) {
		t.Fatalf("expected ErrBuild, got %v", err)
	}
}

func TestBuild_NoIndex(t *testing.T) {
	s := newTestService(nil, nil, nil)
	idx, err := s.Build(context.Background(), rep.MustParse(".name#exact"),
		pipeline.RepConfig{Encoder: NoIndex}, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Kind() != index.KindNoop {
		t.Fatalf("kind = %s", idx.Kind())
	}
	if _, err := idx.Retrieve(context.Background(), index.Query{}, 1); !errors.Is(err, domain.ErrUnsupportedMethod) {
		t.Errorf("noop Retrieve: expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestBuild_UnknownEncoder(t *testing.T) {
	s := newTestService(nil, nil, nil)
	_, err := s.Build(context.Background(), rep.MustParse(".name#x"),
		pipeline.RepConfig{Encoder: "word2vec"}, newTestState(t, ""))

	var unknown *domain.UnknownEncoderError
	if !errors.As(err, &unknown) || unknown.Encoder != "word2vec" {
		t.Fatalf("expected UnknownEncoderError, got %v", err)
	}
	if !errors.Is(err, domain.ErrUnsupportedMethod) {
		t.Error("unknown encoder must be ErrUnsupportedMethod")
	}
}

func TestBuild_EmbedderFailureIsBuildError(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("provider down")}
	builds := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "builds_total"}, []string{"encoder", "kind", "status"})
	s := New(map[string]Vectorizer{"minilm": {Documents: emb}}, nil, nil, Metrics{Builds: builds}, zap.NewNop())

	_, err := s.Build(context.Background(), rep.MustParse(".name#dense"),
		pipeline.RepConfig{Encoder: "minilm"}, newTestState(t, ""))

	var be *domain.BuildError
	if !errors.As(err, &be) || be.Key != ".name#dense" || be.Encoder != "minilm" {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if v := testutil.ToFloat64(builds.WithLabelValues("minilm", "", "error")); v != 1 {
		t.Errorf("error builds = %v, want 1", v)
	}
}

func TestBuild_BadFieldPath(t *testing.T) {
	s := newTestService(nil, nil, nil)
	_, err := s.Build(context.Background(), rep.MustParse("query.text#sparse"),
		pipeline.RepConfig{Encoder: BM25}, newTestState(t, ""))
	if !errors.Is(err, domain.ErrBuild) {
		t.Fatalf("expected ErrBuild without an attached query, got %v", err)
	}
}

func TestBuild_StoredDenseUsesIndexCache(t *testing.T) {
	emb := &mockEmbedder{}
	backend := newMockBackend()
	cache := indexcache.New(backend, nil, zap.NewNop())
	s := newTestService(emb, nil, cache)
	cfg := pipeline.RepConfig{Encoder: "minilm", Store: true}
	k := rep.MustParse(".description#dense")

	first, err := s.Build(context.Background(), k, cfg, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d := first.(*index.Dense); !d.Stored() {
		t.Fatal("expected a stored dense index")
	}
	if len(backend.denseNames) != 1 || backend.denseNames[0] != "description__dense_e4237655:minilm" {
		t.Fatalf("dense writes = %v", backend.denseNames)
	}

	second, err := s.Build(context.Background(), k, cfg, newTestState(t, ""))
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if second != first {
		t.Error("expected the cached index on the second build")
	}
	if len(emb.texts) != 3 {
		t.Errorf("documents embedded %d times, want once (3 texts)", len(emb.texts))
	}

	// a new process with an empty in-memory cache reopens from the registry
	fresh := newTestService(emb, nil, indexcache.New(backend, nil, zap.NewNop()))
	reopened, err := fresh.Build(context.Background(), k, cfg, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build after restart: %v", err)
	}
	if reopened.Len() != 3 || len(emb.texts) != 3 {
		t.Errorf("expected reopen without re-embedding, len=%d texts=%d", reopened.Len(), len(emb.texts))
	}
}

func TestBuild_StoredSparseFallsBackWithoutTextSearch(t *testing.T) {
	backend := newMockBackend()
	backend.noText = true
	s := newTestService(nil, nil, indexcache.New(backend, nil, zap.NewNop()))

	idx, err := s.Build(context.Background(), rep.MustParse(".description#sparse"),
		pipeline.RepConfig{Encoder: BM25, Store: true}, newTestState(t, ""))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.(*index.Sparse).Stored() || len(backend.textNames) != 0 {
		t.Fatal("sparse index must stay in memory without text search")
	}
}

func TestBuild_QuerySideNeverCached(t *testing.T) {
	emb := &mockEmbedder{}
	backend := newMockBackend()
	cache := indexcache.New(backend, nil, zap.NewNop())
	s := newTestService(emb, nil, cache)

	if _, err := s.Build(context.Background(), rep.MustParse("query.text#dense"),
		pipeline.RepConfig{Encoder: "minilm", Store: true}, newTestState(t, "clinic")); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cache.Len() != 0 || len(backend.denseNames) != 0 {
		t.Error("query representations must not be cached or stored")
	}
}

func TestValidatePipeline(t *testing.T) {
	cfgWith := func(rc pipeline.RepConfig) *pipeline.Config {
		return &pipeline.Config{Representations: map[string]map[string]pipeline.RepConfig{
			".description": {"r": rc},
		}}
	}

	tests := []struct {
		name    string
		svc     *Service
		rc      pipeline.RepConfig
		wantErr error
	}{
		{"bm25", newTestService(nil, nil, nil), pipeline.RepConfig{Encoder: BM25, Enabled: true}, nil},
		{"configured vectorizer", newTestService(&mockEmbedder{}, nil, nil), pipeline.RepConfig{Encoder: "minilm", Enabled: true}, nil},
		{"unknown vectorizer", newTestService(nil, nil, nil), pipeline.RepConfig{Encoder: "minilm", Enabled: true}, domain.ErrUnsupportedMethod},
		{"disabled is skipped", newTestService(nil, nil, nil), pipeline.RepConfig{Encoder: "minilm"}, nil},
		{"llm without provider", newTestService(nil, nil, nil), pipeline.RepConfig{Encoder: "llm", Enabled: true}, domain.ErrConfiguration},
		{"llm with provider", newTestService(nil, &mockTransformer{}, nil), pipeline.RepConfig{Encoder: "llm_summary", Enabled: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.svc.ValidatePipeline(cfgWith(tt.rc))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
