package ragpipe

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

// --- answerUseCase mock ---

type mockAnswers struct {
	mu      sync.Mutex
	states  []*pipeline.State
	opts    []retriever.AnswerOptions
	warmed  []string
	results []result.Result
	err     error
	def     string
}

func (m *mockAnswers) Answer(
	_ context.Context, query string, state *pipeline.State, opts retriever.AnswerOptions,
) ([]result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.AttachQuery(query)
	m.states = append(m.states, state)
	m.opts = append(m.opts, opts)
	return m.results, m.err
}

func (m *mockAnswers) Warm(_ context.Context, _ *pipeline.State, mergeNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmed = append(m.warmed, mergeNames...)
	return m.err
}

func (m *mockAnswers) DefaultMerge() string { return m.def }

// keywordEmbedder maps text to (has "health", has "fashion", 1).
type keywordEmbedder struct {
	mu     sync.Mutex
	calls  int
	batchs int
	fail   bool
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return EmbeddingResult{}, errors.New("provider down")
	}
	return EmbeddingResult{Embedding: keywordVector(text), TotalTokens: len(strings.Fields(text))}, nil
}

func keywordVector(text string) []float32 {
	t := strings.ToLower(text)
	v := []float32{0, 0, 1}
	if strings.Contains(t, "health") {
		v[0] = 1
	}
	if strings.Contains(t, "fashion") {
		v[1] = 1
	}
	return v
}

// batchKeywordEmbedder adds the batch path.
type batchKeywordEmbedder struct {
	keywordEmbedder
}

func (e *batchKeywordEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchs++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return BatchEmbeddingResult{Embeddings: out}, nil
}

type upperTransformer struct {
	err error
}

func (u *upperTransformer) Transform(_ context.Context, prompt string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return strings.ToUpper(prompt), nil
}

const testPipeline = `
representations:
  query.text:
    sparse:
      encoder: bm25
    dense:
      encoder: kw
  .description:
    sparse:
      encoder: bm25
    dense:
      encoder: kw

bridges:
  b_sparse:
    repnodes: query.text#sparse, .description#sparse
  b_dense:
    repnodes: query.text#dense, .description#dense

merges:
  hybrid:
    method: reciprocal_rank
    bridges: [b_sparse, b_dense]
    limit: 3
  dense_only:
    method: expr
    expr: b_dense
    limit: 2
`

func testDocs() []map[string]any {
	return []map[string]any{
		{"name": "SaferCodes", "description": "QR codes systems for COVID-19 contact tracing"},
		{"name": "Healthy", "description": "healthcare startup helping clinics"},
		{"name": "Trendy", "description": "fashion marketplace"},
		{"name": "Medi", "description": "healthcare records"},
	}
}
