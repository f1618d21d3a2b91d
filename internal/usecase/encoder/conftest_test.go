package encoder

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/repository/indexstore"
)

// mockEmbedder maps each text to a 2-d vector: (len(text), 1).
type mockEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := m.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	m.texts = append(m.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type mockTransformer struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (m *mockTransformer) Transform(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.prompts = append(m.prompts, prompt)
	return strings.ToUpper(prompt), nil
}

// mockBackend implements indexcache.Backend and counts writes.
type mockBackend struct {
	mu         sync.Mutex
	records    map[string]indexstore.Record
	denseNames []string
	textNames  []string
	noText     bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{records: make(map[string]indexstore.Record)}
}

func (m *mockBackend) CreateDense(_ context.Context, name string, _ int, _ []string, _ [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denseNames = append(m.denseNames, name)
	return nil
}

func (m *mockBackend) SearchDense(context.Context, string, []float32, int) ([]result.Result, error) {
	return nil, nil
}

func (m *mockBackend) CreateText(_ context.Context, name string, _, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textNames = append(m.textNames, name)
	return nil
}

func (m *mockBackend) SearchText(context.Context, string, string, int) ([]result.Result, error) {
	return nil, nil
}

func (m *mockBackend) SupportsTextSearch(context.Context) bool { return !m.noText }

func (m *mockBackend) Load(_ context.Context, name string) (indexstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return indexstore.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockBackend) Save(_ context.Context, rec indexstore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Name] = rec
	return nil
}

func (m *mockBackend) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, name)
	return nil
}

func newTestState(t *testing.T, query string) *pipeline.State {
	t.Helper()
	docs := document.NewCollection([]map[string]any{
		{"name": "SaferCodes", "description": "QR codes for COVID-19 contact tracing", "alt": "QR"},
		{"name": "Healthy", "description": "healthcare startup for clinics", "alt": "clinics"},
		{"name": "Trendy", "description": "fashion marketplace"},
	})
	s, err := pipeline.NewState(docs, document.LeafRaw)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if query != "" {
		s.AttachQuery(query)
	}
	return s
}
