package embcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// fakeEmbedder returns a vector of length dim per text, filled with len(text).
type fakeEmbedder struct {
	dim    int
	err    error
	single bool

	calls [][]string
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text))
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls = append(f.calls, []string{text})
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vector(text), PromptTokens: 5, TotalTokens: 5}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	var res domain.BatchEmbeddingResult
	for _, t := range texts {
		res.Embeddings = append(res.Embeddings, f.vector(t))
	}
	res.PromptTokens = 5 * len(texts)
	res.TotalTokens = 5 * len(texts)
	return res, nil
}

// singleEmbedder hides BatchEmbed.
type singleEmbedder struct{ inner *fakeEmbedder }

func (s singleEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.inner.Embed(ctx, text)
}

// memStore is a map-backed store.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

const testPrefix = "ragpipe:emb_cache:test:"

func newTestCache(t *testing.T, inner domain.Embedder, opts Options) (*CachedEmbedder, *memStore) {
	t.Helper()
	ms := newMemStore()
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = testPrefix
	}
	return New(inner, ms, opts, nil, zap.NewNop()), ms
}
