package retriever

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/index"
	"github.com/kailas-cloud/ragpipe/internal/usecase/bridge"
)

// mockBridges returns canned lists and counts evaluations.
type mockBridges struct {
	mu      sync.Mutex
	lists   map[string][]result.Result
	errs    map[string]error
	invalid map[string]error
	calls   []string
}

func (m *mockBridges) Validate(name string) error {
	return m.invalid[name]
}

func (m *mockBridges) Evaluate(
	_ context.Context, name, query, _ string, _ bridge.RepManager, state *pipeline.State,
) ([]result.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
	if state.Query() != query {
		return nil, fmt.Errorf("query not attached before %s", name)
	}
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	return m.lists[name], nil
}

func (m *mockBridges) evaluations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// sparseBuilder builds BM25 indices directly from the state.
type sparseBuilder struct {
	mu     sync.Mutex
	builds map[string]int
}

func (b *sparseBuilder) Build(
	ctx context.Context, k rep.Key, _ pipeline.RepConfig, state *pipeline.State,
) (index.Index, error) {
	b.mu.Lock()
	if b.builds == nil {
		b.builds = make(map[string]int)
	}
	b.builds[k.String()]++
	b.mu.Unlock()

	items, err := state.Items(k.FieldPath())
	if err != nil {
		return nil, &domain.BuildError{Key: k.String(), Encoder: "bm25", Err: err}
	}
	texts, err := document.Texts(items.Values, state.LeafType())
	if err != nil {
		return nil, err
	}
	idx := index.NewSparse()
	if err := idx.Add(ctx, texts, items.Paths, k.IsQuery()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (b *sparseBuilder) count(k string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds[k]
}

func newTestState(t *testing.T) *pipeline.State {
	t.Helper()
	docs := document.NewCollection([]map[string]any{
		{"name": "SaferCodes", "description": "QR codes systems for COVID-19 contact tracing"},
		{"name": "Healthy", "description": "healthcare startup helping clinics with covid testing"},
		{"name": "Trendy", "description": "fashion marketplace"},
		{"name": "Medi", "description": "healthcare records"},
	})
	s, err := pipeline.NewState(docs, document.LeafRaw)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func keys(s ...string) []rep.Key {
	out := make([]rep.Key, len(s))
	for i, k := range s {
		out[i] = rep.MustParse(k)
	}
	return out
}

func refs(ids ...string) []result.Result {
	out := make([]result.Result, len(ids))
	for i, id := range ids {
		out[i] = result.NewRef(id, float64(len(ids)-i))
	}
	return out
}

func ids(rs []result.Result) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].ID()
	}
	return out
}

// twoBridgeConfig declares bridges a and b under an rrf merge and an expr merge over b.
func twoBridgeConfig() *pipeline.Config {
	return &pipeline.Config{
		Bridges: map[string]pipeline.BridgeConfig{
			"a": {Name: "a", RepNodes: keys("query.text#sparse", ".description#sparse"), Enabled: true},
			"b": {Name: "b", RepNodes: keys("query.text#sparse", ".name#sparse"), Enabled: true},
		},
		Merges: []pipeline.MergeConfig{
			{Name: "rrf", Method: "reciprocal_rank", Bridges: []string{"a", "b"}},
			{Name: "only_b", Method: "expr", Bridges: []string{"b"}, Limit: 2},
		},
	}
}
