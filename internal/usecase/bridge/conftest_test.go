package bridge

import (
	"context"
	"fmt"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

// mockReps builds sparse indices on demand and records requested keys.
type mockReps struct {
	requested []string
	fixed     map[string]index.Index
}

func (m *mockReps) GetOrCreate(ctx context.Context, k rep.Key, state *pipeline.State) (index.Index, error) {
	m.requested = append(m.requested, k.String())
	if idx, ok := m.fixed[k.String()]; ok {
		return idx, nil
	}
	items, err := state.Items(k.FieldPath())
	if err != nil {
		return nil, err
	}
	texts, err := document.Texts(items.Values, state.LeafType())
	if err != nil {
		return nil, err
	}
	idx := index.NewSparse()
	if err := idx.Add(ctx, texts, items.Paths, k.IsQuery()); err != nil {
		return nil, fmt.Errorf("add %s: %w", k, err)
	}
	return idx, nil
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

func bridgeConfig(bridges ...pipeline.BridgeConfig) *pipeline.Config {
	cfg := &pipeline.Config{Bridges: map[string]pipeline.BridgeConfig{}}
	for _, b := range bridges {
		cfg.Bridges[b.Name] = b
	}
	return cfg
}

func keys(s ...string) []rep.Key {
	out := make([]rep.Key, len(s))
	for i, k := range s {
		out[i] = rep.MustParse(k)
	}
	return out
}
