package index

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// mockStore implements VectorStore and TextStore for tests.
type mockStore struct {
	createDenseFn func(ctx context.Context, name string, dim int, paths []string, vectors [][]float32) error
	searchDenseFn func(ctx context.Context, name string, vector []float32, k int) ([]result.Result, error)
	createTextFn  func(ctx context.Context, name string, paths, texts []string) error
	searchTextFn  func(ctx context.Context, name, query string, k int) ([]result.Result, error)
}

func (m *mockStore) CreateDense(ctx context.Context, name string, dim int, paths []string, vectors [][]float32) error {
	if m.createDenseFn != nil {
		return m.createDenseFn(ctx, name, dim, paths, vectors)
	}
	return nil
}

func (m *mockStore) SearchDense(ctx context.Context, name string, vector []float32, k int) ([]result.Result, error) {
	if m.searchDenseFn != nil {
		return m.searchDenseFn(ctx, name, vector, k)
	}
	return nil, nil
}

func (m *mockStore) CreateText(ctx context.Context, name string, paths, texts []string) error {
	if m.createTextFn != nil {
		return m.createTextFn(ctx, name, paths, texts)
	}
	return nil
}

func (m *mockStore) SearchText(ctx context.Context, name, query string, k int) ([]result.Result, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, name, query, k)
	}
	return nil, nil
}

func ids(rs []result.Result) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].ID()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
