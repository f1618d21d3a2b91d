package indexstore

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// mockStore implements the consumer interface for tests; unset hooks succeed.
type mockStore struct {
	kv      map[string][]byte
	batches [][]db.Item
	created []db.Schema
	dropped []string
	exists  bool
	text    bool

	createIndexFn func(ctx context.Context, s db.Schema) error
	searchKNNFn   func(ctx context.Context, q db.KNNQuery) ([]db.Hit, error)
	searchTextFn  func(ctx context.Context, q db.TextQuery) ([]db.Hit, error)
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	m.kv[key] = value
	return nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.kv, key)
	return nil
}

func (m *mockStore) Scan(_ context.Context, _ string) ([]string, error) {
	keys := make([]string, 0, len(m.kv))
	for k := range m.kv {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *mockStore) PutItems(_ context.Context, items []db.Item) error {
	m.batches = append(m.batches, items)
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, s db.Schema) error {
	if m.createIndexFn != nil {
		if err := m.createIndexFn(ctx, s); err != nil {
			return err
		}
	}
	m.created = append(m.created, s)
	return nil
}

func (m *mockStore) DropIndex(_ context.Context, name string) error {
	m.dropped = append(m.dropped, name)
	return nil
}

func (m *mockStore) IndexExists(context.Context, string) (bool, error) { return m.exists, nil }

func (m *mockStore) SupportsTextSearch(context.Context) bool { return m.text }

func (m *mockStore) SearchKNN(ctx context.Context, q db.KNNQuery) ([]db.Hit, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) SearchText(ctx context.Context, q db.TextQuery) ([]db.Hit, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{kv: make(map[string][]byte), exists: true, text: true}
	return New(ms, "ragpipe:"), ms
}
