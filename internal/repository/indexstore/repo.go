// Package indexstore persists storage-backed representation indices: FT indexes over
// hashes for the items, and a registry record per index so later runs can reopen it.
package indexstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

const writeBatch = 500

// store is the consumer interface for stored indices (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	PutItems(ctx context.Context, items []db.Item) error
	CreateIndex(ctx context.Context, s db.Schema) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
	SearchKNN(ctx context.Context, q db.KNNQuery) ([]db.Hit, error)
	SearchText(ctx context.Context, q db.TextQuery) ([]db.Hit, error)
}

// Record describes a persisted index in the registry.
type Record struct {
	Name      string     `json:"name"`
	FieldPath string     `json:"field_path"`
	Rep       string     `json:"rep"`
	Encoder   string     `json:"encoder"`
	Kind      index.Kind `json:"kind"`
	Dim       int        `json:"dim,omitempty"`
	Count     int        `json:"count"`
	CreatedAt time.Time  `json:"created_at"`
}

// Repo implements index.VectorStore, index.TextStore and the index registry.
type Repo struct {
	store  store
	prefix string
}

var (
	_ index.VectorStore = (*Repo)(nil)
	_ index.TextStore   = (*Repo)(nil)
)

// New creates an index store; prefix namespaces every key (e.g. "ragpipe:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// SupportsTextSearch proxies the capability check from the store.
func (r *Repo) SupportsTextSearch(ctx context.Context) bool {
	return r.store.SupportsTextSearch(ctx)
}

// CreateDense (re)creates the vector index name and stores one item per vector.
func (r *Repo) CreateDense(ctx context.Context, name string, dim int, paths []string, vectors [][]float32) error {
	if err := r.recreate(ctx, db.VectorSchema(r.indexName(name), r.itemPrefix(name), dim)); err != nil {
		return err
	}
	items := make([]db.Item, len(vectors))
	for i, v := range vectors {
		items[i] = db.Item{Key: r.itemKey(name, i), Path: paths[i], Vector: v}
	}
	return r.write(ctx, items)
}

// SearchDense returns the k nearest stored items as references.
func (r *Repo) SearchDense(ctx context.Context, name string, vector []float32, k int) ([]result.Result, error) {
	hits, err := r.store.SearchKNN(ctx, db.KNNQuery{Index: r.indexName(name), Vector: vector, K: k})
	if err != nil {
		return nil, fmt.Errorf("search dense %s: %w", name, err)
	}
	return toRefs(hits), nil
}

// CreateText (re)creates the text index name and stores one item per text.
func (r *Repo) CreateText(ctx context.Context, name string, paths, texts []string) error {
	if err := r.recreate(ctx, db.TextSchema(r.indexName(name), r.itemPrefix(name))); err != nil {
		return err
	}
	items := make([]db.Item, len(texts))
	for i, t := range texts {
		items[i] = db.Item{Key: r.itemKey(name, i), Path: paths[i], Content: t}
	}
	return r.write(ctx, items)
}

// SearchText returns the k best BM25 matches of the query tokens as references.
// A query without tokens matches nothing.
func (r *Repo) SearchText(ctx context.Context, name, query string, k int) ([]result.Result, error) {
	terms := index.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	hits, err := r.store.SearchText(ctx, db.TextQuery{Index: r.indexName(name), Terms: terms, K: k})
	if err != nil {
		return nil, fmt.Errorf("search text %s: %w", name, err)
	}
	return toRefs(hits), nil
}

// Save writes a registry record.
func (r *Repo) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := r.store.Set(ctx, r.recordKey(rec.Name), data); err != nil {
		return fmt.Errorf("save record %s: %w", rec.Name, err)
	}
	return nil
}

// Load returns the registry record of name. A record whose FT index has
// disappeared is reported as domain.ErrNotFound.
func (r *Repo) Load(ctx context.Context, name string) (Record, error) {
	data, err := r.store.Get(ctx, r.recordKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Record{}, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
		}
		return Record{}, fmt.Errorf("load record %s: %w", name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record %s: %w", name, err)
	}
	if !rec.Kind.IsValid() {
		return Record{}, fmt.Errorf("record %s has unknown kind %q: %w", name, rec.Kind, domain.ErrUnsupportedMethod)
	}

	exists, err := r.store.IndexExists(ctx, r.indexName(name))
	if err != nil {
		return Record{}, fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		return Record{}, fmt.Errorf("index %s dropped: %w", name, domain.ErrNotFound)
	}
	return rec, nil
}

// Delete drops the FT index with its items and removes the registry record.
func (r *Repo) Delete(ctx context.Context, name string) error {
	if err := r.store.DropIndex(ctx, r.indexName(name)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	if err := r.store.Del(ctx, r.recordKey(name)); err != nil {
		return fmt.Errorf("delete record %s: %w", name, err)
	}
	return nil
}

// List returns all registry records, skipping undecodable ones.
func (r *Repo) List(ctx context.Context) ([]Record, error) {
	keys, err := r.store.Scan(ctx, r.recordKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan registry: %w", err)
	}
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var rec Record
		if json.Unmarshal(data, &rec) == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Repo) recreate(ctx context.Context, schema db.Schema) error {
	err := r.store.CreateIndex(ctx, schema)
	if errors.Is(err, db.ErrIndexExists) {
		if err := r.store.DropIndex(ctx, schema.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop stale index %s: %w", schema.Name, err)
		}
		err = r.store.CreateIndex(ctx, schema)
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", schema.Name, err)
	}
	return nil
}

func (r *Repo) write(ctx context.Context, items []db.Item) error {
	for start := 0; start < len(items); start += writeBatch {
		end := min(start+writeBatch, len(items))
		if err := r.store.PutItems(ctx, items[start:end]); err != nil {
			return fmt.Errorf("write items %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (r *Repo) indexName(name string) string { return r.prefix + name + ":idx" }

func (r *Repo) itemPrefix(name string) string { return r.prefix + "item:" + name + ":" }

func (r *Repo) itemKey(name string, i int) string { return r.itemPrefix(name) + strconv.Itoa(i) }

func (r *Repo) recordKey(name string) string { return r.prefix + "registry:" + name }

func toRefs(hits []db.Hit) []result.Result {
	if len(hits) == 0 {
		return nil
	}
	out := make([]result.Result, len(hits))
	for i, h := range hits {
		out[i] = result.NewRef(h.Path, h.Score)
	}
	return out
}
