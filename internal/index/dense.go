package index

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// VectorStore persists the vectors of a storage-backed dense index.
type VectorStore interface {
	CreateDense(ctx context.Context, name string, dim int, paths []string, vectors [][]float32) error
	SearchDense(ctx context.Context, name string, vector []float32, k int) ([]result.Result, error)
}

// Dense is a cosine-similarity vector index, in memory or backed by a VectorStore.
type Dense struct {
	entries
	vectors [][]float32
	dim     int

	store VectorStore
	name  string
	n     int
}

var _ Index = (*Dense)(nil)

// NewDense creates an empty in-memory dense index.
func NewDense() *Dense {
	return &Dense{}
}

// NewStoredDense creates an empty dense index whose document vectors are written to store under name.
func NewStoredDense(store VectorStore, name string) *Dense {
	return &Dense{store: store, name: name}
}

// OpenDense reattaches a dense index previously persisted under name.
func OpenDense(store VectorStore, name string, dim, n int) *Dense {
	return &Dense{store: store, name: name, dim: dim, n: n}
}

// Kind implements Index.
func (d *Dense) Kind() Kind { return KindDense }

// Len implements Index.
func (d *Dense) Len() int { return d.n }

// Dim returns the vector dimension, 0 while empty.
func (d *Dense) Dim() int { return d.dim }

// Name returns the storage name, empty for in-memory indices.
func (d *Dense) Name() string { return d.name }

// Stored reports whether document vectors live in the store.
func (d *Dense) Stored() bool { return d.store != nil }

// Add indexes vectors under their item paths. Query vectors are never persisted.
func (d *Dense) Add(ctx context.Context, vectors [][]float32, paths []string, isQuery bool) error {
	if err := d.add(paths, len(vectors), isQuery); err != nil {
		return err
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("empty vector for %q", paths[i])
		}
		if d.dim == 0 {
			d.dim = len(v)
		}
		if len(v) != d.dim {
			return fmt.Errorf("vector for %q has dim %d, index dim is %d", paths[i], len(v), d.dim)
		}
	}

	if d.store != nil && !isQuery {
		if err := d.store.CreateDense(ctx, d.name, d.dim, paths, vectors); err != nil {
			return fmt.Errorf("store dense index %s: %w", d.name, err)
		}
	} else {
		d.vectors = append(d.vectors, vectors...)
	}
	d.n += len(vectors)
	return nil
}

// QueryRep returns the first query vector.
func (d *Dense) QueryRep() (Query, error) {
	if err := d.queryPosition(KindDense); err != nil {
		return Query{}, err
	}
	return Query{Vector: d.vectors[0]}, nil
}

// Retrieve returns the items most similar to q.Vector.
func (d *Dense) Retrieve(ctx context.Context, q Query, limit int) ([]result.Result, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("dense index requires a vector query")
	}
	if d.dim != 0 && len(q.Vector) != d.dim {
		return nil, fmt.Errorf("query vector dim %d does not match index dim %d", len(q.Vector), d.dim)
	}
	if limit <= 0 {
		limit = d.n
	}
	if d.n == 0 {
		return nil, nil
	}

	if d.store != nil {
		found, err := d.store.SearchDense(ctx, d.name, q.Vector, limit)
		if err != nil {
			return nil, fmt.Errorf("search dense index %s: %w", d.name, err)
		}
		return rank(found, limit), nil
	}

	out := make([]result.Result, len(d.vectors))
	for i, v := range d.vectors {
		out[i] = result.NewRef(d.paths[i], cosine(q.Vector, v))
	}
	return rank(out, limit), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
