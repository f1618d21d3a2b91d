// Package index holds the representation index variants: a closed set of
// implementations behind one retrieval contract.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// Kind tags an index variant.
type Kind string

const (
	// KindDense is a vector similarity index.
	KindDense Kind = "dense"
	// KindSparse is a BM25 lexical index.
	KindSparse Kind = "sparse"
	// KindObject stores items as-is (passthrough and model transforms).
	KindObject Kind = "object"
	// KindNoop holds raw items for custom match functions.
	KindNoop Kind = "noop"
)

// IsValid reports whether k is one of the known variants.
func (k Kind) IsValid() bool {
	switch k {
	case KindDense, KindSparse, KindObject, KindNoop:
		return true
	}
	return false
}

// Query is the encoding a query-side index hands to a document-side Retrieve.
// Dense indices read Vector, lexical and object indices read Text.
type Query struct {
	Text   string
	Vector []float32
}

// Index is a built representation of collection items or of the query.
type Index interface {
	Kind() Kind
	// Len returns the number of indexed items.
	Len() int
	// Retrieve returns at most limit references in descending score order.
	Retrieve(ctx context.Context, q Query, limit int) ([]result.Result, error)
	// QueryRep returns the encoding of a query-side index.
	QueryRep() (Query, error)
}

// ItemSource is implemented by variants that keep the raw items, for match functions.
type ItemSource interface {
	Items() document.Items
}

// entries is the item bookkeeping shared by all variants.
type entries struct {
	paths   []string
	isQuery bool
}

func (e *entries) add(paths []string, n int, isQuery bool) error {
	if len(paths) != n {
		return fmt.Errorf("got %d items but %d item paths", n, len(paths))
	}
	if len(e.paths) > 0 && e.isQuery != isQuery {
		return fmt.Errorf("cannot mix query and document items in one index")
	}
	e.paths = append(e.paths, paths...)
	e.isQuery = isQuery
	return nil
}

func (e *entries) queryPosition(kind Kind) error {
	if !e.isQuery {
		return fmt.Errorf("%s index holds documents, not a query: %w", kind, domain.ErrUnsupportedMethod)
	}
	if len(e.paths) == 0 {
		return fmt.Errorf("%s query index is empty", kind)
	}
	return nil
}

// rank sorts by descending score, ties by item path, and truncates to limit.
func rank(results []result.Result, limit int) []result.Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].ID() < results[j].ID()
	})
	return result.Truncate(results, limit)
}
