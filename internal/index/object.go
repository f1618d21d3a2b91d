package index

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// Object stores items as-is: copied fields or model-transformed text.
// Retrieve ignores the query and returns the items in position order with inline content.
type Object struct {
	entries
	values []any
}

var (
	_ Index      = (*Object)(nil)
	_ ItemSource = (*Object)(nil)
)

// NewObject creates an empty object index.
func NewObject() *Object {
	return &Object{}
}

// Kind implements Index.
func (o *Object) Kind() Kind { return KindObject }

// Len implements Index.
func (o *Object) Len() int { return len(o.values) }

// Add stores values under their item paths.
func (o *Object) Add(_ context.Context, values []any, paths []string, isQuery bool) error {
	if err := o.add(paths, len(values), isQuery); err != nil {
		return err
	}
	o.values = append(o.values, values...)
	return nil
}

// Items implements ItemSource.
func (o *Object) Items() document.Items {
	return document.Items{Values: o.values, Paths: o.paths}
}

// QueryRep renders the first query item as text.
func (o *Object) QueryRep() (Query, error) {
	if err := o.queryPosition(KindObject); err != nil {
		return Query{}, err
	}
	text, err := document.Text(o.values[0], document.LeafRaw)
	if err != nil {
		return Query{}, err
	}
	return Query{Text: text}, nil
}

// Retrieve returns up to limit stored items with score 1.
func (o *Object) Retrieve(_ context.Context, _ Query, limit int) ([]result.Result, error) {
	if o.isQuery {
		return nil, fmt.Errorf("object index holds a query: %w", domain.ErrUnsupportedMethod)
	}
	n := len(o.values)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]result.Result, n)
	for i := range n {
		out[i] = result.NewInline(o.paths[i], 1, o.values[i])
	}
	return out, nil
}
