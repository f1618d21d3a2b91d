package index

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
)

// Noop carries raw items for a custom match function. It cannot retrieve.
type Noop struct {
	entries
	values []any
}

var (
	_ Index      = (*Noop)(nil)
	_ ItemSource = (*Noop)(nil)
)

// NewNoop creates an empty noop index.
func NewNoop() *Noop {
	return &Noop{}
}

// Kind implements Index.
func (n *Noop) Kind() Kind { return KindNoop }

// Len implements Index.
func (n *Noop) Len() int { return len(n.values) }

// Add keeps values under their item paths.
func (n *Noop) Add(_ context.Context, values []any, paths []string, isQuery bool) error {
	if err := n.add(paths, len(values), isQuery); err != nil {
		return err
	}
	n.values = append(n.values, values...)
	return nil
}

// Items implements ItemSource.
func (n *Noop) Items() document.Items {
	return document.Items{Values: n.values, Paths: n.paths}
}

// QueryRep renders the first query item as text.
func (n *Noop) QueryRep() (Query, error) {
	if err := n.queryPosition(KindNoop); err != nil {
		return Query{}, err
	}
	text, err := document.Text(n.values[0], document.LeafRaw)
	if err != nil {
		return Query{}, err
	}
	return Query{Text: text}, nil
}

// Retrieve always fails: comparison is delegated to a match function.
func (n *Noop) Retrieve(context.Context, Query, int) ([]result.Result, error) {
	return nil, fmt.Errorf("noop index cannot retrieve, configure a matchfn: %w", domain.ErrUnsupportedMethod)
}
