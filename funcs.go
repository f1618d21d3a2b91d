package ragpipe

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/index"
	"github.com/kailas-cloud/ragpipe/internal/usecase/funcs"
)

// Item is one value of a representation with its path, e.g. "[2].description"
// or "query.text".
type Item struct {
	Path  string
	Value any
}

// MatchFunc scores document items against the query items of a bridge. Only
// representations that keep their items (passthrough, noindex, in-memory bm25)
// can be matched. Results reference document paths; order does not matter.
type MatchFunc func(ctx context.Context, query, docs []Item, limit int) ([]Result, error)

// EvalEvent is what an EvalFunc observes after a bridge has scored.
type EvalEvent struct {
	Bridge  string
	QueryID string
	Query   string
	Results []Result
}

// EvalFunc observes bridge results. Errors and panics are logged, never returned to Answer.
type EvalFunc func(ctx context.Context, ev EvalEvent) error

func adaptMatch(fn MatchFunc) funcs.MatchFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, query, docs index.Index, limit int) ([]result.Result, error) {
		q, err := itemsOf(query, "query")
		if err != nil {
			return nil, err
		}
		d, err := itemsOf(docs, "document")
		if err != nil {
			return nil, err
		}
		found, err := fn(ctx, q, d, limit)
		if err != nil {
			return nil, err
		}
		out := make([]result.Result, len(found))
		for i, r := range found {
			out[i] = result.NewRef(r.ID, r.Score)
		}
		return out, nil
	}
}

func itemsOf(idx index.Index, side string) ([]Item, error) {
	src, ok := idx.(index.ItemSource)
	if !ok {
		return nil, fmt.Errorf("%s representation %s does not expose items", side, idx.Kind())
	}
	items := src.Items()
	if items.Len() == 0 && idx.Len() > 0 {
		return nil, fmt.Errorf("%s representation %s of %d items keeps no values", side, idx.Kind(), idx.Len())
	}
	out := make([]Item, items.Len())
	for i := range out {
		out[i] = Item{Path: items.Paths[i], Value: items.Values[i]}
	}
	return out, nil
}

func adaptEval(fn EvalFunc) funcs.EvalFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, in funcs.EvalInput) error {
		ev := EvalEvent{Bridge: in.Bridge, QueryID: in.QueryID, Results: resultsFromDomain(in.Results)}
		if in.State != nil {
			ev.Query = in.State.Query()
		}
		return fn(ctx, ev)
	}
}
