package funcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

// Builtin function names.
const (
	MatchExact    = "match.exact"
	MatchContains = "match.contains"
	EvalLog       = "eval.log"
	EvalMetrics   = "eval.metrics"
)

// logTopN is how many ids eval.log prints.
const logTopN = 5

// NewBuiltinRegistry returns a registry with the builtin functions.
// evalResults (label "bridge") backs eval.metrics and may be nil.
func NewBuiltinRegistry(logger *zap.Logger, evalResults *prometheus.CounterVec) *Registry {
	r := NewRegistry()
	mustRegister(r.RegisterMatch(MatchExact, matchText(func(doc, q string) bool { return doc == q })))
	mustRegister(r.RegisterMatch(MatchContains, matchText(strings.Contains)))
	mustRegister(r.RegisterEval(EvalLog, logEval(logger)))
	mustRegister(r.RegisterEval(EvalMetrics, metricsEval(evalResults)))
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// matchText scores 1 for every document item whose normalized text satisfies pred
// against the normalized query text. Results keep document order.
func matchText(pred func(doc, query string) bool) MatchFunc {
	return func(_ context.Context, query, docs index.Index, limit int) ([]result.Result, error) {
		qs, ok := query.(index.ItemSource)
		if !ok {
			return nil, fmt.Errorf("query representation %s does not expose items", query.Kind())
		}
		ds, ok := docs.(index.ItemSource)
		if !ok {
			return nil, fmt.Errorf("document representation %s does not expose items", docs.Kind())
		}

		qItems := qs.Items()
		if qItems.Len() == 0 {
			return nil, fmt.Errorf("query representation is empty")
		}
		q, err := document.Text(qItems.Values[0], document.LeafRaw)
		if err != nil {
			return nil, err
		}
		q = normalize(q)

		dItems := ds.Items()
		if dItems.Len() == 0 && docs.Len() > 0 {
			return nil, fmt.Errorf("document representation %s of %d items keeps no texts", docs.Kind(), docs.Len())
		}
		var out []result.Result
		for i, v := range dItems.Values {
			text, err := document.Text(v, document.LeafRaw)
			if err != nil {
				return nil, err
			}
			if pred(normalize(text), q) {
				out = append(out, result.NewRef(dItems.Paths[i], 1))
			}
		}
		return result.Truncate(out, limit), nil
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func logEval(logger *zap.Logger) EvalFunc {
	return func(_ context.Context, in EvalInput) error {
		top := make([]string, 0, logTopN)
		for _, r := range result.Truncate(in.Results, logTopN) {
			top = append(top, r.ID())
		}
		logger.Info("Bridge results",
			zap.String("bridge", in.Bridge),
			zap.String("query_id", in.QueryID),
			zap.Int("results", len(in.Results)),
			zap.Strings("top", top),
		)
		return nil
	}
}

func metricsEval(counter *prometheus.CounterVec) EvalFunc {
	return func(_ context.Context, in EvalInput) error {
		if counter == nil {
			return fmt.Errorf("eval metrics counter is not configured")
		}
		counter.WithLabelValues(in.Bridge).Add(float64(len(in.Results)))
		return nil
	}
}
