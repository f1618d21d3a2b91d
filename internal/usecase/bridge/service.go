// Package bridge evaluates one retrieval path: it compares a query representation
// with a document representation and returns scored references.
package bridge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/usecase/funcs"
)

// Metrics are the optional histograms of bridge evaluation.
type Metrics struct {
	Duration *prometheus.HistogramVec // label: bridge
	Results  *prometheus.HistogramVec // label: bridge
}

// Service evaluates the bridges of a pipeline config.
type Service struct {
	cfg     *pipeline.Config
	funcs   *funcs.Registry
	metrics Metrics
	logger  *zap.Logger
}

// New creates the bridge service and validates every enabled bridge, so wiring
// mistakes surface before the first query.
func New(cfg *pipeline.Config, registry *funcs.Registry, m Metrics, logger *zap.Logger) (*Service, error) {
	if registry == nil {
		registry = funcs.NewRegistry()
	}
	s := &Service{cfg: cfg, funcs: registry, metrics: m, logger: logger}

	names := make([]string, 0, len(cfg.Bridges))
	for name := range cfg.Bridges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !cfg.Bridges[name].Enabled {
			continue
		}
		if err := s.Validate(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Validate checks that bridge name exists, compares exactly two representations
// and references registered functions.
func (s *Service) Validate(name string) error {
	_, err := s.bridge(name)
	return err
}

// Evaluate runs bridge name for query and returns at most the bridge limit
// references in descending score order.
func (s *Service) Evaluate(
	ctx context.Context, name, query, queryID string,
	reps RepManager, state *pipeline.State,
) ([]result.Result, error) {
	bc, err := s.bridge(name)
	if err != nil {
		return nil, err
	}

	if query != "" && state.Query() != query {
		state.AttachQuery(query)
	}

	start := time.Now()
	qKey, dKey := roles(bc.RepNodes)

	qIdx, err := reps.GetOrCreate(ctx, qKey, state)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", name, err)
	}
	dIdx, err := reps.GetOrCreate(ctx, dKey, state)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", name, err)
	}

	limit := bc.EffectiveLimit()
	var results []result.Result

	if bc.MatchFn != "" {
		match, _ := s.funcs.Match(bc.MatchFn)
		results, err = match(ctx, qIdx, dIdx, limit)
		if err != nil {
			return nil, fmt.Errorf("bridge %s: matchfn %s: %w", name, bc.MatchFn, err)
		}
		if !result.IsSortedDesc(results) {
			sort.SliceStable(results, func(i, j int) bool { return results[i].Score() > results[j].Score() })
		}
		results = result.Truncate(results, limit)
	} else {
		q, err := qIdx.QueryRep()
		if err != nil {
			return nil, fmt.Errorf("bridge %s: query representation %s: %w", name, qKey, err)
		}
		results, err = dIdx.Retrieve(ctx, q, limit)
		if err != nil {
			return nil, fmt.Errorf("bridge %s: retrieve from %s: %w", name, dKey, err)
		}
	}

	duration := time.Since(start)
	s.observe(name, len(results), duration)
	log := logpkg.From(ctx, s.logger).With(zap.String("bridge", name))
	log.Debug("Bridge evaluated",
		zap.Int("results", len(results)),
		zap.Duration("duration", duration),
	)

	if bc.EvalFn != "" {
		s.runEval(ctx, log, bc, queryID, results, state)
	}
	return results, nil
}

// runEval calls the eval hook on a copy of results. Failures are logged and swallowed.
func (s *Service) runEval(
	ctx context.Context, log *zap.Logger, bc pipeline.BridgeConfig, queryID string,
	results []result.Result, state *pipeline.State,
) {
	eval, _ := s.funcs.Eval(bc.EvalFn)
	in := funcs.EvalInput{
		Bridge:  bc.Name,
		QueryID: queryID,
		Results: append([]result.Result(nil), results...),
		State:   state,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn("Eval function panicked",
				zap.String("evalfn", bc.EvalFn),
				zap.Any("panic", r),
			)
		}
	}()
	if err := eval(ctx, in); err != nil {
		log.Warn("Eval function failed",
			zap.String("evalfn", bc.EvalFn),
			zap.Error(err),
		)
	}
}

func (s *Service) bridge(name string) (pipeline.BridgeConfig, error) {
	bc, ok := s.cfg.Bridges[name]
	if !ok {
		return pipeline.BridgeConfig{}, &domain.UnknownNameError{Kind: "bridge", Name: name}
	}
	if len(bc.RepNodes) != 2 {
		keys := make([]string, len(bc.RepNodes))
		for i, k := range bc.RepNodes {
			keys[i] = k.String()
		}
		return pipeline.BridgeConfig{}, &domain.MalformedBridgeError{Bridge: name, Keys: keys}
	}
	if bc.MatchFn != "" {
		if _, ok := s.funcs.Match(bc.MatchFn); !ok {
			return pipeline.BridgeConfig{}, &domain.UnknownFunctionError{Kind: "matchfn", Name: bc.MatchFn, Bridge: name}
		}
	}
	if bc.EvalFn != "" {
		if _, ok := s.funcs.Eval(bc.EvalFn); !ok {
			return pipeline.BridgeConfig{}, &domain.UnknownFunctionError{Kind: "evalfn", Name: bc.EvalFn, Bridge: name}
		}
	}
	if bc.Name == "" {
		bc.Name = name
	}
	return bc, nil
}

// roles orders the two repnodes as (query, document). Declaration order decides
// unless only the second one addresses the query.
func roles(nodes []rep.Key) (query, docs rep.Key) {
	if !nodes[0].IsQuery() && nodes[1].IsQuery() {
		return nodes[1], nodes[0]
	}
	return nodes[0], nodes[1]
}

func (s *Service) observe(name string, n int, d time.Duration) {
	if s.metrics.Duration != nil {
		s.metrics.Duration.WithLabelValues(name).Observe(d.Seconds())
	}
	if s.metrics.Results != nil {
		s.metrics.Results.WithLabelValues(name).Observe(float64(n))
	}
}
