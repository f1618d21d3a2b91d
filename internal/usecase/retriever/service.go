// Package retriever answers a query: it selects a merge policy, evaluates its
// bridges, fuses their rankings and loads the content of the fused references.
package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/merge"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/usecase/representation"
)

// Options tune fusion and bridge scheduling.
type Options struct {
	// RRFK is the smoothing constant; 0 means DefaultRRFK.
	RRFK int
	// Parallel evaluates the bridges of a merge concurrently.
	Parallel bool
}

// Service is the Retriever.
type Service struct {
	cfg     *pipeline.Config
	bridges bridgeEvaluator
	reps    *representation.Manager
	opts    Options
	merges  *prometheus.CounterVec // labels: merge, method, status
	logger  *zap.Logger
}

// New creates the Retriever and validates every merge policy, so unknown methods and
// undeclared bridges are reported at configuration-load time.
func New(
	cfg *pipeline.Config,
	bridges bridgeEvaluator,
	reps *representation.Manager,
	opts Options,
	merges *prometheus.CounterVec,
	logger *zap.Logger,
) (*Service, error) {
	s := newService(cfg, bridges, reps, opts, merges, logger)
	for _, mc := range cfg.Merges {
		if _, err := s.members(mc); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.EnabledMerges {
		if _, ok := cfg.Merge(name); !ok {
			return nil, &domain.UnknownNameError{Kind: "merge", Name: name, From: "enabled_merges"}
		}
	}
	return s, nil
}

func newService(
	cfg *pipeline.Config,
	bridges bridgeEvaluator,
	reps *representation.Manager,
	opts Options,
	merges *prometheus.CounterVec,
	logger *zap.Logger,
) *Service {
	if opts.RRFK <= 0 {
		opts.RRFK = DefaultRRFK
	}
	return &Service{cfg: cfg, bridges: bridges, reps: reps, opts: opts, merges: merges, logger: logger}
}

// Answer runs the selected merge policy for query and returns the fused references
// with their content loaded. A reference missing from the collection fails the call.
func (s *Service) Answer(
	ctx context.Context, query string, state *pipeline.State, opts AnswerOptions,
) ([]result.Result, error) {
	mc, err := s.selectMerge(opts.Merge)
	if err != nil {
		return nil, err
	}
	members, err := s.members(mc)
	if err != nil {
		s.inc(mc, "error")
		return nil, err
	}

	log := logpkg.From(ctx, s.logger).With(zap.String("query_id", opts.QueryID), zap.String("merge", mc.Name))
	ctx = logpkg.Into(ctx, log)
	start := time.Now()
	state.AttachQuery(query)
	reps := s.reps.Fork()

	lists, err := s.evaluate(ctx, members, query, opts.QueryID, reps, state)
	if err != nil {
		s.inc(mc, "error")
		return nil, err
	}

	var fused []result.Result
	switch mc.Method {
	case merge.ReciprocalRank:
		fused = fuseRRF(lists, s.opts.RRFK, mc.EffectiveLimit())
	case merge.Expr:
		fused = result.Truncate(lists[0], mc.EffectiveLimit())
	}

	resolved, err := resolve(fused, state)
	if err != nil {
		s.inc(mc, "error")
		log.Warn("Unresolved reference", zap.Error(err))
		return nil, err
	}

	s.inc(mc, "success")
	log.Info("Query answered",
		zap.String("method", string(mc.Method)),
		zap.Strings("bridges", members),
		zap.Int("results", len(resolved)),
		zap.Duration("duration", time.Since(start)),
	)
	return resolved, nil
}

// Warm builds the document-side representations of every enabled bridge used by
// the given merges (all merges when none are named), so the first query does not pay for them.
func (s *Service) Warm(ctx context.Context, state *pipeline.State, mergeNames ...string) error {
	if len(mergeNames) == 0 {
		for _, mc := range s.cfg.Merges {
			mergeNames = append(mergeNames, mc.Name)
		}
	}

	seen := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range mergeNames {
		mc, ok := s.cfg.Merge(name)
		if !ok {
			return &domain.UnknownNameError{Kind: "merge", Name: name}
		}
		members, err := s.members(mc)
		if err != nil {
			return err
		}
		for _, b := range members {
			for _, k := range s.cfg.Bridges[b].RepNodes {
				if k.IsQuery() || seen[k.String()] {
					continue
				}
				seen[k.String()] = true
				g.Go(func() error {
					_, err := s.reps.GetOrCreate(gctx, k, state)
					return err
				})
			}
		}
	}
	return g.Wait()
}

// DefaultMerge names the merge Answer runs when none is requested; empty when none is declared.
func (s *Service) DefaultMerge() string {
	mc, err := s.selectMerge("")
	if err != nil {
		return ""
	}
	return mc.Name
}

// selectMerge picks the named merge, else the first enabled merge, else the first declared.
func (s *Service) selectMerge(name string) (pipeline.MergeConfig, error) {
	if name != "" {
		mc, ok := s.cfg.Merge(name)
		if !ok {
			return pipeline.MergeConfig{}, &domain.UnknownNameError{Kind: "merge", Name: name}
		}
		return mc, nil
	}
	if len(s.cfg.EnabledMerges) > 0 {
		first := s.cfg.EnabledMerges[0]
		mc, ok := s.cfg.Merge(first)
		if !ok {
			return pipeline.MergeConfig{}, &domain.UnknownNameError{Kind: "merge", Name: first, From: "enabled_merges"}
		}
		return mc, nil
	}
	if len(s.cfg.Merges) > 0 {
		return s.cfg.Merges[0], nil
	}
	return pipeline.MergeConfig{}, &domain.NoMergeError{}
}

// members returns the bridges a merge evaluates, in declaration order.
// Disabled bridges are skipped by reciprocal-rank merges; an expr merge needs its bridge enabled.
func (s *Service) members(mc pipeline.MergeConfig) ([]string, error) {
	if !mc.Method.IsValid() {
		return nil, &domain.UnsupportedMergeMethodError{Merge: mc.Name, Method: string(mc.Method)}
	}

	if mc.Method == merge.Expr {
		target := mc.Expr
		if target == "" {
			if len(mc.Bridges) != 1 {
				return nil, fmt.Errorf("%w: expr merge %q must name exactly one bridge, got %d",
					domain.ErrConfiguration, mc.Name, len(mc.Bridges))
			}
			target = mc.Bridges[0]
		}
		bc, ok := s.cfg.Bridges[target]
		if !ok {
			return nil, &domain.UnknownNameError{Kind: "bridge", Name: target, From: mc.Name}
		}
		if !bc.Enabled {
			return nil, fmt.Errorf("%w: expr merge %q names disabled bridge %q", domain.ErrConfiguration, mc.Name, target)
		}
		if err := s.bridges.Validate(target); err != nil {
			return nil, err
		}
		return []string{target}, nil
	}

	out := make([]string, 0, len(mc.Bridges))
	for _, name := range mc.Bridges {
		bc, ok := s.cfg.Bridges[name]
		if !ok {
			return nil, &domain.UnknownNameError{Kind: "bridge", Name: name, From: mc.Name}
		}
		if !bc.Enabled {
			s.logger.Debug("Skipping disabled bridge", zap.String("merge", mc.Name), zap.String("bridge", name))
			continue
		}
		if err := s.bridges.Validate(name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: merge %q has no enabled bridges", domain.ErrConfiguration, mc.Name)
	}
	return out, nil
}

// evaluate runs the member bridges; lists keep member order regardless of scheduling.
func (s *Service) evaluate(
	ctx context.Context, members []string, query, queryID string,
	reps *representation.Manager, state *pipeline.State,
) ([][]result.Result, error) {
	lists := make([][]result.Result, len(members))

	if !s.opts.Parallel || len(members) == 1 {
		for i, name := range members {
			res, err := s.bridges.Evaluate(ctx, name, query, queryID, reps, state)
			if err != nil {
				return nil, err
			}
			lists[i] = res
		}
		return lists, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range members {
		g.Go(func() error {
			res, err := s.bridges.Evaluate(gctx, name, query, queryID, reps, state)
			if err != nil {
				return err
			}
			lists[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

// resolve loads the content of every reference. The first missing id fails the whole list.
func resolve(results []result.Result, state *pipeline.State) ([]result.Result, error) {
	out := make([]result.Result, len(results))
	for i, r := range results {
		if !r.IsRef() {
			out[i] = r
			continue
		}
		content, err := state.Docs().Resolve(r.ID())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", &domain.UnresolvedReferenceError{ID: r.ID(), Position: i}, err)
		}
		out[i] = r.Resolved(content)
	}
	return out, nil
}

func (s *Service) inc(mc pipeline.MergeConfig, status string) {
	if s.merges != nil {
		s.merges.WithLabelValues(mc.Name, string(mc.Method), status).Inc()
	}
}
