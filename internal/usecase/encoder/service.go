// Package encoder builds representation indices: it routes an encoder name to an
// index variant, encodes the items and consults the index cache for stored ones.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
	"github.com/kailas-cloud/ragpipe/internal/usecase/indexcache"
)

// Vectorizer embeds document and query text. Query may equal Documents when the
// model uses no instructions.
type Vectorizer struct {
	Documents domain.Embedder
	Queries   domain.Embedder
}

// Metrics are the optional counters of the build path.
type Metrics struct {
	Builds   *prometheus.CounterVec   // labels: encoder, kind, status
	Duration *prometheus.HistogramVec // labels: encoder
}

// Service is the encoder/build collaborator of the representation manager.
type Service struct {
	vectorizers map[string]Vectorizer
	transformer domain.Transformer
	cache       indexCache
	metrics     Metrics
	logger      *zap.Logger
}

// New creates the build service. transformer and cache may be nil: llm encoders
// then fail and nothing is cached across runs.
func New(
	vectorizers map[string]Vectorizer,
	transformer domain.Transformer,
	cache indexCache,
	m Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		vectorizers: vectorizers,
		transformer: transformer,
		cache:       cache,
		metrics:     m,
		logger:      logger,
	}
}

// Build creates the index of k from the items of its field path.
// Stored document-side representations are looked up in and added to the index cache.
func (s *Service) Build(
	ctx context.Context, k rep.Key, cfg pipeline.RepConfig, state *pipeline.State,
) (index.Index, error) {
	if err := s.Validate(k, cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	cached := cfg.Store && !k.IsQuery() && s.cache != nil
	ck := indexcache.Key{Rep: k, Encoder: cfg.Encoder}

	if cached {
		idx, ok, err := s.cache.Get(ctx, ck)
		if err != nil {
			return nil, s.fail(k, cfg, err)
		}
		if ok {
			s.logger.Debug("Representation served from index cache",
				zap.String("key", k.String()),
				zap.String("encoder", cfg.Encoder),
			)
			return idx, nil
		}
	}

	items, err := state.Items(k.FieldPath())
	if err != nil {
		return nil, s.fail(k, cfg, err)
	}

	idx, err := s.encode(ctx, k, cfg, state.LeafType(), items, cached)
	if err != nil {
		return nil, s.fail(k, cfg, err)
	}

	if cached {
		if idx, err = s.cache.Put(ctx, ck, idx); err != nil {
			return nil, s.fail(k, cfg, err)
		}
	}

	duration := time.Since(start)
	s.observe(cfg.Encoder, string(idx.Kind()), "success", duration)
	s.logger.Info("Representation built",
		zap.String("key", k.String()),
		zap.String("encoder", cfg.Encoder),
		zap.String("kind", string(idx.Kind())),
		zap.Int("items", idx.Len()),
		zap.Bool("stored", cached),
		zap.Duration("duration", duration),
	)
	return idx, nil
}

// Validate checks that the encoder name routes to an index variant.
func (s *Service) Validate(k rep.Key, cfg pipeline.RepConfig) error {
	switch enc := cfg.Encoder; {
	case enc == BM25, enc == Passthrough, enc == NoIndex:
		return nil
	case strings.HasPrefix(enc, LLMPrefix):
		return nil
	default:
		if _, ok := s.vectorizers[enc]; ok {
			return nil
		}
		return &domain.UnknownEncoderError{Encoder: enc, Key: k.String()}
	}
}

// ValidatePipeline checks the encoder of every enabled representation before any
// query runs. llm encoders additionally need a transformer.
func (s *Service) ValidatePipeline(cfg *pipeline.Config) error {
	for fieldPath, byName := range cfg.Representations {
		for name, rc := range byName {
			if !rc.Enabled {
				continue
			}
			k, err := rep.New(fieldPath, name)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
			}
			if err := s.Validate(k, rc); err != nil {
				return err
			}
			if strings.HasPrefix(rc.Encoder, LLMPrefix) && s.transformer == nil {
				return fmt.Errorf("%w: representation %s uses encoder %q but no llm provider is configured",
					domain.ErrConfiguration, k, rc.Encoder)
			}
		}
	}
	return nil
}

func (s *Service) encode(
	ctx context.Context, k rep.Key, cfg pipeline.RepConfig,
	leaf document.LeafType, items document.Items, stored bool,
) (index.Index, error) {
	isQuery := k.IsQuery()

	switch enc := cfg.Encoder; {
	case enc == BM25:
		texts, err := document.Texts(items.Values, leaf)
		if err != nil {
			return nil, err
		}
		idx := index.NewSparse()
		if stored {
			if backend := s.cache.Backend(); backend != nil && backend.SupportsTextSearch(ctx) {
				idx = index.NewStoredSparse(backend, indexcache.Key{Rep: k, Encoder: enc}.Name())
			}
		}
		if err := idx.Add(ctx, texts, items.Paths, isQuery); err != nil {
			return nil, err
		}
		return idx, nil

	case enc == Passthrough:
		values, err := passthroughValues(k, items.Values)
		if err != nil {
			return nil, err
		}
		idx := index.NewObject()
		if err := idx.Add(ctx, values, items.Paths, isQuery); err != nil {
			return nil, err
		}
		return idx, nil

	case enc == NoIndex:
		idx := index.NewNoop()
		if err := idx.Add(ctx, items.Values, items.Paths, isQuery); err != nil {
			return nil, err
		}
		return idx, nil

	case strings.HasPrefix(enc, LLMPrefix):
		values, err := s.transform(ctx, cfg, leaf, items.Values, isQuery)
		if err != nil {
			return nil, err
		}
		idx := index.NewObject()
		if err := idx.Add(ctx, values, items.Paths, isQuery); err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return s.embed(ctx, k, cfg, leaf, items, stored)
	}
}

func (s *Service) embed(
	ctx context.Context, k rep.Key, cfg pipeline.RepConfig,
	leaf document.LeafType, items document.Items, stored bool,
) (index.Index, error) {
	vec := s.vectorizers[cfg.Encoder]
	emb := vec.Documents
	if k.IsQuery() && vec.Queries != nil {
		emb = vec.Queries
	}
	if emb == nil {
		return nil, fmt.Errorf("vectorizer %q has no embedder", cfg.Encoder)
	}

	texts, err := document.Texts(items.Values, leaf)
	if err != nil {
		return nil, err
	}
	res, err := domain.EmbedAll(ctx, emb, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorizer %q: %w", cfg.Encoder, err)
	}

	idx := index.NewDense()
	if stored {
		if backend := s.cache.Backend(); backend != nil {
			idx = index.NewStoredDense(backend, indexcache.Key{Rep: k, Encoder: cfg.Encoder}.Name())
		}
	}
	if err := idx.Add(ctx, res.Embeddings, items.Paths, k.IsQuery()); err != nil {
		return nil, err
	}
	return idx, nil
}

// transform rewrites every item through the LLM. Options: "prompt" (document side),
// "query_prompt" (query side, falls back to "prompt"), "concurrency".
// Both templates substitute {text}.
func (s *Service) transform(
	ctx context.Context, cfg pipeline.RepConfig,
	leaf document.LeafType, values []any, isQuery bool,
) ([]any, error) {
	if s.transformer == nil {
		return nil, fmt.Errorf("encoder %q needs an llm provider, none configured", cfg.Encoder)
	}

	tmpl := cfg.Option("prompt", "{text}")
	if isQuery {
		tmpl = cfg.Option("query_prompt", tmpl)
	}

	texts, err := document.Texts(values, leaf)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.IntOption("concurrency", DefaultTransformConcurrency), 1))
	for i, text := range texts {
		g.Go(func() error {
			reply, err := s.transformer.Transform(gctx, strings.ReplaceAll(tmpl, "{text}", text))
			if err != nil {
				return fmt.Errorf("transform item %d: %w", i, err)
			}
			out[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// passthroughValues copies items as-is, or the named field of object items when the
// representation name is "_<field>".
func passthroughValues(k rep.Key, values []any) ([]any, error) {
	field, ok := strings.CutPrefix(k.Name(), "_")
	if !ok || field == "" {
		return values, nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		obj, isObj := v.(map[string]any)
		if !isObj {
			return nil, fmt.Errorf("passthrough %q: item %d is %T, not an object", k.Name(), i, v)
		}
		fv, found := obj[field]
		if !found {
			return nil, fmt.Errorf("passthrough %q: item %d has no field %q", k.Name(), i, field)
		}
		out[i] = fv
	}
	return out, nil
}

func (s *Service) fail(k rep.Key, cfg pipeline.RepConfig, err error) error {
	s.observe(cfg.Encoder, "", "error", 0)
	s.logger.Error("Representation build failed",
		zap.String("key", k.String()),
		zap.String("encoder", cfg.Encoder),
		zap.Error(err),
	)
	var be *domain.BuildError
	if errors.As(err, &be) {
		return err
	}
	return &domain.BuildError{Key: k.String(), Encoder: cfg.Encoder, Err: err}
}

func (s *Service) observe(encoder, kind, status string, d time.Duration) {
	if s.metrics.Builds != nil {
		s.metrics.Builds.WithLabelValues(encoder, kind, status).Inc()
	}
	if s.metrics.Duration != nil && status == "success" {
		s.metrics.Duration.WithLabelValues(encoder).Observe(d.Seconds())
	}
}
