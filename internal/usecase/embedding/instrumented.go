// Package embedding holds the decorators every vectorizer is wrapped in.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
)

// Defaults for Options.
const (
	DefaultMaxAPIBatchSize = 256
	DefaultConcurrency     = 4
)

// Options describe a vectorizer and how its batches are split.
type Options struct {
	Vectorizer string
	Model      string
	// MaxBatch is the largest number of texts per provider request.
	MaxBatch int
	// Concurrency bounds the requests of one batch in flight.
	Concurrency int
}

// InstrumentedEmbedder splits batches into provider-sized requests and logs
// every call. Transport metrics are recorded by the provider client.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	opts   Options
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner; zero options take the defaults.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options, logger *zap.Logger) *InstrumentedEmbedder {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxAPIBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &InstrumentedEmbedder{inner: inner, opts: opts, logger: logger}
}

// Embed delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	log := p.log(ctx).With(zap.Duration("duration", time.Since(start)))

	if err != nil {
		log.Error("Embedding request failed", zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("vectorizer %s: %w", p.opts.Vectorizer, err)
	}
	log.Debug("Embedding request completed",
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed embeds texts in chunks of at most MaxBatch, keeping input order.
// The first failing chunk cancels the rest.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	start := time.Now()
	log := p.log(ctx)

	parts := make([]domain.BatchEmbeddingResult, (len(texts)+p.opts.MaxBatch-1)/p.opts.MaxBatch)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range parts {
		lo := i * p.opts.MaxBatch
		hi := min(lo+p.opts.MaxBatch, len(texts))
		g.Go(func() error {
			res, err := domain.EmbedAll(gctx, p.inner, texts[lo:hi])
			if err != nil {
				log.Error("Batch embedding request failed",
					zap.Int("chunk_offset", lo),
					zap.Int("chunk_size", hi-lo),
					zap.Error(err),
				)
				return fmt.Errorf("chunk at %d: %w", lo, err)
			}
			parts[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("vectorizer %s: %w", p.opts.Vectorizer, err)
	}

	all := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, part := range parts {
		all.Merge(part)
	}
	if err := all.Check(len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("vectorizer %s: %w", p.opts.Vectorizer, err)
	}

	log.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("requests", len(parts)),
		zap.Int("total_tokens", all.TotalTokens),
	)
	return all, nil
}

func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	return logpkg.From(ctx, p.logger).With(
		zap.String("vectorizer", p.opts.Vectorizer),
		zap.String("model", p.opts.Model),
	)
}
