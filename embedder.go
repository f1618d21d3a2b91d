package ragpipe

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

type (
	// EmbeddingResult is one vector with the tokens it cost.
	EmbeddingResult = domain.EmbeddingResult
	// BatchEmbeddingResult holds vectors in input order with summed usage.
	BatchEmbeddingResult = domain.BatchEmbeddingResult
)

// Embedder turns text into a vector for dense encoders.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is implemented by embedders that take many texts per call.
// Representation builds use it when available.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// Transformer rewrites text with a language model for llm* encoders.
type Transformer interface {
	Transform(ctx context.Context, prompt string) (string, error)
}

// providerErr tags a caller-supplied failure with the matching sentinel.
func providerErr(sentinel error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", sentinel, op, err)
}

// adaptEmbedder tags errors of e as embedding provider errors. The batch
// path is kept only when e has one.
func adaptEmbedder(e Embedder) domain.Embedder {
	if e == nil {
		return nil
	}
	if be, ok := e.(BatchEmbedder); ok {
		return batchEmbedder{single: single{e}, batch: be}
	}
	return single{e}
}

type single struct{ inner Embedder }

func (s single) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := s.inner.Embed(ctx, text)
	return r, providerErr(domain.ErrEmbeddingProviderError, "embed", err)
}

type batchEmbedder struct {
	single
	batch BatchEmbedder
}

func (b batchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	r, err := b.batch.BatchEmbed(ctx, texts)
	return r, providerErr(domain.ErrEmbeddingProviderError, "batch embed", err)
}

type transformerAdapter struct{ inner Transformer }

func (a *transformerAdapter) Transform(ctx context.Context, prompt string) (string, error) {
	out, err := a.inner.Transform(ctx, prompt)
	if err != nil {
		return "", providerErr(domain.ErrTransformProviderError, "transform", err)
	}
	return out, nil
}
