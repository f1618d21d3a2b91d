package domain

import (
	"context"
	"fmt"
)

// Embedder vectorizes one text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes many texts in one provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// Transformer rewrites text with a language model (summaries, keywords, hypothetical answers).
type Transformer interface {
	Transform(ctx context.Context, prompt string) (string, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector with the tokens billed for it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Add appends one vector and its usage.
func (r *BatchEmbeddingResult) Add(res EmbeddingResult) {
	r.Embeddings = append(r.Embeddings, res.Embedding)
	r.PromptTokens += res.PromptTokens
	r.TotalTokens += res.TotalTokens
}

// Merge appends the vectors and usage of other.
func (r *BatchEmbeddingResult) Merge(other BatchEmbeddingResult) {
	r.Embeddings = append(r.Embeddings, other.Embeddings...)
	r.PromptTokens += other.PromptTokens
	r.TotalTokens += other.TotalTokens
}

// Check verifies that the result holds n vectors of one dimension.
func (r BatchEmbeddingResult) Check(n int) error {
	if len(r.Embeddings) != n {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingProviderError, len(r.Embeddings), n)
	}
	for i := 1; i < len(r.Embeddings); i++ {
		if len(r.Embeddings[i]) != len(r.Embeddings[0]) {
			return fmt.Errorf("%w: vector %d has dimension %d, vector 0 has %d",
				ErrEmbeddingProviderError, i, len(r.Embeddings[i]), len(r.Embeddings[0]))
		}
	}
	return nil
}

// EmbedAll vectorizes texts with the native batch call when e has one and
// one Embed call per text otherwise. The result always passes Check.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}

	var res BatchEmbeddingResult
	if be, ok := e.(BatchEmbedder); ok {
		var err error
		if res, err = be.BatchEmbed(ctx, texts); err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed %d texts: %w", len(texts), err)
		}
	} else {
		res.Embeddings = make([][]float32, 0, len(texts))
		for i, text := range texts {
			one, err := e.Embed(ctx, text)
			if err != nil {
				return BatchEmbeddingResult{}, fmt.Errorf("embed text %d: %w", i, err)
			}
			res.Add(one)
		}
	}

	if err := res.Check(len(texts)); err != nil {
		return BatchEmbeddingResult{}, err
	}
	return res, nil
}

// Instructed prefixes every text with an instruction before embedding, e.g.
// "search_query: " on the query side of an asymmetric model.
type Instructed struct {
	inner       Embedder
	instruction string
}

// WithInstruction wraps e; an empty instruction returns e unchanged.
func WithInstruction(e Embedder, instruction string) Embedder {
	if instruction == "" {
		return e
	}
	return &Instructed{inner: e, instruction: instruction}
}

// Embed implements Embedder.
func (e *Instructed) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return e.inner.Embed(ctx, e.instruction+text)
}

// BatchEmbed implements BatchEmbedder over EmbedAll of the inner embedder.
func (e *Instructed) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}
	return EmbedAll(ctx, e.inner, prefixed)
}
