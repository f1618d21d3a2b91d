package domain

import (
	"context"
	"errors"
	"testing"
)

// lenEmbedder maps a text to (len(text), 1) and records what it saw.
type lenEmbedder struct {
	texts []string
	err   error
}

func (e *lenEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	if e.err != nil {
		return EmbeddingResult{}, e.err
	}
	e.texts = append(e.texts, text)
	return EmbeddingResult{Embedding: []float32{float32(len(text)), 1}, PromptTokens: 2, TotalTokens: 3}, nil
}

// cannedBatch answers BatchEmbed with a fixed result.
type cannedBatch struct {
	lenEmbedder
	res   BatchEmbeddingResult
	calls int
}

func (c *cannedBatch) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	return c.res, c.err
}

func TestEmbedAll_OnePerTextWithoutBatch(t *testing.T) {
	e := &lenEmbedder{}
	res, err := EmbedAll(context.Background(), e, []string{"covid", "qr"})
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if len(res.Embeddings) != 2 || res.Embeddings[0][0] != 5 || res.Embeddings[1][0] != 2 {
		t.Errorf("unexpected vectors %v", res.Embeddings)
	}
	if res.PromptTokens != 4 || res.TotalTokens != 6 {
		t.Errorf("usage = %d/%d, want 4/6", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	e := &cannedBatch{res: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}, TotalTokens: 9}}
	res, err := EmbedAll(context.Background(), e, []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedAll: %v", err)
	}
	if e.calls != 1 || res.TotalTokens != 9 {
		t.Errorf("expected one batch call, got %d (%+v)", e.calls, res)
	}
}

func TestEmbedAll_Empty(t *testing.T) {
	e := &cannedBatch{}
	res, err := EmbedAll(context.Background(), e, nil)
	if err != nil || len(res.Embeddings) != 0 || e.calls != 0 {
		t.Fatalf("EmbedAll(nil) = %+v, %v after %d calls", res, err, e.calls)
	}
}

func TestEmbedAll_RejectsBadBatches(t *testing.T) {
	tests := map[string]BatchEmbeddingResult{
		"short":     {Embeddings: [][]float32{{1, 2}}},
		"mixed dim": {Embeddings: [][]float32{{1, 2}, {3}}},
	}
	for name, res := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := EmbedAll(context.Background(), &cannedBatch{res: res}, []string{"a", "b"})
			if !errors.Is(err, ErrEmbeddingProviderError) {
				t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
			}
		})
	}
}

func TestEmbedAll_WrapsProviderError(t *testing.T) {
	down := errors.New("provider down")
	if _, err := EmbedAll(context.Background(), &lenEmbedder{err: down}, []string{"a"}); !errors.Is(err, down) {
		t.Errorf("single path: expected wrapped error, got %v", err)
	}
	batch := &cannedBatch{}
	batch.err = down
	if _, err := EmbedAll(context.Background(), batch, []string{"a"}); !errors.Is(err, down) {
		t.Errorf("batch path: expected wrapped error, got %v", err)
	}
}

func TestWithInstruction(t *testing.T) {
	inner := &lenEmbedder{}
	if WithInstruction(inner, "") != Embedder(inner) {
		t.Error("empty instruction must not wrap")
	}

	e := WithInstruction(inner, "search_query: ")
	if _, err := e.Embed(context.Background(), "covid"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	be, ok := e.(BatchEmbedder)
	if !ok {
		t.Fatal("instructed embedder should batch")
	}
	if _, err := be.BatchEmbed(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	want := []string{"search_query: covid", "search_query: a", "search_query: b"}
	for i, w := range want {
		if inner.texts[i] != w {
			t.Errorf("text %d = %q, want %q", i, inner.texts[i], w)
		}
	}
}

func TestBatchEmbeddingResult_Merge(t *testing.T) {
	var r BatchEmbeddingResult
	r.Merge(BatchEmbeddingResult{Embeddings: [][]float32{{1}}, PromptTokens: 1, TotalTokens: 2})
	r.Add(EmbeddingResult{Embedding: []float32{2}, PromptTokens: 3, TotalTokens: 4})
	if err := r.Check(2); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.PromptTokens != 4 || r.TotalTokens != 6 {
		t.Errorf("usage = %d/%d, want 4/6", r.PromptTokens, r.TotalTokens)
	}
}
