package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/resilience"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // requested output size; 0 keeps the model default
	User       string
	Provider   string // metrics label, e.g. "nebius"
	Limits     Limits
	Executor   *resilience.Executor // optional
	Logger     *zap.Logger
}

// Embedder calls the /embeddings endpoint of an OpenAI-compatible API.
type Embedder struct {
	client   *openai.Client
	caller   caller
	template openai.EmbeddingRequest
	provider string
	logger   *zap.Logger
}

// NewEmbedder creates an embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client: newClient(cfg.APIKey, cfg.BaseURL),
		caller: caller{limiter: cfg.Limits.limiter(), executor: cfg.Executor},
		template: openai.EmbeddingRequest{
			Model:          openai.EmbeddingModel(cfg.Model),
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
			Dimensions:     max(cfg.Dimensions, 0),
			User:           cfg.User,
		},
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// errBadResponse marks a well-formed reply that does not match the request.
var errBadResponse = errors.New("malformed embedding response")

// BatchEmbed implements domain.BatchEmbedder with one request. The reply may
// list vectors in any order; they are placed by their index.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	req := e.template
	req.Input = texts
	model := string(req.Model)

	start := time.Now()
	var resp openai.EmbeddingResponse
	err := e.caller.do(ctx, "embed:"+e.provider, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, req)
		return callErr
	})
	if err != nil {
		e.failed(ctx, model, "api_error", len(texts), err)
		return domain.BatchEmbeddingResult{}, parseAPIError("embedding", err, domain.ErrEmbeddingProviderError)
	}

	vectors, class, err := placeByIndex(resp.Data, len(texts))
	if err != nil {
		e.failed(ctx, model, class, len(texts), err)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %w", err, domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(time.Since(start).Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// placeByIndex orders data by its Index field. On failure it also returns
// the error class used as metrics label.
func placeByIndex(data []openai.Embedding, n int) ([][]float32, string, error) {
	if len(data) != n {
		return nil, "count_mismatch", fmt.Errorf("%w: %d vectors for %d texts", errBadResponse, len(data), n)
	}
	out := make([][]float32, n)
	for _, d := range data {
		if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
			return nil, "bad_index", fmt.Errorf("%w: unexpected index %d", errBadResponse, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, "", nil
}

func (e *Embedder) failed(ctx context.Context, model, class string, texts int, err error) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, class).Inc()
	logpkg.From(ctx, e.logger).Warn("Embedding request failed",
		zap.String("provider", e.provider),
		zap.String("class", class),
		zap.Int("texts", texts),
		zap.Error(err),
	)
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
