package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/resilience"
)

// TransformerConfig holds the chat completion settings for llm encoders.
type TransformerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Provider    string
	System      string // optional system message
	Temperature float32
	MaxTokens   int
	Limits      Limits
	Executor    *resilience.Executor // optional
	Logger      *zap.Logger
}

// Transformer rewrites text through a chat completion model.
type Transformer struct {
	client      *openai.Client
	caller      caller
	model       string
	provider    string
	system      string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewTransformer creates an OpenAI-compatible chat transformer.
func NewTransformer(cfg *TransformerConfig) *Transformer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		caller:      caller{limiter: cfg.Limits.limiter(), executor: cfg.Executor},
		model:       cfg.Model,
		provider:    cfg.Provider,
		system:      cfg.System,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Transform implements domain.Transformer. The reply is returned trimmed.
func (t *Transformer) Transform(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if t.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: t.system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       t.model,
		Messages:    messages,
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}

	start := time.Now()

	var resp openai.ChatCompletionResponse
	err := t.caller.do(ctx, "transform:"+t.provider, func(ctx context.Context) error {
		var callErr error
		resp, callErr = t.client.CreateChatCompletion(ctx, req)
		return callErr
	})

	duration := time.Since(start)

	if err != nil {
		metrics.TransformRequestsTotal.WithLabelValues(t.provider, t.model, "error").Inc()
		t.logger.Warn("transform request failed", zap.String("provider", t.provider), zap.Error(err))
		return "", parseAPIError("transform", err, domain.ErrTransformProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.TransformRequestsTotal.WithLabelValues(t.provider, t.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrTransformProviderError)
	}

	metrics.TransformRequestsTotal.WithLabelValues(t.provider, t.model, "success").Inc()
	metrics.TransformRequestDuration.WithLabelValues(t.provider, t.model).Observe(duration.Seconds())

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies API availability via ListModels.
func (t *Transformer) HealthCheck(ctx context.Context) error {
	if _, err := t.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
