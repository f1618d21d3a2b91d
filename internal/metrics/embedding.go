package metrics

// Provider calls. provider is "openai" or "noop"; status is "success" or "error".
var (
	EmbeddingRequestsTotal = counter("embedding_requests_total",
		"Embedding provider calls", "provider", "model", "status")
	EmbeddingRequestDuration = histogram("embedding_request_duration_seconds",
		"Embedding provider call latency", []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}, "provider", "model")
	EmbeddingTokensTotal = counter("embedding_tokens_total",
		"Tokens billed by the embedding provider", "provider", "model", "type")
	EmbeddingErrorsTotal = counter("embedding_errors_total",
		"Embedding provider failures by class", "provider", "model", "error_type")
	// EmbeddingCacheTotal counts cached lookups per text: hit or miss.
	EmbeddingCacheTotal = counter("embedding_cache_total",
		"Embedding cache lookups", "result")

	TransformRequestsTotal = counter("llm_transform_requests_total",
		"LLM transform calls", "provider", "model", "status")
	TransformRequestDuration = histogram("llm_transform_request_duration_seconds",
		"LLM transform call latency", []float64{.25, .5, 1, 2.5, 5, 10, 30, 60}, "provider", "model")
)
