package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverMemory = "memory"
)

// Config holds the ragpipe service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	HealthCheckSec  int `yaml:"health_check_timeout_sec"` // per probe
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix            string `yaml:"key_prefix"`
	EmbeddingCacheTTLSec int    `yaml:"embedding_cache_ttl_sec"` // 0 = no expiry
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
}

// ProviderConfig holds settings of an OpenAI-compatible provider.
type ProviderConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// VectorizerConfig holds vectorizer settings. The map key is the encoder name
// representations refer to.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	MaxBatchSize        int    `yaml:"max_batch_size"`

	// MaxConcurrentBatches bounds the provider requests of one batch in flight.
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`
}

// LLMConfig holds the chat model behind llm* encoders. Empty provider disables them.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	System      string  `yaml:"system"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ResilienceConfig holds retry and circuit breaker settings for provider calls.
type ResilienceConfig struct {
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Disabled         bool    `yaml:"disabled"`
	MinRequests      uint32  `yaml:"min_requests"`
	FailureRatio     float64 `yaml:"failure_ratio"`
	OpenTimeoutSec   int     `yaml:"open_timeout_sec"`
	HalfOpenMaxCalls uint32  `yaml:"half_open_max_calls"`
}

// RetrievalConfig points at the pipeline and the document collection.
type RetrievalConfig struct {
	PipelinePath    string `yaml:"pipeline_path"`
	DocumentsPath   string `yaml:"documents_path"`
	RRFK            int    `yaml:"rrf_k"`
	ParallelBridges bool   `yaml:"parallel_bridges"`
	WarmOnStart     bool   `yaml:"warm_on_start"`
	QueryTimeoutSec int    `yaml:"query_timeout_sec"`
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.HealthCheckSec <= 0 {
		c.HTTP.HealthCheckSec = 3
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "ragpipe:"
	}
	if c.Retrieval.PipelinePath == "" {
		c.Retrieval.PipelinePath = filepath.Join("config", "pipeline.yaml")
	}
	if c.Retrieval.QueryTimeoutSec <= 0 {
		c.Retrieval.QueryTimeoutSec = 30
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		bad("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			bad("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		bad("database.driver must be redis, valkey or memory, got %q", c.Database.Driver)
	}
	for name, v := range c.Embedding.Vectorizers {
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			bad("embedding.vectorizers.%s.provider %q is not declared", name, v.Provider)
		}
		if v.Model == "" {
			bad("embedding.vectorizers.%s.model is required", name)
		}
		if v.Dimensions < 0 || v.MaxBatchSize < 0 || v.MaxConcurrentBatches < 0 {
			bad("embedding.vectorizers.%s: dimensions and batch limits must not be negative", name)
		}
	}
	if c.LLM.Provider != "" {
		if _, ok := c.Embedding.Providers[c.LLM.Provider]; !ok {
			bad("llm.provider %q is not declared under embedding.providers", c.LLM.Provider)
		}
		if c.LLM.Model == "" {
			bad("llm.model is required")
		}
	}
	if r := c.Resilience.Breaker.FailureRatio; r < 0 || r > 1 {
		bad("resilience.breaker.failure_ratio must be within [0, 1], got %v", r)
	}
	if c.Retrieval.RRFK < 0 {
		bad("retrieval.rrf_k must not be negative, got %d", c.Retrieval.RRFK)
	}
	return errors.Join(errs...)
}
