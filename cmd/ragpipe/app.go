package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/config"
	"github.com/kailas-cloud/ragpipe/internal/db"
	dbRedis "github.com/kailas-cloud/ragpipe/internal/db/redis"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
	"github.com/kailas-cloud/ragpipe/internal/repository/embcache"
	"github.com/kailas-cloud/ragpipe/internal/repository/indexstore"
	"github.com/kailas-cloud/ragpipe/internal/resilience"
	openaiTransport "github.com/kailas-cloud/ragpipe/internal/transport/openai"
	"github.com/kailas-cloud/ragpipe/internal/usecase/bridge"
	embeddinguc "github.com/kailas-cloud/ragpipe/internal/usecase/embedding"
	"github.com/kailas-cloud/ragpipe/internal/usecase/encoder"
	"github.com/kailas-cloud/ragpipe/internal/usecase/funcs"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	"github.com/kailas-cloud/ragpipe/internal/usecase/indexcache"
	"github.com/kailas-cloud/ragpipe/internal/usecase/representation"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

// app is the composition root shared by the commands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     db.Store          // nil for the memory driver
	indexes   *indexstore.Repo  // nil for the memory driver
	pipeline  *pipeline.Config
	state     *pipeline.State
	retriever *retriever.Service
	health    *healthuc.Service
}

// loadConfig reads the service config and applies flag overrides.
func loadConfig(f rootFlags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load(f.env)
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if f.pipelinePath != "" {
		cfg.Retrieval.PipelinePath = f.pipelinePath
	}
	if f.docsPath != "" {
		cfg.Retrieval.DocumentsPath = f.docsPath
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, nil
}

// openStore connects the configured database; the memory driver has none.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, error) {
	var textSearch bool
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Info("Using in-memory indices only")
		return nil, nil
	case config.DriverRedis:
		textSearch = true
	case config.DriverValkey:
		// valkey-search has no TEXT fields; sparse indices stay in memory
		textSearch = false
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		TextSearch: textSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)
	return store, nil
}

// newApp wires configuration, storage, providers and the retrieval pipeline.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, store: store}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	executor := resilience.NewExecutor(resiliencePolicy(cfg.Resilience), logger)

	// Providers
	checkers := make(map[string]healthuc.Checker)
	vectorizers := make(map[string]encoder.Vectorizer, len(cfg.Embedding.Vectorizers))
	for name, vc := range cfg.Embedding.Vectorizers {
		provCfg := cfg.Embedding.Providers[vc.Provider]
		base := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			Model:      vc.Model,
			Dimensions: vc.Dimensions,
			Provider:   vc.Provider,
			Limits:     openaiTransport.Limits{RequestsPerSecond: provCfg.RequestsPerSecond, Burst: provCfg.Burst},
			Executor:   executor,
			Logger:     logger,
		})
		checkers["embedding:"+name] = base

		inner := buildEmbedder(name, vc, base, store, cfg.Storage, logger)
		vectorizers[name] = encoder.Vectorizer{
			Documents: domain.WithInstruction(inner, vc.DocumentInstruction),
			Queries:   domain.WithInstruction(inner, vc.QueryInstruction),
		}
		logger.Info("Vectorizer created",
			zap.String("vectorizer", name),
			zap.String("provider", vc.Provider),
			zap.String("model", vc.Model),
			zap.Int("dimensions", vc.Dimensions),
		)
	}

	// Pass a nil interface (not a typed nil pointer) when no LLM is configured.
	var transformer domain.Transformer
	if cfg.LLM.Provider != "" {
		provCfg := cfg.Embedding.Providers[cfg.LLM.Provider]
		t := openaiTransport.NewTransformer(&openaiTransport.TransformerConfig{
			APIKey:      provCfg.APIKey,
			BaseURL:     provCfg.BaseURL,
			Model:       cfg.LLM.Model,
			Provider:    cfg.LLM.Provider,
			System:      cfg.LLM.System,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Limits:      openaiTransport.Limits{RequestsPerSecond: provCfg.RequestsPerSecond, Burst: provCfg.Burst},
			Executor:    executor,
			Logger:      logger,
		})
		transformer = t
		checkers["llm"] = t
	}

	// Index cache: persistent when a database is configured.
	var backend indexcache.Backend
	if store != nil {
		a.indexes = indexstore.New(store, cfg.Storage.KeyPrefix)
		backend = a.indexes
	}
	cache := indexcache.New(backend, metrics.IndexCacheLookupsTotal, logger)

	enc := encoder.New(vectorizers, transformer, cache, encoder.Metrics{
		Builds:   metrics.RepresentationBuildsTotal,
		Duration: metrics.RepresentationBuildDuration,
	}, logger)

	// Pipeline
	p, err := config.LoadPipeline(cfg.Retrieval.PipelinePath)
	if err != nil {
		return nil, err
	}
	if err := enc.ValidatePipeline(p); err != nil {
		return nil, err
	}
	a.pipeline = p

	docs, err := loadDocuments(cfg.Retrieval.DocumentsPath)
	if err != nil {
		return nil, err
	}
	state, err := pipeline.NewState(docs, document.LeafType(p.DocLeafType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	a.state = state

	registry := funcs.NewBuiltinRegistry(logger, metrics.EvalResultsTotal)
	bridges, err := bridge.New(p, registry, bridge.Metrics{
		Duration: metrics.BridgeEvalDuration,
		Results:  metrics.BridgeResults,
	}, logger)
	if err != nil {
		return nil, err
	}

	reps := representation.New(p, enc, logger)
	a.retriever, err = retriever.New(p, bridges, reps, retriever.Options{
		RRFK:     cfg.Retrieval.RRFK,
		Parallel: cfg.Retrieval.ParallelBridges,
	}, metrics.MergesTotal, logger)
	if err != nil {
		return nil, err
	}

	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	a.health = healthuc.New(pinger, checkers, time.Duration(cfg.HTTP.HealthCheckSec)*time.Second)

	logger.Info("Pipeline ready",
		zap.String("pipeline", cfg.Retrieval.PipelinePath),
		zap.String("documents", cfg.Retrieval.DocumentsPath),
		zap.Int("docs", docs.Len()),
		zap.Int("bridges", len(p.Bridges)),
		zap.Int("merges", len(p.Merges)),
		zap.String("default_merge", a.retriever.DefaultMerge()),
	)

	ok = true
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// Instructions are added by the caller so the cache key includes them.
func buildEmbedder(
	name string,
	vc config.VectorizerConfig,
	base domain.Embedder,
	store db.Store,
	storage config.StorageConfig,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix:  storage.KeyPrefix + "emb_cache:" + name + ":",
			TTL:        time.Duration(storage.EmbeddingCacheTTLSec) * time.Second,
			Dimensions: vc.Dimensions,
		}, metrics.EmbeddingCacheTotal, logger)
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Options{
		Vectorizer:  name,
		Model:       vc.Model,
		MaxBatch:    vc.MaxBatchSize,
		Concurrency: vc.MaxConcurrentBatches,
	}, logger)
}

// loadDocuments reads the collection; .json is an array of objects, anything else JSONL.
func loadDocuments(path string) (*document.Collection, error) {
	if path == "" {
		return nil, errors.New("documents path is required (retrieval.documents_path or --docs)")
	}
	docs, err := document.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

func resiliencePolicy(rc config.ResilienceConfig) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        rc.Retry.MaxAttempts,
		RetryInitialBackoff:     time.Duration(rc.Retry.InitialBackoffMs) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(rc.Retry.MaxBackoffMs) * time.Millisecond,
		RetryMultiplier:         rc.Retry.Multiplier,
		BreakerEnabled:          !rc.Breaker.Disabled,
		BreakerMinRequests:      rc.Breaker.MinRequests,
		BreakerFailureRatio:     rc.Breaker.FailureRatio,
		BreakerOpenTimeout:      time.Duration(rc.Breaker.OpenTimeoutSec) * time.Second,
		BreakerHalfOpenMaxCalls: rc.Breaker.HalfOpenMaxCalls,
	}
}

// newLogger builds the logger of a command; quiet commands default to warn.
func newLogger(f rootFlags, cfg config.Config, quiet bool) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if quiet && level == "" {
		level = "warn"
	}
	logger, err := logpkg.New(f.env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
