package ragpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/config"
	"github.com/kailas-cloud/ragpipe/internal/db"
	dbRedis "github.com/kailas-cloud/ragpipe/internal/db/redis"
	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/repository/indexstore"
	"github.com/kailas-cloud/ragpipe/internal/usecase/bridge"
	"github.com/kailas-cloud/ragpipe/internal/usecase/encoder"
	"github.com/kailas-cloud/ragpipe/internal/usecase/funcs"
	"github.com/kailas-cloud/ragpipe/internal/usecase/indexcache"
	"github.com/kailas-cloud/ragpipe/internal/usecase/representation"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "ragpipe:"
)

// answerUseCase is the retriever surface the client needs; swapped in tests.
type answerUseCase interface {
	Answer(ctx context.Context, query string, state *pipeline.State, opts retriever.AnswerOptions) ([]result.Result, error)
	Warm(ctx context.Context, state *pipeline.State, mergeNames ...string) error
	DefaultMerge() string
}

// Client is the ragpipe SDK entry point. It is safe for concurrent use:
// every Answer evaluates on its own fork of the pipeline state.
type Client struct {
	store    db.Store // nil without a database
	answers  answerUseCase
	state    *pipeline.State
	pipeline *pipeline.Config
	obs      *observer
}

// New builds the pipeline and, when a database is configured, connects to it.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o(cfg)
	}

	p, err := loadPipeline(cfg)
	if err != nil {
		return nil, err
	}
	docs, err := loadDocuments(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if cfg.driver != "" {
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, errors.New("ragpipe: database address required")
		}
		store, err = createStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("ragpipe: database not ready: %w", err)
		}
	}

	c, err := wireClient(store, p, docs, cfg, obs)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return c, nil
}

func loadPipeline(cfg *clientConfig) (*pipeline.Config, error) {
	switch {
	case cfg.pipelineYAML != nil:
		return config.ParsePipeline(cfg.pipelineYAML)
	case cfg.pipelinePath != "":
		return config.LoadPipeline(cfg.pipelinePath)
	default:
		return nil, fmt.Errorf("ragpipe: %w: pipeline required (use WithPipelineFile or WithPipelineYAML)",
			domain.ErrConfiguration)
	}
}

func loadDocuments(cfg *clientConfig) (*document.Collection, error) {
	switch {
	case cfg.documents != nil:
		return document.NewCollection(cfg.documents), nil
	case cfg.documentsPath != "":
		docs, err := document.Load(cfg.documentsPath)
		if err != nil {
			return nil, fmt.Errorf("ragpipe: %w", err)
		}
		return docs, nil
	default:
		return nil, errors.New("ragpipe: documents required (use WithDocumentsFile or WithDocuments)")
	}
}

func createStore(cfg *clientConfig) (db.Store, error) {
	var textSearch bool
	switch cfg.driver {
	case config.DriverValkey:
		textSearch = false
	case config.DriverRedis:
		textSearch = true
	default:
		return nil, fmt.Errorf("ragpipe: unknown driver %q", cfg.driver)
	}
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.addrs,
		Password:   cfg.password,
		TextSearch: textSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("ragpipe: create %s store: %w", cfg.driver, err)
	}
	return s, nil
}

func wireClient(
	store db.Store,
	p *pipeline.Config,
	docs *document.Collection,
	cfg *clientConfig,
	obs *observer,
) (*Client, error) {
	logger := newZapLogger(cfg.logger)

	leaf := p.DocLeafType
	if cfg.leafType != "" {
		leaf = cfg.leafType
	}
	state, err := pipeline.NewState(docs, document.LeafType(leaf))
	if err != nil {
		return nil, fmt.Errorf("ragpipe: %w: %v", domain.ErrConfiguration, err)
	}

	vectorizers := make(map[string]encoder.Vectorizer, len(cfg.vectorizers))
	for name, v := range cfg.vectorizers {
		if v.documents == nil {
			return nil, fmt.Errorf("ragpipe: %w: vectorizer %q has no embedder", domain.ErrConfiguration, name)
		}
		vec := encoder.Vectorizer{Documents: adaptEmbedder(v.documents)}
		if v.queries != nil {
			vec.Queries = adaptEmbedder(v.queries)
		}
		vectorizers[name] = vec
	}

	// nil interface, not a typed nil adapter, when no transformer is set
	var transformer domain.Transformer
	if cfg.transformer != nil {
		transformer = &transformerAdapter{inner: cfg.transformer}
	}

	var backend indexcache.Backend
	if store != nil {
		backend = indexstore.New(store, cfg.keyPrefix)
	}
	cache := indexcache.New(backend, nil, logger)

	enc := encoder.New(vectorizers, transformer, cache, encoder.Metrics{}, logger)
	if err := enc.ValidatePipeline(p); err != nil {
		return nil, fmt.Errorf("ragpipe: %w", err)
	}

	registry, err := buildRegistry(cfg, logger, obs)
	if err != nil {
		return nil, err
	}
	bridges, err := bridge.New(p, registry, bridge.Metrics{}, logger)
	if err != nil {
		return nil, fmt.Errorf("ragpipe: %w", err)
	}
	answers, err := retriever.New(p, bridges, representation.New(p, enc, logger), retriever.Options{
		RRFK:     cfg.rrfK,
		Parallel: cfg.parallel,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("ragpipe: %w", err)
	}

	return &Client{
		store:    store,
		answers:  answers,
		state:    state,
		pipeline: p,
		obs:      obs,
	}, nil
}

// buildRegistry returns the builtin functions plus the ones passed with
// WithMatchFunc and WithEvalFunc.
func buildRegistry(cfg *clientConfig, logger *zap.Logger, obs *observer) (*funcs.Registry, error) {
	r := funcs.NewBuiltinRegistry(logger, obs.evalResults)
	for name, fn := range cfg.matchFuncs {
		if err := r.RegisterMatch(name, adaptMatch(fn)); err != nil {
			return nil, fmt.Errorf("ragpipe: %w: %v", domain.ErrConfiguration, err)
		}
	}
	for name, fn := range cfg.evalFuncs {
		if err := r.RegisterEval(name, adaptEval(fn)); err != nil {
			return nil, fmt.Errorf("ragpipe: %w: %v", domain.ErrConfiguration, err)
		}
	}
	return r, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity. Without a database it always succeeds.
func (c *Client) Ping(ctx context.Context) (err error) {
	done := c.obs.track("ping")
	defer func() { done(err) }()

	if c.store == nil {
		return nil
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Answer evaluates the query with the selected merge and returns the fused,
// content-resolved results.
func (c *Client) Answer(ctx context.Context, query string, opts ...AnswerOption) (_ []Result, err error) {
	done := c.obs.track("answer")
	defer func() { done(err) }()

	var ac answerConfig
	for _, o := range opts {
		o(&ac)
	}
	rs, err := c.answers.Answer(ctx, query, c.state.Fork(), retriever.AnswerOptions{
		Merge:   ac.merge,
		QueryID: ac.queryID,
	})
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	return resultsFromDomain(rs), nil
}

// Warm builds the document-side representations of the given merges (all when empty),
// so the first Answer only pays for the query side.
func (c *Client) Warm(ctx context.Context, merges ...string) (err error) {
	done := c.obs.track("warm")
	defer func() { done(err) }()

	if err = c.answers.Warm(ctx, c.state, merges...); err != nil {
		return fmt.Errorf("warm: %w", err)
	}
	return nil
}

// DefaultMerge returns the merge used when Answer is called without WithMerge.
func (c *Client) DefaultMerge() string {
	return c.answers.DefaultMerge()
}

// Merges lists the declared merges in declaration order.
func (c *Client) Merges() []MergeInfo {
	def := c.answers.DefaultMerge()
	out := make([]MergeInfo, 0, len(c.pipeline.Merges))
	for _, m := range c.pipeline.Merges {
		out = append(out, MergeInfo{
			Name:    m.Name,
			Method:  string(m.Method),
			Bridges: append([]string(nil), m.Bridges...),
			Limit:   m.EffectiveLimit(),
			Default: m.Name == def,
		})
	}
	return out
}
