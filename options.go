package ragpipe

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/ragpipe/internal/config"
)

// Option configures New.
type Option func(*clientConfig)

type vectorizer struct {
	documents Embedder
	queries   Embedder // nil: documents embeds queries too
}

type clientConfig struct {
	// database; empty driver keeps every index in memory
	driver    string
	addrs     []string
	password  string
	keyPrefix string

	pipelinePath string
	pipelineYAML []byte

	documentsPath string
	documents     []map[string]any
	leafType      string

	vectorizers map[string]vectorizer
	transformer Transformer

	rrfK     int
	parallel bool

	matchFuncs map[string]MatchFunc
	evalFuncs  map[string]EvalFunc

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func withDatabase(driver, addr, password string) Option {
	return func(c *clientConfig) {
		c.driver, c.addrs, c.password = driver, []string{addr}, password
	}
}

// WithValkey stores dense indices in Valkey with the search module. Sparse
// indices stay in memory since valkey-search has no full-text fields.
func WithValkey(addr, password string) Option { return withDatabase(config.DriverValkey, addr, password) }

// WithRedis stores dense and sparse indices in Redis 8.
func WithRedis(addr, password string) Option { return withDatabase(config.DriverRedis, addr, password) }

// WithKeyPrefix namespaces database keys. Default "ragpipe:".
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithPipelineFile reads the pipeline YAML from path.
func WithPipelineFile(path string) Option {
	return func(c *clientConfig) { c.pipelinePath = path }
}

// WithPipelineYAML takes the pipeline definition inline. It wins over WithPipelineFile.
func WithPipelineYAML(data []byte) Option {
	return func(c *clientConfig) { c.pipelineYAML = data }
}

// WithDocumentsFile reads documents from a .json array or a .jsonl file.
func WithDocumentsFile(path string) Option {
	return func(c *clientConfig) { c.documentsPath = path }
}

// WithDocuments takes the documents inline. The client keeps the slice; do not modify it.
func WithDocuments(docs []map[string]any) Option {
	return func(c *clientConfig) { c.documents = docs }
}

// WithLeafType overrides doc_leaf_type of the pipeline: "raw" or "text".
func WithLeafType(leaf string) Option {
	return func(c *clientConfig) { c.leafType = leaf }
}

// WithVectorizer binds the dense encoder name to embedders for each side.
// queries may be nil.
func WithVectorizer(name string, documents, queries Embedder) Option {
	return func(c *clientConfig) {
		if c.vectorizers == nil {
			c.vectorizers = map[string]vectorizer{}
		}
		c.vectorizers[name] = vectorizer{documents: documents, queries: queries}
	}
}

// WithTransformer sets the model behind llm* encoders.
func WithTransformer(t Transformer) Option {
	return func(c *clientConfig) { c.transformer = t }
}

// WithRRFK sets the reciprocal rank fusion constant. Default 60.
func WithRRFK(k int) Option {
	return func(c *clientConfig) { c.rrfK = k }
}

// WithParallelBridges evaluates the bridges of a merge concurrently.
func WithParallelBridges() Option {
	return func(c *clientConfig) { c.parallel = true }
}

// WithMatchFunc registers fn under name for bridges that set matchfn.
// Builtin names (match.exact, match.contains) cannot be replaced.
func WithMatchFunc(name string, fn MatchFunc) Option {
	return func(c *clientConfig) {
		if c.matchFuncs == nil {
			c.matchFuncs = map[string]MatchFunc{}
		}
		c.matchFuncs[name] = fn
	}
}

// WithEvalFunc registers fn under name for bridges that set evalfn.
func WithEvalFunc(name string, fn EvalFunc) Option {
	return func(c *clientConfig) {
		if c.evalFuncs == nil {
			c.evalFuncs = map[string]EvalFunc{}
		}
		c.evalFuncs[name] = fn
	}
}

// WithLogger logs SDK calls (failures at warn, the rest at debug) and the
// engine's own records, including the eval.log hook.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithPrometheus registers ragpipe_sdk_* call counters and latencies on reg,
// and the ragpipe_sdk_eval_results_total counter fed by eval.metrics.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(c *clientConfig) { c.metricsReg = reg }
}
