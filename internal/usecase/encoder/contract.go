package encoder

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/index"
	"github.com/kailas-cloud/ragpipe/internal/usecase/indexcache"
)

// Encoder names with fixed routing. Any other name must be a configured vectorizer.
const (
	BM25        = "bm25"
	Passthrough = "passthrough"
	NoIndex     = "noindex"
	LLMPrefix   = "llm"
)

// DefaultTransformConcurrency bounds parallel LLM calls while transforming items.
const DefaultTransformConcurrency = 4

// indexCache is the consumer interface for the process-wide index cache (ISP).
type indexCache interface {
	Get(ctx context.Context, k indexcache.Key) (index.Index, bool, error)
	Put(ctx context.Context, k indexcache.Key, idx index.Index) (index.Index, error)
	Backend() indexcache.Backend
}
