package retriever

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/usecase/bridge"
)

// bridgeEvaluator runs named bridges (ISP).
type bridgeEvaluator interface {
	Validate(name string) error
	Evaluate(
		ctx context.Context, name, query, queryID string,
		reps bridge.RepManager, state *pipeline.State,
	) ([]result.Result, error)
}

// AnswerOptions select the merge policy and tag the evaluation.
type AnswerOptions struct {
	// Merge names the merge policy; empty selects the default.
	Merge string
	// QueryID is forwarded to eval functions.
	QueryID string
}
