package chi

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/usecase/health"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

// answerer runs merge policies (ISP).
type answerer interface {
	Answer(ctx context.Context, query string, state *pipeline.State, opts retriever.AnswerOptions) ([]result.Result, error)
	DefaultMerge() string
}

// healthChecker reports dependency health.
type healthChecker interface {
	Check(ctx context.Context) health.Report
}
