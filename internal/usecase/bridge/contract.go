package bridge

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

// RepManager supplies built representations (ISP).
type RepManager interface {
	GetOrCreate(ctx context.Context, k rep.Key, state *pipeline.State) (index.Index, error)
}
