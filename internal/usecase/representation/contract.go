package representation

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

// builder is the encoder/build collaborator (ISP).
type builder interface {
	Build(ctx context.Context, k rep.Key, cfg pipeline.RepConfig, state *pipeline.State) (index.Index, error)
}
