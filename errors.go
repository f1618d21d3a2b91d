package ragpipe

import "github.com/kailas-cloud/ragpipe/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration          = domain.ErrConfiguration
	ErrUnsupportedMethod      = domain.ErrUnsupportedMethod
	ErrResolution             = domain.ErrResolution
	ErrBuild                  = domain.ErrBuild
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrTransformProviderError = domain.ErrTransformProviderError
)
