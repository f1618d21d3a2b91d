// Package metrics declares the prometheus collectors of the service.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ragpipe"

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func all() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal, HTTPRequestDuration, HTTPInFlight,
		EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal,
		EmbeddingErrorsTotal, EmbeddingCacheTotal,
		TransformRequestsTotal, TransformRequestDuration,
		RepresentationBuildsTotal, RepresentationBuildDuration, IndexCacheLookupsTotal,
		BridgeEvalDuration, BridgeResults, MergesTotal, EvalResultsTotal,
	}
}

// Register adds every collector to reg. Collectors that reg already holds
// are skipped, so calling it twice is harmless.
func Register(reg prometheus.Registerer) error {
	for _, c := range all() {
		err := reg.Register(c)
		var dup prometheus.AlreadyRegisteredError
		if err != nil && !errors.As(err, &dup) {
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}
