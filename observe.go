package ragpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// observer reports SDK calls to an optional slog logger and prometheus registry.
type observer struct {
	log     *slog.Logger
	calls   *prometheus.CounterVec   // op, status
	latency *prometheus.HistogramVec // op

	// evalResults backs eval.metrics; registered only with a registry.
	evalResults *prometheus.CounterVec // bridge
}

func newObserver(log *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{log: log, evalResults: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragpipe",
		Subsystem: "sdk",
		Name:      "eval_results_total",
		Help:      "Scored references observed by the eval.metrics hook.",
	}, []string{"bridge"})}
	if reg == nil {
		return o, nil
	}

	var err error
	o.calls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragpipe",
		Subsystem: "sdk",
		Name:      "calls_total",
		Help:      "SDK calls by operation and outcome.",
	}, []string{"op", "status"}))
	if err != nil {
		return nil, err
	}
	o.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ragpipe",
		Subsystem: "sdk",
		Name:      "call_duration_seconds",
		Help:      "SDK call latency.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	o.evalResults, err = register(reg, o.evalResults)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg. When an equal collector is already registered,
// for example by a second Client on the same registry, that one is returned.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		return c, fmt.Errorf("ragpipe: register metric: %w", err)
	}
	prev, ok := dup.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("ragpipe: metric registered as %T", dup.ExistingCollector)
	}
	return prev, nil
}

// track starts timing op. The returned func records the outcome.
func (o *observer) track(op string) func(error) {
	if o == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		if o.calls != nil {
			o.calls.WithLabelValues(op, status(err)).Inc()
			o.latency.WithLabelValues(op).Observe(elapsed.Seconds())
		}
		if o.log == nil {
			return
		}
		if err != nil {
			o.log.Warn("ragpipe call failed",
				slog.String("op", op), slog.Duration("elapsed", elapsed), slog.Any("error", err))
			return
		}
		o.log.Debug("ragpipe call done", slog.String("op", op), slog.Duration("elapsed", elapsed))
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
