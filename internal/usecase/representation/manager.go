// Package representation caches the representation indices of a pipeline run:
// one build per key, shared by every bridge that names the key.
package representation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

// Manager is a single-flight cache from representation key to built index.
// A forked Manager owns query-side keys and delegates document-side keys to its parent,
// so per-query representations are dropped with the fork.
type Manager struct {
	cfg     *pipeline.Config
	builder builder
	parent  *Manager
	logger  *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	reps  map[rep.Key]index.Index
}

// New creates a Manager over a read-only pipeline config.
func New(cfg *pipeline.Config, b builder, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		builder: b,
		logger:  logger,
		reps:    make(map[rep.Key]index.Index),
	}
}

// Fork returns a child Manager for one query evaluation.
func (m *Manager) Fork() *Manager {
	child := New(m.cfg, m.builder, m.logger)
	child.parent = m
	return child
}

// GetOrCreate returns the index of k, building it on first request.
// Concurrent requests for the same key wait for one build and share its result.
// A caller whose ctx ends stops waiting; the build itself runs to completion.
func (m *Manager) GetOrCreate(ctx context.Context, k rep.Key, state *pipeline.State) (index.Index, error) {
	if m.parent != nil && !k.IsQuery() {
		return m.parent.GetOrCreate(ctx, k, state)
	}

	if idx, ok := m.lookup(k); ok {
		return idx, nil
	}

	cfg, err := m.resolve(k)
	if err != nil {
		return nil, err
	}

	// The build outlives any single caller: one requester giving up must not fail the
	// others waiting on the same key.
	buildCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(k.String(), func() (any, error) {
		if idx, ok := m.lookup(k); ok {
			return idx, nil
		}

		start := time.Now()
		idx, err := m.builder.Build(buildCtx, k, cfg, state)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.reps[k] = idx
		m.mu.Unlock()

		m.logger.Debug("Representation cached",
			zap.String("key", k.String()),
			zap.String("kind", string(idx.Kind())),
			zap.Duration("duration", time.Since(start)),
		)
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.logger.Debug("Representation build shared", zap.String("key", k.String()))
		}
		return res.Val.(index.Index), nil
	}
}

// Has reports whether k is already built in this Manager (not its parent).
func (m *Manager) Has(k rep.Key) bool {
	_, ok := m.lookup(k)
	return ok
}

// Len returns the number of indices built by this Manager.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reps)
}

// Resolve returns the representation config of k or a configuration error naming
// the section expected to define it.
func (m *Manager) Resolve(k rep.Key) (pipeline.RepConfig, error) {
	return m.resolve(k)
}

func (m *Manager) resolve(k rep.Key) (pipeline.RepConfig, error) {
	cfg, ok := m.cfg.Representation(k)
	if !ok {
		return pipeline.RepConfig{}, &domain.UnresolvedKeyError{Key: k.String(), Section: pipeline.SectionFor(k)}
	}
	if !cfg.Enabled {
		return pipeline.RepConfig{}, &domain.UnresolvedKeyError{
			Key:     k.String(),
			Section: pipeline.SectionFor(k) + " with enabled: true",
		}
	}
	return cfg, nil
}

func (m *Manager) lookup(k rep.Key) (index.Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.reps[k]
	return idx, ok
}
