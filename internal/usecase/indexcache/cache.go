// Package indexcache is the process-wide cache of storage-backed representation indices.
package indexcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/index"
	"github.com/kailas-cloud/ragpipe/internal/repository/indexstore"
)

// Key identifies a built index across pipeline runs.
type Key struct {
	Rep     rep.Key
	Encoder string
}

// Name is the storage name of the index.
func (k Key) Name() string { return k.Rep.StorageName(k.Encoder) }

func (k Key) String() string { return k.Rep.String() + "@" + k.Encoder }

// Backend persists stored indices and their registry records.
type Backend interface {
	index.VectorStore
	index.TextStore
	// SupportsTextSearch reports whether sparse indices can be stored.
	SupportsTextSearch(ctx context.Context) bool
	Load(ctx context.Context, name string) (indexstore.Record, error)
	Save(ctx context.Context, rec indexstore.Record) error
	Delete(ctx context.Context, name string) error
}

// Cache maps Key to a fully built index. Readers see an entry only after Put.
// A nil backend keeps entries for the process lifetime only.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]index.Index

	backend Backend
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates a cache. lookups is a counter vec with label "result" (hit/miss/stored), may be nil.
func New(backend Backend, lookups *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		entries: make(map[Key]index.Index),
		backend: backend,
		lookups: lookups,
		logger:  logger,
	}
}

// Persistent reports whether entries survive the process.
func (c *Cache) Persistent() bool { return c.backend != nil }

// Backend returns the persistence backend, nil for a process-local cache.
func (c *Cache) Backend() Backend { return c.backend }

// Get returns the cached index for k, reopening it from the registry when a
// previous process persisted it.
func (c *Cache) Get(ctx context.Context, k Key) (index.Index, bool, error) {
	c.mu.RLock()
	idx, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		c.inc("hit")
		return idx, true, nil
	}

	if c.backend == nil {
		c.inc("miss")
		return nil, false, nil
	}

	rec, err := c.backend.Load(ctx, k.Name())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.inc("miss")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load index %s: %w", k, err)
	}

	switch rec.Kind {
	case index.KindDense:
		idx = index.OpenDense(c.backend, rec.Name, rec.Dim, rec.Count)
	case index.KindSparse:
		idx = index.OpenSparse(c.backend, rec.Name, rec.Count)
	default:
		c.inc("miss")
		return nil, false, nil
	}

	c.logger.Info("Reopened stored index",
		zap.String("key", k.String()),
		zap.String("kind", string(rec.Kind)),
		zap.Int("count", rec.Count),
	)
	c.inc("hit")
	return c.loadOrStore(k, idx), true, nil
}

// Put registers a fully built index. If another caller stored k first, that
// index is returned instead and idx is discarded.
func (c *Cache) Put(ctx context.Context, k Key, idx index.Index) (index.Index, error) {
	if c.backend != nil {
		if rec, ok := record(k, idx); ok {
			if err := c.backend.Save(ctx, rec); err != nil {
				return nil, fmt.Errorf("register index %s: %w", k, err)
			}
		}
	}
	c.inc("stored")
	return c.loadOrStore(k, idx), nil
}

// Invalidate drops k from the cache and from storage.
func (c *Cache) Invalidate(ctx context.Context, k Key) error {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()

	if c.backend == nil {
		return nil
	}
	if err := c.backend.Delete(ctx, k.Name()); err != nil {
		return fmt.Errorf("invalidate index %s: %w", k, err)
	}
	return nil
}

// Len returns the number of cached indices.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) loadOrStore(k Key, idx index.Index) index.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[k]; ok {
		return existing
	}
	c.entries[k] = idx
	return idx
}

func (c *Cache) inc(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// record builds the registry entry of a stored index; in-memory variants have none.
func record(k Key, idx index.Index) (indexstore.Record, bool) {
	rec := indexstore.Record{
		Name:      k.Name(),
		FieldPath: k.Rep.FieldPath(),
		Rep:       k.Rep.Name(),
		Encoder:   k.Encoder,
		Kind:      idx.Kind(),
		Count:     idx.Len(),
	}
	switch v := idx.(type) {
	case *index.Dense:
		if !v.Stored() {
			return rec, false
		}
		rec.Dim = v.Dim()
	case *index.Sparse:
		if !v.Stored() {
			return rec, false
		}
	default:
		return rec, false
	}
	return rec, true
}
