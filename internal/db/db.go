// Package db is the storage contract behind stored indices, the index
// registry and the embedding cache. Package redis implements it.
package db

import (
	"context"
	"time"
)

// Store combines every capability ragpipe needs from the server.
//
//nolint:interfacebloat // consumers depend on the narrow interfaces below
type Store interface {
	Pinger
	KV
	ItemWriter
	IndexAdmin
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KV holds opaque blobs: registry records and cached embeddings.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Item is one entry of a stored index. Path is the field path of the
// source item; exactly one of Content and Vector is indexed, depending on
// the schema covering Key.
type Item struct {
	Key     string
	Path    string
	Content string
	Vector  []float32
}

// ItemWriter writes the entries covered by stored indices.
type ItemWriter interface {
	PutItems(ctx context.Context, items []Item) error
}

// IndexAdmin manages the lifecycle of FT indexes.
type IndexAdmin interface {
	CreateIndex(ctx context.Context, s Schema) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Searcher queries stored indices.
type Searcher interface {
	SearchKNN(ctx context.Context, q KNNQuery) ([]Hit, error)
	SearchText(ctx context.Context, q TextQuery) ([]Hit, error)
}
