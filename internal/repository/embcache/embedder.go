// Package embcache caches embedding vectors in the key-value store, keyed by
// the sha256 of the embedded text under a per-vectorizer prefix.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures key layout, expiry and validation of cached vectors.
type Options struct {
	// KeyPrefix namespaces entries, e.g. "ragpipe:emb_cache:small:".
	KeyPrefix string
	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
	// Dimensions, when set, turns cached vectors of another size into misses.
	Dimensions int
}

// CachedEmbedder serves vectors from the store and embeds only what is missing.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   store
	opts    Options
	lookups *prometheus.CounterVec // label: result (hit, miss)
	logger  *zap.Logger
}

// New wraps inner. lookups may be nil.
func New(inner domain.Embedder, s store, opts Options, lookups *prometheus.CounterVec, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: s, opts: opts, lookups: lookups, logger: logger}
}

// Embed implements domain.Embedder. A hit bills no tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := c.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed looks every text up in one round-trip and embeds the misses in
// one inner call. Usage covers the misses only. Cache failures degrade to misses.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}
	out := c.lookup(ctx, keys)

	var missing []int
	for i, v := range out {
		if v == nil {
			missing = append(missing, i)
		}
	}
	c.count("hit", len(texts)-len(missing))
	c.count("miss", len(missing))
	if len(missing) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	missTexts := make([]string, len(missing))
	for j, i := range missing {
		missTexts[j] = texts[i]
	}
	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(missTexts), err)
	}

	for j, i := range missing {
		out[i] = res.Embeddings[j]
		c.save(ctx, keys[i], out[i])
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.opts.KeyPrefix + hex.EncodeToString(sum[:])
}

// lookup returns one vector per key, nil for misses.
func (c *CachedEmbedder) lookup(ctx context.Context, keys []string) [][]float32 {
	out := make([][]float32, len(keys))
	blobs, err := c.store.GetMany(ctx, keys)
	if err != nil {
		logpkg.From(ctx, c.logger).Warn("Embedding cache lookup failed", zap.Int("keys", len(keys)), zap.Error(err))
		return out
	}
	for i, b := range blobs {
		if b == nil || i >= len(out) {
			continue
		}
		v, err := decodeVector(b)
		if err != nil || (c.opts.Dimensions > 0 && len(v) != c.opts.Dimensions) {
			logpkg.From(ctx, c.logger).Debug("Ignoring cached embedding",
				zap.String("key", keys[i]), zap.Int("dimensions", len(v)), zap.Error(err))
			continue
		}
		out[i] = v
	}
	return out
}

func (c *CachedEmbedder) save(ctx context.Context, key string, v []float32) {
	if err := c.store.SetWithTTL(ctx, key, encodeVector(v), c.opts.TTL); err != nil {
		logpkg.From(ctx, c.logger).Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string, n int) {
	if c.lookups != nil && n > 0 {
		c.lookups.WithLabelValues(result).Add(float64(n))
	}
}

// encodeVector packs v as little-endian float32.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cache entry of %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
