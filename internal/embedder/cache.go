package embedder

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/localmind/localmind/internal/cache"
	"github.com/localmind/localmind/internal/rag"
)

// cacheKeyLen is the number of leading characters of the input text used as
// the cache key. Texts sharing a long common prefix collide and return the
// first-embedded vector; query-length inputs rarely exceed this, and the
// occasional collision costs retrieval quality, not correctness.
const cacheKeyLen = 100

// CachedEmbedder decorates a rag.Embedder with a bounded LRU cache so repeated
// queries skip the embedding round-trip. It is safe for concurrent use.
type CachedEmbedder struct {
	// inner is the wrapped embedder that computes cache misses.
	inner rag.Embedder
	// cache maps text prefixes to previously computed vectors.
	cache *cache.Cache[[]float32]
	// hits and misses count cache outcomes. Either may be nil.
	hits   prometheus.Counter
	misses prometheus.Counter
}

// CacheConfig holds the settings for constructing a CachedEmbedder.
type CacheConfig struct {
	// Capacity is the maximum number of cached vectors. Defaults to 1024.
	Capacity int
	// Hits is an optional counter incremented on every cache hit.
	Hits prometheus.Counter
	// Misses is an optional counter incremented on every cache miss.
	Misses prometheus.Counter
}

// NewCachedEmbedder wraps inner with an LRU embedding cache.
func NewCachedEmbedder(inner rag.Embedder, cfg *CacheConfig) (*CachedEmbedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: inner embedder must not be nil")
	}
	if cfg == nil {
		cfg = &CacheConfig{}
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache.New[[]float32](cfg.Capacity, 0),
		hits:   cfg.Hits,
		misses: cfg.Misses,
	}, nil
}

// Embed returns embeddings for texts, serving from the cache where possible
// and batching all misses into a single call to the wrapped embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if v, ok := e.cache.Get(cacheKey(t)); ok {
			e.count(e.hits)
			out[i] = v
			continue
		}
		e.count(e.misses)
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(missTexts), len(vecs))
	}

	for j, v := range vecs {
		e.cache.Put(cacheKey(missTexts[j]), v)
		out[missIdx[j]] = v
	}
	return out, nil
}

// count increments c when it is non-nil.
func (e *CachedEmbedder) count(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// cacheKey derives the cache key from the leading characters of text.
func cacheKey(text string) string {
	if len(text) > cacheKeyLen {
		return text[:cacheKeyLen]
	}
	return text
}
