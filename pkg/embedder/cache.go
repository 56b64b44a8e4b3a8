package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when a CachedProvider is created with a non-positive size.
const DefaultCacheSize = 10000

// CachedProvider wraps a Provider with a bounded LRU cache keyed by the exact
// input text. It is safe for concurrent use.
//
// Failed calls are never cached and never retried here; the error returned
// wraps ErrEmbeddingFailed.
type CachedProvider struct {
	provider Provider
	cache    *lru.Cache[string, []float64]

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// NewCachedProvider wraps provider with a cache holding at most size entries.
func NewCachedProvider(provider Provider, size int) (*CachedProvider, error) {
	if provider == nil {
		return nil, errors.New("NewCachedProvider: provider is required")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("NewCachedProvider: %w", err)
	}

	return &CachedProvider{
		provider: provider,
		cache:    cache,
	}, nil
}

// Embed returns the cached vector for text, calling the wrapped provider on a miss.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.cache.Get(text); ok {
		c.hits.Add(1)
		return clone(v), nil
	}
	c.misses.Add(1)

	v, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	c.cache.Add(text, clone(v))
	return v, nil
}

// EmbedBatch serves cached texts from the cache and sends only the misses to
// the wrapped provider in a single batch.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			c.hits.Add(1)
			out[i] = clone(v)
			continue
		}
		c.misses.Add(1)
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.provider.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, wrapProviderErr(err)
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(missing))
	}

	for j, v := range vectors {
		c.cache.Add(missing[j], clone(v))
		out[missingIdx[j]] = v
	}
	return out, nil
}

// Dimensions returns the wrapped provider's dimensions.
func (c *CachedProvider) Dimensions() int {
	return c.provider.Dimensions()
}

// Close purges the cache and closes the wrapped provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.provider.Close()
}

// Stats returns hit and miss counters and the current entry count.
func (c *CachedProvider) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}

func wrapProviderErr(err error) error {
	if errors.Is(err, ErrEmbeddingFailed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}

// clone keeps callers from mutating cached vectors.
func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
