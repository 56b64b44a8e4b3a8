package embedder_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/embedder"
	"github.com/oceanbase/powermem-mcp/pkg/embedder/mock"
)

// countingProvider counts calls to the wrapped provider and can be told to fail.
type countingProvider struct {
	embedder.Provider
	calls      atomic.Int64
	batchCalls atomic.Int64
	fail       atomic.Bool
}

func newCountingProvider() *countingProvider {
	return &countingProvider{Provider: mock.NewClient(&mock.Config{Dimensions: 16})}
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("upstream unavailable")
	}
	return p.Provider.Embed(ctx, text)
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	p.batchCalls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("upstream unavailable")
	}
	return p.Provider.EmbedBatch(ctx, texts)
}

func TestCachedProvider_HitSkipsProvider(t *testing.T) {
	inner := newCountingProvider()
	cached, err := embedder.NewCachedProvider(inner, 10)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "same text")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())

	stats := cached.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestCachedProvider_ReturnsCopies(t *testing.T) {
	cached, err := embedder.NewCachedProvider(newCountingProvider(), 10)
	require.NoError(t, err)

	ctx := context.Background()
	v, err := cached.Embed(ctx, "text")
	require.NoError(t, err)
	v[0] = 42

	again, err := cached.Embed(ctx, "text")
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, again[0])
}

func TestCachedProvider_Bounded(t *testing.T) {
	inner := newCountingProvider()
	cached, err := embedder.NewCachedProvider(inner, 2)
	require.NoError(t, err)

	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		_, err := cached.Embed(ctx, text)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Stats().Size)

	// "a" was evicted as least recently used
	_, err = cached.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), inner.calls.Load())
}

func TestCachedProvider_FailureNotCached(t *testing.T) {
	inner := newCountingProvider()
	cached, err := embedder.NewCachedProvider(inner, 10)
	require.NoError(t, err)

	ctx := context.Background()
	inner.fail.Store(true)
	_, err = cached.Embed(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrEmbeddingFailed)
	assert.Equal(t, int64(1), inner.calls.Load(), "the cache must not retry")

	inner.fail.Store(false)
	_, err = cached.Embed(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedProvider_EmbedBatchOnlyMisses(t *testing.T) {
	inner := newCountingProvider()
	cached, err := embedder.NewCachedProvider(inner, 10)
	require.NoError(t, err)

	ctx := context.Background()
	single, err := cached.Embed(ctx, "b")
	require.NoError(t, err)

	vectors, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, single, vectors[1])
	assert.Equal(t, int64(1), inner.batchCalls.Load())

	_, err = cached.EmbedBatch(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batchCalls.Load(), "all texts were cached")
}

func TestCachedProvider_Concurrent(t *testing.T) {
	cached, err := embedder.NewCachedProvider(newCountingProvider(), 8)
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := cached.Embed(ctx, string(rune('a'+(i+j)%12)))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cached.Stats().Size, 8)
}

func TestNewCachedProvider(t *testing.T) {
	_, err := embedder.NewCachedProvider(nil, 10)
	assert.Error(t, err)

	cached, err := embedder.NewCachedProvider(newCountingProvider(), 0)
	require.NoError(t, err)
	assert.Equal(t, 16, cached.Dimensions())
	assert.NoError(t, cached.Close())
}
