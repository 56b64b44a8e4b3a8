package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	powermem "github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/embedder"
	"github.com/oceanbase/powermem-mcp/pkg/embedder/mock"
	"github.com/oceanbase/powermem-mcp/pkg/storage/chromem"
)

const testDims = 4

// scriptedProvider returns fixed vectors for known texts and falls back to
// the mock embedder otherwise. It counts calls and can be told to fail.
type scriptedProvider struct {
	mu       sync.Mutex
	vectors  map[string][]float64
	fallback *mock.Client
	calls    int

	// failures makes the next n calls fail.
	failures int
	err      error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		vectors:  map[string][]float64{},
		fallback: mock.NewClient(&mock.Config{Dimensions: testDims}),
		err:      errors.New("upstream unavailable"),
	}
}

func (p *scriptedProvider) set(text string, vector ...float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vectors[text] = vector
}

func (p *scriptedProvider) failNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = n
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	p.mu.Lock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		p.mu.Unlock()
		return nil, p.err
	}
	v, ok := p.vectors[text]
	p.mu.Unlock()

	if ok {
		return append([]float64(nil), v...), nil
	}
	return p.fallback.Embed(ctx, text)
}

func (p *scriptedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *scriptedProvider) Dimensions() int { return testDims }

func (p *scriptedProvider) Close() error { return nil }

var _ embedder.Provider = (*scriptedProvider)(nil)

// setupClient returns a client over an in-memory chromem store.
func setupClient(t *testing.T, provider embedder.Provider, opts ...powermem.ClientOption) *powermem.Client {
	t.Helper()

	store, err := chromem.NewClient(nil)
	require.NoError(t, err)

	if provider == nil {
		provider = newScriptedProvider()
	}

	cfg := &powermem.Config{
		Embedder: powermem.EmbedderConfig{Provider: "mock"},
		Retrieval: powermem.RetrievalConfig{
			EmbedRetries:      2,
			EmbedRetryDelayMs: 1,
		},
		ProjectName: "test-project",
	}

	opts = append([]powermem.ClientOption{
		powermem.WithVectorStore(store),
		powermem.WithEmbedder(provider),
	}, opts...)

	client, err := powermem.NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
