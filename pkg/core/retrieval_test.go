package core_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	powermem "github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/document"
)

func TestSearchReturnsPreviewsOnly(t *testing.T) {
	ctx := context.Background()
	provider := newScriptedProvider()
	client := setupClient(t, provider)

	provider.set(retryDoc, 1, 0, 0, 0)
	provider.set("how do I retry", 0.9, 0.1, 0, 0)

	stored, err := client.Store(ctx, retryDoc, powermem.Metadata{
		MemoryType: powermem.MemoryTypeProcedural,
		Role:       collection.RoleBackend,
		Tags:       []string{"backend", "resilience"},
	}, "global")
	require.NoError(t, err)

	res, err := client.Search(ctx, "how do I retry", "global", powermem.WithRole("backend"))
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "backend-patterns", res.Collection)
	assert.Equal(t, "Found 1 memory previews. Use get_memory(doc_id) to retrieve full content.", res.Message)

	preview := res.Results[0]
	assert.Equal(t, stored.DocID, preview.DocID)
	assert.Equal(t, "Retry with jitter", preview.Title)
	assert.Equal(t, "Backoff strategy for flaky upstreams", preview.Description)
	assert.Equal(t, "procedural", preview.MemoryType)
	assert.Equal(t, "backend", preview.Role)
	assert.Equal(t, []string{"backend", "resilience"}, preview.Tags)
	assert.NotEqual(t, "unknown", preview.CreatedAt)
	assert.InDelta(t, 0.994, preview.Similarity, 0.001)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "full jitter")
	assert.NotContains(t, string(body), "document")

	memory, err := client.Get(ctx, preview.DocID, "global", powermem.WithRoleForGet("backend"))
	require.NoError(t, err)
	assert.Contains(t, memory.Document, "full jitter")
}

func TestSearchOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	provider := newScriptedProvider()
	client := setupClient(t, provider)

	docs := []string{
		document.Format(document.Fields{Title: "far"}),
		document.Format(document.Fields{Title: "near"}),
		document.Format(document.Fields{Title: "middle"}),
	}
	provider.set(docs[0], 0, 1, 0, 0)
	provider.set(docs[1], 1, 0, 0, 0)
	provider.set(docs[2], 1, 1, 0, 0)
	provider.set("query", 1, 0, 0, 0)

	for _, doc := range docs {
		_, err := client.Store(ctx, doc, powermem.Metadata{}, "proj-order")
		require.NoError(t, err)
	}

	res, err := client.Search(ctx, "query", "proj-order")
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "near", res.Results[0].Title)
	assert.Equal(t, "middle", res.Results[1].Title)
	assert.Equal(t, "far", res.Results[2].Title)
	for i := 1; i < len(res.Results); i++ {
		assert.GreaterOrEqual(t, res.Results[i-1].Similarity, res.Results[i].Similarity)
	}

	res, err = client.Search(ctx, "query", "proj-order", powermem.WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)

	res, err = client.Search(ctx, "query", "proj-order", powermem.WithMinScore(0.5))
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearchDefaultsForMissingFields(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t, nil)

	_, err := client.Store(ctx, "no markers here", powermem.Metadata{}, "proj-bare")
	require.NoError(t, err)

	res, err := client.Search(ctx, "no markers here", "proj-bare")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	preview := res.Results[0]
	assert.Empty(t, preview.Title)
	assert.Empty(t, preview.Description)
	assert.Equal(t, "unknown", preview.MemoryType)
	assert.Equal(t, []string{}, preview.Tags)
	assert.Equal(t, "unknown", preview.Role)
}

func TestSearchKeepsNegativeScores(t *testing.T) {
	ctx := context.Background()
	provider := newScriptedProvider()
	client := setupClient(t, provider)

	provider.set(retryDoc, 1, 0, 0, 0)
	provider.set("query", -1, 0.1, 0, 0)

	_, err := client.Store(ctx, retryDoc, powermem.Metadata{}, "global")
	require.NoError(t, err)

	res, err := client.Search(ctx, "query", "global")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Results, 1)
	assert.Less(t, res.Results[0].Similarity, 0.0)

	res, err = client.Search(ctx, "query", "global", powermem.WithMinScore(0))
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestSearchMissingCollection(t *testing.T) {
	provider := newScriptedProvider()
	client := setupClient(t, provider)

	res, err := client.Search(context.Background(), "anything", "proj-empty")
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, "Collection 'proj-empty' does not exist", res.Message)
	assert.Equal(t, "No memories stored yet for this level/role", res.Suggestion)
	assert.Zero(t, provider.callCount())
}

func TestSearchEmptyCollection(t *testing.T) {
	client := setupClient(t, nil)

	res, err := client.Search(context.Background(), "anything", "global", powermem.WithRole("quant"))
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, "quant-patterns", res.Collection)
	assert.Equal(t, "No memories found", res.Message)
	assert.Empty(t, res.Suggestion)
}

func TestSearchUnknownRoleFallsBackToUniversal(t *testing.T) {
	client := setupClient(t, nil)

	res, err := client.Search(context.Background(), "anything", "global", powermem.WithRole("astronaut"))
	require.NoError(t, err)
	assert.Equal(t, "universal-patterns", res.Collection)
}

func TestSearchEmptyQuery(t *testing.T) {
	client := setupClient(t, nil)

	_, err := client.Search(context.Background(), " ", "global")
	assert.ErrorIs(t, err, powermem.ErrInvalidInput)
}

func TestSearchUsesEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	provider := newScriptedProvider()
	client := setupClient(t, provider)

	_, err := client.Store(ctx, retryDoc, powermem.Metadata{}, "global")
	require.NoError(t, err)
	require.Equal(t, 1, provider.callCount())

	for i := 0; i < 3; i++ {
		_, err := client.Search(ctx, "retry", "global")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, provider.callCount())

	stats := client.CacheStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestGetMissing(t *testing.T) {
	client := setupClient(t, nil)

	_, err := client.Get(context.Background(), "404", "global")
	require.Error(t, err)
	assert.ErrorIs(t, err, powermem.ErrNotFound)
	assert.Contains(t, err.Error(), "Memory with ID '404' not found")

	_, err = client.Get(context.Background(), "404", "proj-missing")
	assert.ErrorIs(t, err, powermem.ErrNotFound)
}

func TestBatchGet(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t, nil)

	a, err := client.Store(ctx, retryDoc, powermem.Metadata{}, "proj-batch")
	require.NoError(t, err)
	b, err := client.Store(ctx, retryDoc+"\nmore", powermem.Metadata{}, "proj-batch")
	require.NoError(t, err)

	res, err := client.BatchGet(ctx, []string{b.DocID, "missing", a.DocID}, "proj-batch")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.Retrieved)
	require.Len(t, res.Memories, 2)
	assert.Equal(t, b.DocID, res.Memories[0].ID)
	assert.Equal(t, a.DocID, res.Memories[1].ID)
	assert.Equal(t, retryDoc, res.Memories[1].Document)
}

func TestBatchGetMissingCollection(t *testing.T) {
	client := setupClient(t, nil)

	res, err := client.BatchGet(context.Background(), []string{"1", "2"}, "proj-missing")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Zero(t, res.Retrieved)
	assert.Empty(t, res.Memories)
}

func TestMemoryJSON(t *testing.T) {
	memory := powermem.Memory{
		ID:       "1",
		Document: "doc",
		Vector:   []float64{1, 2},
		Metadata: powermem.Metadata{Role: collection.RoleML},
	}

	body, err := json.Marshal(memory)
	require.NoError(t, err)
	assert.JSONEq(t, `{"doc_id":"1","document":"doc","metadata":{"role":"ml"}}`, string(body))
}
