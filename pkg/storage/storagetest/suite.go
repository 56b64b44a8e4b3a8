// Package storagetest holds a behavioural test suite shared by every
// storage.VectorStore backend.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

const dims = 4

// Factory returns a fresh store for one subtest. The suite closes it.
type Factory func(t *testing.T) storage.VectorStore

// Run executes the suite against the stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, store storage.VectorStore, collection string)
	}{
		{"CreateCollectionIsIdempotent", testCreateCollectionIdempotent},
		{"MissingCollection", testMissingCollection},
		{"UpsertAndRetrieve", testUpsertAndRetrieve},
		{"UpsertReplaces", testUpsertReplaces},
		{"RetrieveOrder", testRetrieveOrder},
		{"SearchOrdering", testSearchOrdering},
		{"SearchEmptyCollection", testSearchEmpty},
		{"SetMetadata", testSetMetadata},
		{"DeleteIsIdempotent", testDeleteIdempotent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { _ = store.Close() })

			// unique per run so shared databases do not collide
			collection := fmt.Sprintf("proj-conformance-%d", time.Now().UnixNano())
			require.NoError(t, store.CreateCollection(context.Background(), collection, dims))

			tt.fn(t, store, collection)
		})
	}
}

func point(id, doc string, vector ...float64) *storage.Point {
	return &storage.Point{
		ID:       id,
		Document: doc,
		Vector:   vector,
		Metadata: map[string]interface{}{"title": doc},
	}
}

func testCreateCollectionIdempotent(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, collection, point("a", "alpha", 1, 0, 0, 0)))
	require.NoError(t, store.CreateCollection(ctx, collection, dims))

	n, err := store.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-creating must not drop points")

	exists, err := store.CollectionExists(ctx, collection)
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, collection)
}

func testMissingCollection(t *testing.T, store storage.VectorStore, _ string) {
	ctx := context.Background()
	missing := fmt.Sprintf("proj-missing-%d", time.Now().UnixNano())

	exists, err := store.CollectionExists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Count(ctx, missing)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)

	_, err = store.Search(ctx, missing, []float64{1, 0, 0, 0}, 3)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)

	err = store.Upsert(ctx, missing, point("a", "alpha", 1, 0, 0, 0))
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func testUpsertAndRetrieve(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	p := point("a", "**Title:** Alpha\n\nbody", 0.5, 0.5, 0.5, 0.5)
	p.Metadata["tags"] = []interface{}{"go", "sql"}
	p.Metadata["weight"] = 1.5
	require.NoError(t, store.Upsert(ctx, collection, p))

	got, err := store.Retrieve(ctx, collection, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, p.Document, got[0].Document)
	assert.Equal(t, p.Metadata["title"], got[0].Metadata["title"])
	assert.Equal(t, []interface{}{"go", "sql"}, got[0].Metadata["tags"])
	assert.InDelta(t, 1.5, got[0].Metadata["weight"], 1e-9)
	require.Len(t, got[0].Vector, dims)
	for i := range p.Vector {
		assert.InDelta(t, p.Vector[i], got[0].Vector[i], 1e-5)
	}
}

func testUpsertReplaces(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, collection, point("a", "first", 1, 0, 0, 0)))
	require.NoError(t, store.Upsert(ctx, collection, point("a", "second", 0, 1, 0, 0)))

	n, err := store.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Retrieve(ctx, collection, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Document)
	assert.Equal(t, "second", got[0].Metadata["title"])
}

func testRetrieveOrder(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, collection, point("a", "alpha", 1, 0, 0, 0)))
	require.NoError(t, store.Upsert(ctx, collection, point("b", "beta", 0, 1, 0, 0)))
	require.NoError(t, store.Upsert(ctx, collection, point("c", "gamma", 0, 0, 1, 0)))

	got, err := store.Retrieve(ctx, collection, []string{"c", "missing", "a", "c"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	got, err = store.Retrieve(ctx, collection, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSearchOrdering(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, collection, point("far", "far", 0, 0, 0, 1)))
	require.NoError(t, store.Upsert(ctx, collection, point("near", "near", 1, 0.1, 0, 0)))
	require.NoError(t, store.Upsert(ctx, collection, point("exact", "exact", 1, 0, 0, 0)))

	hits, err := store.Search(ctx, collection, []float64{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "exact", hits[0].ID)
	assert.Equal(t, "near", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "exact", hits[0].Metadata["title"])
	assert.Equal(t, "exact", hits[0].Document)

	all, err := store.Search(ctx, collection, []float64{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
	}
}

func testSearchEmpty(t *testing.T, store storage.VectorStore, collection string) {
	hits, err := store.Search(context.Background(), collection, []float64{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func testSetMetadata(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, collection, point("a", "alpha", 1, 0, 0, 0)))
	require.NoError(t, store.SetMetadata(ctx, collection, "a", map[string]interface{}{"superseded_by": "b"}))

	got, err := store.Retrieve(ctx, collection, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alpha", got[0].Metadata["title"])
	assert.Equal(t, "b", got[0].Metadata["superseded_by"])
	assert.Equal(t, "alpha", got[0].Document)

	hits, err := store.Search(ctx, collection, []float64{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4, "vector must survive a metadata patch")

	err = store.SetMetadata(ctx, collection, "missing", map[string]interface{}{"x": "y"})
	assert.ErrorIs(t, err, storage.ErrPointNotFound)
}

func testDeleteIdempotent(t *testing.T, store storage.VectorStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, collection, point("a", "alpha", 1, 0, 0, 0)))
	require.NoError(t, store.Upsert(ctx, collection, point("b", "beta", 0, 1, 0, 0)))

	require.NoError(t, store.Delete(ctx, collection, "a"))
	require.NoError(t, store.Delete(ctx, collection, "a"))
	require.NoError(t, store.Delete(ctx, collection, "never-existed"))

	n, err := store.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Retrieve(ctx, collection, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
