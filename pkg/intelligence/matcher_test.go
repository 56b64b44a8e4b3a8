package intelligence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/intelligence"
)

func TestMatcherNoNeighbours(t *testing.T) {
	m := intelligence.NewMatcher(intelligence.DefaultPolicy())

	match := m.Match("Retry with jitter", nil)
	assert.Nil(t, match.Best)
	assert.Empty(t, match.Similar)
	assert.Equal(t, intelligence.Signals{}, match.Signals)
	assert.Equal(t, intelligence.ActionCreate, m.Policy().Decide(match.Signals))
}

func TestMatcherTitleMatch(t *testing.T) {
	m := intelligence.NewMatcher(intelligence.DefaultPolicy())

	match := m.Match("  retry WITH   jitter ", []intelligence.Neighbour{
		{ID: "2", Title: "Something else", Score: 0.4},
		{ID: "1", Title: "Retry with jitter", Score: 0.91},
	})

	require.NotNil(t, match.Best)
	assert.Equal(t, "1", match.Best.ID)
	assert.InDelta(t, 0.91, match.Signals.Similarity, 1e-9)
	assert.True(t, match.Signals.TitleMatches)
	assert.False(t, match.Signals.MultipleSimilarExist)
	assert.Equal(t, intelligence.ActionMerge, m.Policy().Decide(match.Signals))
}

func TestMatcherEmptyTitlesNeverMatch(t *testing.T) {
	m := intelligence.NewMatcher(intelligence.DefaultPolicy())

	match := m.Match("", []intelligence.Neighbour{{ID: "1", Title: "", Score: 0.99}})
	assert.False(t, match.Signals.TitleMatches)
	assert.Equal(t, intelligence.ActionUpdate, m.Policy().Decide(match.Signals))
}

func TestMatcherCluster(t *testing.T) {
	m := intelligence.NewMatcher(intelligence.DefaultPolicy())

	match := m.Match("New", []intelligence.Neighbour{
		{ID: "a", Title: "A", Score: 0.7},
		{ID: "b", Title: "B", Score: 0.8},
		{ID: "c", Title: "C", Score: 0.65},
	})

	assert.True(t, match.Signals.MultipleSimilarExist)
	require.Len(t, match.Similar, 2)
	assert.Equal(t, "b", match.Similar[0].ID)
	assert.Equal(t, "a", match.Similar[1].ID)
	assert.Equal(t, intelligence.ActionGeneralize, m.Policy().Decide(match.Signals))
}

func TestMatcherClusterSize(t *testing.T) {
	m := intelligence.NewMatcher(intelligence.Policy{ClusterSize: 3})

	match := m.Match("New", []intelligence.Neighbour{
		{ID: "a", Score: 0.7},
		{ID: "b", Score: 0.8},
	})
	assert.False(t, match.Signals.MultipleSimilarExist)
	assert.Equal(t, intelligence.ActionUpdate, m.Policy().Decide(match.Signals))
}
