package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oceanbase/powermem-mcp/pkg/observe"
	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

// Search is the first retrieval stage: it returns previews of the memories
// closest to query, never their documents.
//
// A collection that does not exist yields an empty result with a message
// and a suggestion rather than an error. Hits keep the store's order of
// descending similarity.
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: Free-text query
//   - level: "global", a "proj-" collection name, or a raw project name
//   - opts: WithRole (default universal), WithLimit, WithMinScore
//
// Example:
//
//	res, err := client.Search(ctx, "postgres migrations", "proj-shop",
//	    core.WithLimit(5),
//	)
//	for _, p := range res.Results {
//	    fmt.Println(p.DocID, p.Title, p.Similarity)
//	}
func (c *Client) Search(ctx context.Context, query, level string, opts ...SearchOption) (_ *SearchResult, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.Search")
	defer func() { observe.EndSpan(span, err) }()

	if strings.TrimSpace(query) == "" {
		return nil, NewMemoryError("Search", fmt.Errorf("%w: query is empty", ErrInvalidInput))
	}

	options := applySearchOptions(opts, c.config.Retrieval.DefaultLimit)
	name, err := c.resolve(level, options.Role)
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	result := &SearchResult{
		Results:    []Preview{},
		Collection: name,
	}

	ok, err := c.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, NewMemoryError("Search", classify(err))
	}
	if !ok {
		result.Message = fmt.Sprintf("Collection '%s' does not exist", name)
		result.Suggestion = "No memories stored yet for this level/role"
		return result, nil
	}

	vector, err := c.embed(ctx, query)
	if err != nil {
		c.obs.Log().Error().Str("collection", name).Err(err).Msg("embedding failed")
		return nil, NewMemoryError("Search", classify(err))
	}

	hits, err := c.store.Search(ctx, name, vector, options.Limit)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		result.Message = fmt.Sprintf("Collection '%s' does not exist", name)
		result.Suggestion = "No memories stored yet for this level/role"
		return result, nil
	}
	if err != nil {
		return nil, NewMemoryError("Search", classify(err))
	}

	for _, hit := range hits {
		if options.MinScore != nil && hit.Score < *options.MinScore {
			continue
		}
		result.Results = append(result.Results, toPreview(hit))
	}
	result.Total = len(result.Results)

	if result.Total == 0 {
		result.Message = "No memories found"
	} else {
		result.Message = fmt.Sprintf("Found %d memory previews. Use get_memory(doc_id) to retrieve full content.", result.Total)
	}

	c.obs.Log().Debug().Str("collection", name).Int("hits", result.Total).Msg("search done")
	return result, nil
}

// Get is the second retrieval stage: it returns the full memory for id.
//
// Returns an error wrapping ErrNotFound when the id or its collection does
// not exist.
func (c *Client) Get(ctx context.Context, id, level string, opts ...GetOption) (_ *Memory, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.Get")
	defer func() { observe.EndSpan(span, err) }()

	options := applyGetOptions(opts)
	name, err := c.resolve(level, options.Role)
	if err != nil {
		return nil, NewMemoryError("Get", err)
	}

	memory, err := c.lookup(ctx, name, id)
	if err != nil {
		return nil, NewMemoryError("Get", err)
	}
	if memory == nil {
		return nil, NewMemoryError("Get", fmt.Errorf("%w: Memory with ID '%s' not found", ErrNotFound, id))
	}

	c.obs.Log().Debug().Str("collection", name).Str("doc_id", id).Msg("memory read")
	return memory, nil
}

// BatchGet returns the full memories for ids in one store round trip.
//
// Ids that do not exist are skipped; compare Requested with Retrieved.
// A missing collection retrieves nothing.
func (c *Client) BatchGet(ctx context.Context, ids []string, level string, opts ...GetOption) (_ *BatchResult, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.BatchGet")
	defer func() { observe.EndSpan(span, err) }()

	options := applyGetOptions(opts)
	name, err := c.resolve(level, options.Role)
	if err != nil {
		return nil, NewMemoryError("BatchGet", err)
	}

	result := &BatchResult{
		Memories:  []*Memory{},
		Requested: len(ids),
	}
	if len(ids) == 0 {
		return result, nil
	}

	points, err := c.store.Retrieve(ctx, name, ids)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, NewMemoryError("BatchGet", classify(err))
	}

	for _, p := range points {
		result.Memories = append(result.Memories, fromPoint(p, name))
	}
	result.Retrieved = len(result.Memories)

	c.obs.Log().Debug().Str("collection", name).Int("requested", result.Requested).Int("retrieved", result.Retrieved).Msg("batch read")
	return result, nil
}
