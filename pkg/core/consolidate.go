package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/oceanbase/powermem-mcp/pkg/document"
	"github.com/oceanbase/powermem-mcp/pkg/intelligence"
	"github.com/oceanbase/powermem-mcp/pkg/observe"
)

// Consolidate stores a candidate memory the way the consolidation policy
// decides, instead of always creating a new one.
//
// The candidate is compared against its nearest neighbours in the target
// collection, then:
//   - CREATE stores it as a new memory
//   - UPDATE replaces the closest memory's document, merging metadata
//   - MERGE does the same, unions tags, keeps the original created_at and
//     counts the merge in merge_count
//   - GENERALIZE writes a new semantic memory distilled from the candidate
//     and the similar memories, and marks each of them with consolidated_into
//
// Example:
//
//	res, _ := client.Consolidate(ctx, doc, core.Metadata{}, "global")
//	fmt.Println(res.Action, res.DocID)
func (c *Client) Consolidate(ctx context.Context, doc string, metadata Metadata, level string) (_ *ConsolidationResult, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.Consolidate")
	defer func() { observe.EndSpan(span, err) }()

	if strings.TrimSpace(doc) == "" {
		return nil, NewMemoryError("Consolidate", fmt.Errorf("%w: document is empty", ErrInvalidInput))
	}

	role := metadata.RoleOrDefault()
	name, err := c.resolve(level, string(role))
	if err != nil {
		return nil, NewMemoryError("Consolidate", err)
	}
	if err := c.ensureCollection(ctx, name); err != nil {
		return nil, NewMemoryError("Consolidate", classify(err))
	}

	vector, err := c.embed(ctx, doc)
	if err != nil {
		return nil, NewMemoryError("Consolidate", classify(err))
	}

	policy := c.matcher.Policy()
	hits, err := c.store.Search(ctx, name, vector, policy.Candidates)
	if err != nil {
		return nil, NewMemoryError("Consolidate", classify(err))
	}

	neighbours := make([]intelligence.Neighbour, len(hits))
	for i, hit := range hits {
		neighbours[i] = intelligence.Neighbour{
			ID:    hit.ID,
			Title: document.ExtractPreview(hit.Document).Title,
			Score: hit.Score,
		}
	}

	title := document.ExtractPreview(doc).Title
	if title == "" {
		title = metadata.Title
	}
	match := c.matcher.Match(title, neighbours)
	action := policy.Decide(match.Signals)

	result := &ConsolidationResult{
		Action:     action,
		Signals:    match.Signals,
		Collection: name,
	}

	md := metadata.Clone()
	md.Role = role

	switch action {
	case intelligence.ActionMerge, intelligence.ActionUpdate:
		result.SourceIDs = []string{match.Best.ID}
		err = c.consolidateInto(ctx, name, match.Best.ID, doc, vector, md, action == intelligence.ActionMerge)
		result.DocID = match.Best.ID
	case intelligence.ActionGeneralize:
		for _, n := range match.Similar {
			result.SourceIDs = append(result.SourceIDs, n.ID)
		}
		result.DocID, err = c.generalize(ctx, name, doc, md, result.SourceIDs)
	default:
		var memory *Memory
		if memory, err = c.insert(ctx, name, doc, vector, md); err == nil {
			result.DocID = memory.ID
		}
	}
	if err != nil {
		return nil, NewMemoryError("Consolidate", err)
	}

	result.Message = fmt.Sprintf("Consolidated as %s in '%s'", action, name)
	c.obs.Log().Info().
		Str("collection", name).
		Str("action", action.String()).
		Str("doc_id", result.DocID).
		Msg("memory consolidated")
	return result, nil
}

// consolidateInto overwrites the memory id with the candidate document.
func (c *Client) consolidateInto(ctx context.Context, name, id, doc string, vector []float64, md Metadata, merge bool) error {
	existing, err := c.lookup(ctx, name, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: Memory '%s' not found", ErrNotFound, id)
	}

	merged := existing.Metadata.Merge(md)
	if merge {
		merged.Tags = unionTags(existing.Metadata.Tags, md.Tags)
		merged.CreatedAt = existing.Metadata.CreatedAt
		if merged.Extra == nil {
			merged.Extra = map[string]interface{}{}
		}
		merged.Extra[KeyMergeCount] = toInt(existing.Metadata.Extra[KeyMergeCount]) + 1
	}

	return c.replace(ctx, existing, doc, vector, merged)
}

// generalize stores a memory distilled from the candidate and sourceIDs and
// links the sources to it.
func (c *Client) generalize(ctx context.Context, name, doc string, md Metadata, sourceIDs []string) (string, error) {
	points, err := c.store.Retrieve(ctx, name, sourceIDs)
	if err != nil {
		return "", classify(err)
	}

	sources := make([]intelligence.Source, len(points))
	for i, p := range points {
		sources[i] = intelligence.Source{ID: p.ID, Document: p.Document}
	}

	fields, err := c.synthesizer.Generalize(ctx, doc, sources)
	if err != nil {
		return "", classify(err)
	}
	generalized := document.Format(fields)

	vector, err := c.embed(ctx, generalized)
	if err != nil {
		return "", classify(err)
	}

	gmd := Metadata{
		MemoryType: MemoryTypeSemantic,
		Role:       md.Role,
		Tags:       fields.Tags,
		Title:      fields.Title,
		Extra: map[string]interface{}{
			KeyGeneralizedFrom: append([]string(nil), sourceIDs...),
		},
	}
	memory, err := c.insert(ctx, name, generalized, vector, gmd)
	if err != nil {
		return "", err
	}

	for _, id := range sourceIDs {
		patch := map[string]interface{}{KeyConsolidatedInto: memory.ID}
		if err := c.store.SetMetadata(ctx, name, id, patch); err != nil {
			c.obs.Log().Warn().Str("collection", name).Str("doc_id", id).Err(err).Msg("could not link source memory")
		}
	}
	return memory.ID, nil
}

// unionTags keeps the order of a, then appends unseen tags of b.
func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, tags := range [][]string{a, b} {
		for _, t := range tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
