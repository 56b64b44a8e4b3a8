package core

import (
	"github.com/oceanbase/powermem-mcp/pkg/embedder"
	"github.com/oceanbase/powermem-mcp/pkg/llm"
	"github.com/oceanbase/powermem-mcp/pkg/observe"
	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

// ClientOption injects a collaborator into NewClient instead of building it
// from the configuration.
type ClientOption func(*clientOptions)

type clientOptions struct {
	store    storage.VectorStore
	embedder embedder.Provider
	llm      llm.Provider
	observer *observe.Observer
	skipInit bool
}

// WithVectorStore uses store instead of the configured vector store.
//
// Example:
//
//	store, _ := chromem.NewClient(nil)
//	client, _ := core.NewClient(cfg, core.WithVectorStore(store))
func WithVectorStore(store storage.VectorStore) ClientOption {
	return func(opts *clientOptions) {
		opts.store = store
	}
}

// WithEmbedder uses provider instead of the configured embedder. The client
// still wraps it in its own embedding cache.
func WithEmbedder(provider embedder.Provider) ClientOption {
	return func(opts *clientOptions) {
		opts.embedder = provider
	}
}

// WithLLM uses provider to write generalized memories.
func WithLLM(provider llm.Provider) ClientOption {
	return func(opts *clientOptions) {
		opts.llm = provider
	}
}

// WithObserver sets the logger and tracer.
func WithObserver(o *observe.Observer) ClientOption {
	return func(opts *clientOptions) {
		opts.observer = o
	}
}

// WithoutCollectionInit skips the eager creation of role collections.
func WithoutCollectionInit() ClientOption {
	return func(opts *clientOptions) {
		opts.skipInit = true
	}
}

// SearchOption is a function type for configuring Search operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for Search operations.
type SearchOptions struct {
	// Role selects the role collection when the level is "global".
	// Default: universal
	Role string

	// Limit sets the maximum number of previews to return.
	// Default: Config.Retrieval.DefaultLimit
	Limit int

	// MinScore drops hits scoring below it when set.
	// Default: nil (every hit is returned, negative scores included)
	MinScore *float64
}

// WithRole sets the role for Search operations.
//
// Example:
//
//	res, _ := client.Search(ctx, "retry policy", "global", core.WithRole("backend"))
func WithRole(role string) SearchOption {
	return func(opts *SearchOptions) {
		opts.Role = role
	}
}

// WithLimit sets the maximum number of results for Search operations.
//
// Example:
//
//	res, _ := client.Search(ctx, "query", "global", core.WithLimit(20))
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithMinScore sets the minimum similarity score for Search results.
//
// Only results with similarity scores >= minScore are returned.
// Typical range: 0.0-1.0, where 1.0 is identical.
func WithMinScore(score float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.MinScore = &score
	}
}

// GetOption is a function type for configuring Get, BatchGet and SetMetadata.
type GetOption func(*GetOptions)

// GetOptions contains configuration options for reads by id.
type GetOptions struct {
	// Role selects the role collection when the level is "global".
	Role string
}

// WithRoleForGet sets the role for reads by id.
func WithRoleForGet(role string) GetOption {
	return func(opts *GetOptions) {
		opts.Role = role
	}
}

// DeleteOption is a function type for configuring Delete operations.
type DeleteOption func(*DeleteOptions)

// DeleteOptions contains configuration options for Delete operations.
type DeleteOptions struct {
	// Role selects the role collection when the level is "global".
	Role string
}

// WithRoleForDelete sets the role for Delete operations.
func WithRoleForDelete(role string) DeleteOption {
	return func(opts *DeleteOptions) {
		opts.Role = role
	}
}

// ListOption is a function type for configuring ListCollections.
type ListOption func(*ListOptions)

// ListOptions contains configuration options for ListCollections.
type ListOptions struct {
	// Pattern is a doublestar glob matched against collection names.
	// Empty lists everything.
	Pattern string
}

// WithPattern restricts ListCollections to names matching a glob such as
// "proj-*" or "*-patterns".
func WithPattern(pattern string) ListOption {
	return func(opts *ListOptions) {
		opts.Pattern = pattern
	}
}

func applySearchOptions(opts []SearchOption, defaultLimit int) *SearchOptions {
	options := &SearchOptions{
		Limit: defaultLimit,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Limit <= 0 {
		options.Limit = defaultLimit
	}
	return options
}

func applyGetOptions(opts []GetOption) *GetOptions {
	options := &GetOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyDeleteOptions(opts []DeleteOption) *DeleteOptions {
	options := &DeleteOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyListOptions(opts []ListOption) *ListOptions {
	options := &ListOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
