package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bwmarrin/snowflake"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	"github.com/oceanbase/powermem-mcp/pkg/embedder"
	"github.com/oceanbase/powermem-mcp/pkg/intelligence"
	"github.com/oceanbase/powermem-mcp/pkg/llm"
	"github.com/oceanbase/powermem-mcp/pkg/observe"
	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

// Client is the powermem-mcp memory store.
//
// It routes every call to a collection, embeds documents through a bounded
// cache, and keeps search results to previews so that full documents are
// only returned by Get and BatchGet.
//
// The client holds no lock across I/O and can be used concurrently from
// multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	res, _ := client.Store(ctx, doc, core.Metadata{Role: collection.RoleBackend}, "global")
//	previews, _ := client.Search(ctx, "retry policy", "global", core.WithRole("backend"))
//	memory, _ := client.Get(ctx, previews.Results[0].DocID, "global", core.WithRoleForGet("backend"))
type Client struct {
	config *Config

	store    storage.VectorStore
	embedder *embedder.CachedProvider
	llm      llm.Provider

	router      collection.Router
	matcher     *intelligence.Matcher
	synthesizer *intelligence.Synthesizer

	// snowflakeNode generates unique IDs for memories.
	snowflakeNode *snowflake.Node

	obs *observe.Observer

	// now is replaced in tests.
	now func() time.Time
}

// NewClient creates a new client.
//
// Collaborators not injected through opts are built from cfg. Unless
// WithoutCollectionInit is given, the global role collections are created
// before NewClient returns.
//
// Parameters:
//   - cfg: Configuration; nil selects the mock embedder and in-memory chromem store
//   - opts: Optional injected collaborators
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = &Config{Embedder: EmbedderConfig{Provider: "mock"}}
	}
	cfg.withDefaults()

	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Only validate what is built here; injected collaborators need no config.
	if options.store == nil && options.embedder == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else if err := cfg.Consolidation.Validate(); err != nil {
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	obs := options.observer
	if obs == nil {
		obs = observe.Nop()
	}

	store := options.store
	if store == nil {
		var err error
		if store, err = initStorage(cfg.VectorStore); err != nil {
			return nil, NewMemoryError("NewClient", classifyInit(err))
		}
	}

	provider := options.embedder
	if provider == nil {
		var err error
		if provider, err = initEmbedder(cfg.Embedder); err != nil {
			_ = store.Close()
			return nil, NewMemoryError("NewClient", classifyInit(err))
		}
	}

	cached, err := embedder.NewCachedProvider(provider, cfg.Cache.Size)
	if err != nil {
		_ = store.Close()
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	llmProvider := options.llm
	if llmProvider == nil {
		if llmProvider, err = initLLM(cfg.LLM); err != nil {
			_ = cached.Close()
			_ = store.Close()
			return nil, NewMemoryError("NewClient", classifyInit(err))
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		_ = cached.Close()
		_ = store.Close()
		return nil, NewMemoryError("NewClient", err)
	}

	c := &Client{
		config:        cfg,
		store:         store,
		embedder:      cached,
		llm:           llmProvider,
		router:        collection.Router{ProjectContext: cfg.ProjectName},
		matcher:       intelligence.NewMatcher(cfg.Consolidation),
		synthesizer:   intelligence.NewSynthesizer(llmProvider),
		snowflakeNode: node,
		obs:           obs,
		now:           time.Now,
	}

	if !options.skipInit {
		if err := c.InitCollections(context.Background()); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	return c, nil
}

func classifyInit(err error) error {
	if errors.Is(err, ErrInvalidConfig) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
}

// Config returns the effective configuration.
func (c *Client) Config() *Config {
	return c.config
}

// CacheStats reports embedding cache hits and misses.
func (c *Client) CacheStats() embedder.CacheStats {
	return c.embedder.Stats()
}

// InitCollections creates every global role collection that does not exist yet.
func (c *Client) InitCollections(ctx context.Context) (err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.InitCollections")
	defer func() { observe.EndSpan(span, err) }()

	for _, name := range collection.RoleCollections() {
		if err := c.ensureCollection(ctx, name); err != nil {
			return NewMemoryError("InitCollections", classify(err))
		}
	}
	c.obs.Log().Debug().Int("collections", len(collection.RoleCollections())).Msg("role collections ready")
	return nil
}

// ensureCollection creates name when it is missing.
func (c *Client) ensureCollection(ctx context.Context, name string) error {
	ok, err := c.store.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := c.store.CreateCollection(ctx, name, c.embedder.Dimensions()); err != nil {
		return err
	}
	c.obs.Log().Info().Str("collection", name).Int("dimensions", c.embedder.Dimensions()).Msg("collection created")
	return nil
}

// resolve maps a level and role to a collection name.
func (c *Client) resolve(level, role string) (string, error) {
	name, err := c.router.Resolve(level, role)
	if err != nil {
		return "", classify(err)
	}
	return name, nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

// Store embeds document and saves it as a new memory.
//
// The collection is picked from level and the role in metadata (universal
// when unset) and created if missing. Metadata is stored as given: an unset
// role stays unset. A new id is assigned; created_at is kept when given and
// last_synced is stamped.
//
// Parameters:
//   - ctx: Context for cancellation
//   - doc: Formatted memory document
//   - metadata: Payload stored with the document
//   - level: "global", a "proj-" collection name, or a raw project name
//
// Returns the new id, the collection and its point count.
func (c *Client) Store(ctx context.Context, doc string, metadata Metadata, level string) (_ *StoreResult, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.Store")
	defer func() { observe.EndSpan(span, err) }()

	if strings.TrimSpace(doc) == "" {
		return nil, NewMemoryError("Store", fmt.Errorf("%w: document is empty", ErrInvalidInput))
	}

	role := metadata.RoleOrDefault()
	name, err := c.resolve(level, string(role))
	if err != nil {
		return nil, NewMemoryError("Store", err)
	}

	if err := c.ensureCollection(ctx, name); err != nil {
		return nil, NewMemoryError("Store", classify(err))
	}

	vector, err := c.embed(ctx, doc)
	if err != nil {
		c.obs.Log().Error().Str("collection", name).Err(err).Msg("embedding failed")
		return nil, NewMemoryError("Store", classify(err))
	}

	memory, err := c.insert(ctx, name, doc, vector, metadata.Clone())
	if err != nil {
		return nil, NewMemoryError("Store", err)
	}

	count, err := c.store.Count(ctx, name)
	if err != nil {
		return nil, NewMemoryError("Store", classify(err))
	}

	return &StoreResult{
		DocID:      memory.ID,
		Status:     StatusSuccess,
		Collection: name,
		Count:      count,
		Message:    fmt.Sprintf("Memory stored successfully in '%s'", name),
	}, nil
}

// insert writes a new memory with an already computed vector.
func (c *Client) insert(ctx context.Context, name, doc string, vector []float64, md Metadata) (*Memory, error) {
	now := c.timestamp()
	if md.CreatedAt == "" {
		md.CreatedAt = now
	}
	md.LastSynced = now

	memory := &Memory{
		ID:         c.snowflakeNode.Generate().String(),
		Document:   doc,
		Vector:     vector,
		Metadata:   md,
		Collection: name,
	}
	if err := c.store.Upsert(ctx, name, toPoint(memory)); err != nil {
		c.obs.Log().Error().Str("collection", name).Err(err).Msg("upsert failed")
		return nil, classify(err)
	}

	c.obs.Log().Info().Str("collection", name).Str("doc_id", memory.ID).Msg("memory stored")
	return memory, nil
}

// Update replaces the document of an existing memory.
//
// The memory is read first; a missing id returns ErrNotFound without any
// write or embedding call. The new metadata is merged over the stored one
// and last_updated and last_synced are stamped. The id never changes.
func (c *Client) Update(ctx context.Context, id, doc string, metadata Metadata, level string) (_ *UpdateResult, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.Update")
	defer func() { observe.EndSpan(span, err) }()

	if strings.TrimSpace(doc) == "" {
		return nil, NewMemoryError("Update", fmt.Errorf("%w: document is empty", ErrInvalidInput))
	}

	name, err := c.resolve(level, string(metadata.RoleOrDefault()))
	if err != nil {
		return nil, NewMemoryError("Update", err)
	}

	existing, err := c.lookup(ctx, name, id)
	if err != nil {
		return nil, NewMemoryError("Update", err)
	}
	if existing == nil {
		return nil, NewMemoryError("Update", fmt.Errorf("%w: Memory '%s' not found", ErrNotFound, id))
	}

	vector, err := c.embed(ctx, doc)
	if err != nil {
		return nil, NewMemoryError("Update", classify(err))
	}

	if err := c.replace(ctx, existing, doc, vector, existing.Metadata.Merge(metadata)); err != nil {
		return nil, NewMemoryError("Update", err)
	}

	return &UpdateResult{
		DocID:      id,
		Status:     StatusSuccess,
		Collection: name,
		Message:    "Memory updated successfully",
	}, nil
}

// replace overwrites an existing memory in place.
func (c *Client) replace(ctx context.Context, existing *Memory, doc string, vector []float64, md Metadata) error {
	now := c.timestamp()
	md.LastUpdated = now
	md.LastSynced = now

	updated := &Memory{
		ID:       existing.ID,
		Document: doc,
		Vector:   vector,
		Metadata: md,
	}
	if err := c.store.Upsert(ctx, existing.Collection, toPoint(updated)); err != nil {
		c.obs.Log().Error().Str("collection", existing.Collection).Str("doc_id", existing.ID).Err(err).Msg("upsert failed")
		return classify(err)
	}

	c.obs.Log().Info().Str("collection", existing.Collection).Str("doc_id", existing.ID).Msg("memory updated")
	return nil
}

// lookup reads one memory. A missing memory or collection yields nil, nil.
func (c *Client) lookup(ctx context.Context, name, id string) (*Memory, error) {
	points, err := c.store.Retrieve(ctx, name, []string{id})
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return fromPoint(points[0], name), nil
}

// SetMetadata merges patch into a stored payload without re-embedding the
// document. Only non-empty fields of patch are written.
func (c *Client) SetMetadata(ctx context.Context, id, level string, patch Metadata, opts ...GetOption) (err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.SetMetadata")
	defer func() { observe.EndSpan(span, err) }()

	options := applyGetOptions(opts)
	name, err := c.resolve(level, options.Role)
	if err != nil {
		return NewMemoryError("SetMetadata", err)
	}

	if err := c.store.SetMetadata(ctx, name, id, patch.toMap()); err != nil {
		return NewMemoryError("SetMetadata", classify(err))
	}
	return nil
}

// Delete removes a memory. Deleting a missing id, or from a collection that
// does not exist, succeeds.
func (c *Client) Delete(ctx context.Context, id, level string, opts ...DeleteOption) (_ *DeleteResult, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.Delete")
	defer func() { observe.EndSpan(span, err) }()

	options := applyDeleteOptions(opts)
	name, err := c.resolve(level, options.Role)
	if err != nil {
		return nil, NewMemoryError("Delete", err)
	}

	result := &DeleteResult{
		DocID:   id,
		Status:  StatusSuccess,
		Message: "Memory deleted successfully",
	}

	ok, err := c.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, NewMemoryError("Delete", classify(err))
	}
	if !ok {
		return result, nil
	}

	if err := c.store.Delete(ctx, name, id); err != nil {
		return nil, NewMemoryError("Delete", classify(err))
	}
	if result.RemainingMemories, err = c.store.Count(ctx, name); err != nil {
		return nil, NewMemoryError("Delete", classify(err))
	}

	c.obs.Log().Info().Str("collection", name).Str("doc_id", id).Msg("memory deleted")
	return result, nil
}

// ListCollections describes every collection, sorted by name.
//
// Example:
//
//	list, _ := client.ListCollections(ctx, core.WithPattern("proj-*"))
func (c *Client) ListCollections(ctx context.Context, opts ...ListOption) (_ *CollectionList, err error) {
	ctx, span := c.obs.StartSpan(ctx, "core.ListCollections")
	defer func() { observe.EndSpan(span, err) }()

	options := applyListOptions(opts)
	if options.Pattern != "" && !doublestar.ValidatePattern(options.Pattern) {
		return nil, NewMemoryError("ListCollections", fmt.Errorf("%w: bad pattern %q", ErrInvalidInput, options.Pattern))
	}

	names, err := c.store.ListCollections(ctx)
	if err != nil {
		return nil, NewMemoryError("ListCollections", classify(err))
	}
	sort.Strings(names)

	list := &CollectionList{Collections: []CollectionInfo{}}
	for _, name := range names {
		if options.Pattern != "" {
			if ok, _ := doublestar.Match(options.Pattern, name); !ok {
				continue
			}
		}

		count, err := c.store.Count(ctx, name)
		if err != nil {
			return nil, NewMemoryError("ListCollections", classify(err))
		}
		level, role := collection.Classify(name)
		list.Collections = append(list.Collections, CollectionInfo{
			Name:  name,
			Count: count,
			Level: level,
			Role:  role,
		})
	}
	list.TotalCollections = len(list.Collections)
	return list, nil
}

// Close closes the vector store, the embedder and the LLM. The first error
// is returned.
func (c *Client) Close() error {
	var errs []error

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
