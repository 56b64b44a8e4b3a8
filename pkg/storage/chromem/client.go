// Package chromem provides an embedded vector store built on chromem-go.
//
// It is the default backend: collections live in process memory and are
// optionally persisted to a directory. Memory metadata is kept as a JSON
// string in the chromem document metadata so that arbitrary values survive
// a round trip.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromemdb "github.com/philippgille/chromem-go"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

const (
	payloadKey    = "payload"
	dimensionsKey = "dimensions"
)

// Client implements storage.VectorStore on top of a chromem-go database.
type Client struct {
	db *chromemdb.DB

	// mu serialises collection creation; chromem guards its own documents.
	mu sync.Mutex
}

// Config contains configuration for the chromem store.
type Config struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string

	// Compress enables gzip compression of persisted files.
	Compress bool
}

// NewClient opens an in-memory or persistent chromem database.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Path == "" {
		return &Client{db: chromemdb.NewDB()}, nil
	}

	db, err := chromemdb.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("NewChromemClient: %w", err)
	}
	return &Client{db: db}, nil
}

// noEmbedding keeps chromem from calling out to an embedding service;
// every document and query arrives with its vector already computed.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem: embeddings must be supplied by the caller")
}

func (c *Client) collection(name string) (*chromemdb.Collection, error) {
	col := c.db.GetCollection(name, noEmbedding)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return col, nil
}

// CreateCollection creates the collection if it does not exist yet.
func (c *Client) CreateCollection(ctx context.Context, name string, dimensions int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db.GetCollection(name, noEmbedding) != nil {
		return nil
	}

	meta := map[string]string{dimensionsKey: strconv.Itoa(dimensions)}
	if _, err := c.db.CreateCollection(name, meta, noEmbedding); err != nil {
		return fmt.Errorf("CreateCollection: %w", err)
	}
	return nil
}

// CollectionExists reports whether the collection exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	return c.db.GetCollection(name, noEmbedding) != nil, nil
}

// ListCollections returns collection names in lexical order.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	cols := c.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of documents in the collection.
func (c *Client) Count(ctx context.Context, name string) (int, error) {
	col, err := c.collection(name)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Upsert adds the point, replacing any document with the same id.
func (c *Client) Upsert(ctx context.Context, collection string, point *storage.Point) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}

	doc, err := toDocument(point)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Retrieve returns the points found for ids, in the order of ids.
func (c *Client) Retrieve(ctx context.Context, collection string, ids []string) ([]*storage.Point, error) {
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}

	points := make([]*storage.Point, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		doc, ok := getDocument(ctx, col, id)
		if !ok {
			continue
		}
		point, err := fromDocument(doc.ID, doc.Content, doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		point.Vector = float32To64(doc.Embedding)
		points = append(points, point)
	}
	return points, nil
}

// Search runs a cosine nearest-neighbour query.
func (c *Client) Search(ctx context.Context, collection string, vector []float64, limit int) ([]*storage.ScoredPoint, error) {
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	n := col.Count()
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return []*storage.ScoredPoint{}, nil
	}

	results, err := col.QueryEmbedding(ctx, float64To32(vector), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	hits := make([]*storage.ScoredPoint, 0, len(results))
	for _, r := range results {
		point, err := fromDocument(r.ID, r.Content, r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		hits = append(hits, &storage.ScoredPoint{Point: point, Score: float64(r.Similarity)})
	}
	return storage.SortByScore(hits, limit), nil
}

// SetMetadata merges patch into the stored metadata, keeping the vector.
func (c *Client) SetMetadata(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}

	doc, ok := getDocument(ctx, col, id)
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrPointNotFound, id)
	}

	point, err := fromDocument(doc.ID, doc.Content, doc.Metadata)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	point.Metadata = storage.MergeMetadata(point.Metadata, patch)
	point.Vector = float32To64(doc.Embedding)

	updated, err := toDocument(point)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	if err := col.AddDocument(ctx, updated); err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	return nil
}

// Delete removes the document if present.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}

	if _, ok := getDocument(ctx, col, id); !ok {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// Close is a no-op; persistent databases write through on every change.
func (c *Client) Close() error {
	return nil
}

func getDocument(ctx context.Context, col *chromemdb.Collection, id string) (chromemdb.Document, bool) {
	if id == "" {
		return chromemdb.Document{}, false
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return chromemdb.Document{}, false
	}
	return doc, true
}

func toDocument(point *storage.Point) (chromemdb.Document, error) {
	payload, err := json.Marshal(point.Metadata)
	if err != nil {
		return chromemdb.Document{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return chromemdb.Document{
		ID:        point.ID,
		Content:   point.Document,
		Embedding: float64To32(point.Vector),
		Metadata:  map[string]string{payloadKey: string(payload)},
	}, nil
}

func fromDocument(id, content string, meta map[string]string) (*storage.Point, error) {
	point := &storage.Point{
		ID:       id,
		Document: content,
		Metadata: map[string]interface{}{},
	}
	if raw, ok := meta[payloadKey]; ok && raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &point.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	return point, nil
}

func float64To32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func float32To64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
