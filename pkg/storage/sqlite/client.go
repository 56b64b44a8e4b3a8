// Package sqlite provides SQLite implementation for vector storage.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small-scale deployments. Each collection is its own table; vectors are
// stored as JSON strings in TEXT fields and similarity search uses in-memory
// cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

// registryTable records every collection and its vector size.
const registryTable = "powermem_collections"

// Client implements VectorStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB
}

// Config contains configuration for creating a SQLite VectorStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewClient creates a new SQLite VectorStore client.
//
// Parameters:
//   - cfg: Configuration containing the database path
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or registry creation fails
func NewClient(cfg *Config) (*Client, error) {
	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{db: db}
	if err := client.initRegistry(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) initRegistry(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, registryTable)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initRegistry: %w", err)
	}
	return nil
}

// CreateCollection creates the collection table and registers it.
func (c *Client) CreateCollection(ctx context.Context, name string, dimensions int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreateCollection: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, quoteIdent(name))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("CreateCollection: %w", err)
	}

	register := fmt.Sprintf(`INSERT OR IGNORE INTO %s (name, dimensions) VALUES (?, ?)`, registryTable)
	if _, err := tx.ExecContext(ctx, register, name, dimensions); err != nil {
		return fmt.Errorf("CreateCollection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("CreateCollection: %w", err)
	}
	return nil
}

// CollectionExists reports whether the collection is registered.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE name = ?`, registryTable)

	var one int
	err := c.db.QueryRowContext(ctx, query, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("CollectionExists: %w", err)
	}
	return true, nil
}

func (c *Client) requireCollection(ctx context.Context, name string) error {
	ok, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
	}
	return nil
}

// ListCollections returns registered collection names in lexical order.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, registryTable)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListCollections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ListCollections: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Count returns the number of points in the collection.
func (c *Client) Count(ctx context.Context, name string) (int, error) {
	if err := c.requireCollection(ctx, name); err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(name))
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// Upsert inserts the point or replaces the row with the same id.
func (c *Client) Upsert(ctx context.Context, collection string, point *storage.Point) error {
	if err := c.requireCollection(ctx, collection); err != nil {
		return err
	}

	embeddingJSON, err := json.Marshal(point.Vector)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	metadataJSON, err := json.Marshal(point.Metadata)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document, embedding, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, quoteIdent(collection))

	_, err = c.db.ExecContext(ctx, query,
		point.ID,
		point.Document,
		string(embeddingJSON),
		string(metadataJSON),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Retrieve returns the points for ids, in the order of ids.
func (c *Client) Retrieve(ctx context.Context, collection string, ids []string) ([]*storage.Point, error) {
	if err := c.requireCollection(ctx, collection); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*storage.Point{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, document, embedding, metadata
		FROM %s
		WHERE id IN (%s)
	`, quoteIdent(collection), placeholders(len(ids)))

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*storage.Point, len(ids))
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		byID[point.ID] = point
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}

	return storage.OrderByIDs(ids, byID), nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading every row of the collection.
func (c *Client) Search(ctx context.Context, collection string, vector []float64, limit int) ([]*storage.ScoredPoint, error) {
	if err := c.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, document, embedding, metadata
		FROM %s
		ORDER BY created_at, id
	`, quoteIdent(collection))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []*storage.ScoredPoint{}
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		score := storage.CosineSimilarity(vector, point.Vector)
		point.Vector = nil
		hits = append(hits, &storage.ScoredPoint{Point: point, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return storage.SortByScore(hits, limit), nil
}

// SetMetadata merges patch into the stored metadata.
func (c *Client) SetMetadata(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	if err := c.requireCollection(ctx, collection); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var metadataStr sql.NullString
	query := fmt.Sprintf(`SELECT metadata FROM %s WHERE id = ?`, quoteIdent(collection))
	err = tx.QueryRowContext(ctx, query, id).Scan(&metadataStr)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrPointNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}

	current, err := parseMetadata(metadataStr.String)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	merged, err := json.Marshal(storage.MergeMetadata(current, patch))
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}

	update := fmt.Sprintf(`UPDATE %s SET metadata = ?, updated_at = ? WHERE id = ?`, quoteIdent(collection))
	if _, err := tx.ExecContext(ctx, update, string(merged), time.Now(), id); err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	return nil
}

// Delete deletes a point by id. Missing ids are ignored.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.requireCollection(ctx, collection); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(collection))
	if _, err := c.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanPoint scans (id, document, embedding, metadata) from a result row.
func scanPoint(rows *sql.Rows) (*storage.Point, error) {
	var point storage.Point
	var embeddingStr string
	var metadataStr sql.NullString

	if err := rows.Scan(&point.ID, &point.Document, &embeddingStr, &metadataStr); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingStr), &point.Vector); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}

	metadata, err := parseMetadata(metadataStr.String)
	if err != nil {
		return nil, err
	}
	point.Metadata = metadata

	return &point, nil
}
