// Package postgres provides a PostgreSQL + pgvector implementation for vector storage.
//
// Each collection is a table with a vector(n) column; similarity search is
// done by pgvector's cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

const registryTable = "powermem_collections"

// Client is a PostgreSQL + pgvector client.
type Client struct {
	db *sql.DB
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// DSN overrides the individual connection fields when set.
	DSN string
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{db: db}
	if err := client.initRegistry(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initRegistry enables pgvector and creates the collection registry.
func (c *Client) initRegistry(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initRegistry: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name VARCHAR(255) PRIMARY KEY,
			dimensions INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
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
			id VARCHAR(64) PRIMARY KEY,
			document TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, pq.QuoteIdentifier(name), dimensions)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("CreateCollection: create table: %w", err)
	}

	register := fmt.Sprintf(`
		INSERT INTO %s (name, dimensions) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, registryTable)
	if _, err := tx.ExecContext(ctx, register, name, dimensions); err != nil {
		return fmt.Errorf("CreateCollection: register: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("CreateCollection: %w", err)
	}
	return nil
}

// CollectionExists reports whether the collection is registered.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)`, registryTable)
	if err := c.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("CollectionExists: %w", err)
	}
	return exists, nil
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
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, registryTable))
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
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pq.QuoteIdentifier(name))
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

	metadataJSON, err := json.Marshal(point.Metadata)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, pq.QuoteIdentifier(collection))

	// pgvector accepts the "[0.1,0.2,...]" literal form
	_, err = c.db.ExecContext(ctx, query,
		point.ID,
		point.Document,
		storage.VectorToString(point.Vector),
		string(metadataJSON),
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
		SELECT id, document, embedding::text, metadata
		FROM %s
		WHERE id = ANY($1)
	`, pq.QuoteIdentifier(collection))

	rows, err := c.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*storage.Point, len(ids))
	for rows.Next() {
		var point storage.Point
		var vectorStr string
		var metadataStr sql.NullString
		if err := rows.Scan(&point.ID, &point.Document, &vectorStr, &metadataStr); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		if point.Vector, err = storage.ParseVector(vectorStr); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		if point.Metadata, err = parseMetadata(metadataStr.String); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		byID[point.ID] = &point
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}

	return storage.OrderByIDs(ids, byID), nil
}

// Search performs vector search using pgvector's cosine distance operator.
func (c *Client) Search(ctx context.Context, collection string, vector []float64, limit int) ([]*storage.ScoredPoint, error) {
	if err := c.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	// <=> is cosine distance, so similarity is 1 - distance
	query := fmt.Sprintf(`
		SELECT id, document, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pq.QuoteIdentifier(collection))

	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}

	rows, err := c.db.QueryContext(ctx, query, storage.VectorToString(vector), limitArg)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []*storage.ScoredPoint{}
	for rows.Next() {
		var point storage.Point
		var metadataStr sql.NullString
		var score float64
		if err := rows.Scan(&point.ID, &point.Document, &metadataStr, &score); err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		if point.Metadata, err = parseMetadata(metadataStr.String); err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		hits = append(hits, &storage.ScoredPoint{Point: &point, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return storage.SortByScore(hits, limit), nil
}

// SetMetadata merges patch into the stored JSONB metadata.
func (c *Client) SetMetadata(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	if err := c.requireCollection(ctx, collection); err != nil {
		return err
	}

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`, pq.QuoteIdentifier(collection))

	result, err := c.db.ExecContext(ctx, query, string(patchJSON), id)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrPointNotFound, id)
	}
	return nil
}

// Delete deletes a point by id. Missing ids are ignored.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.requireCollection(ctx, collection); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(collection))
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

func parseMetadata(raw string) (map[string]interface{}, error) {
	metadata := map[string]interface{}{}
	if raw == "" || raw == "null" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return metadata, nil
}
