// Package oceanbase provides an OceanBase implementation for vector storage.
//
// OceanBase speaks the MySQL protocol and has a native VECTOR column type
// with cosine_distance, so both storage and ranking happen in the database.
package oceanbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

const registryTable = "powermem_collections"

// Client is an OceanBase client.
type Client struct {
	db *sql.DB
}

// Config contains OceanBase configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DSN builds a go-sql-driver DSN from the config.
func (cfg *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc.FormatDSN()
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	return Open(cfg.DSN())
}

// Open connects using a ready-made DSN.
func Open(dsn string) (*Client, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
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
// MySQL DDL commits implicitly, so the two statements are not transactional;
// both are idempotent.
func (c *Client) CreateCollection(ctx context.Context, name string, dimensions int) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			document LONGTEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			metadata JSON,
			hash VARCHAR(32),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`, quoteIdent(name), dimensions)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("CreateCollection: create table: %w", err)
	}

	register := fmt.Sprintf(`INSERT IGNORE INTO %s (name, dimensions) VALUES (?, ?)`, registryTable)
	if _, err := c.db.ExecContext(ctx, register, name, dimensions); err != nil {
		return fmt.Errorf("CreateCollection: register: %w", err)
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
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(name))).Scan(&n); err != nil {
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
		INSERT INTO %s (id, document, embedding, metadata, hash)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			document = VALUES(document),
			embedding = VALUES(embedding),
			metadata = VALUES(metadata),
			hash = VALUES(hash)
	`, quoteIdent(collection))

	_, err = c.db.ExecContext(ctx, query,
		point.ID,
		point.Document,
		storage.VectorToString(point.Vector),
		string(metadataJSON),
		contentHash(point.Document),
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
		var point storage.Point
		var vectorStr string
		var metadataRaw []byte
		if err := rows.Scan(&point.ID, &point.Document, &vectorStr, &metadataRaw); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		if point.Vector, err = storage.ParseVector(vectorStr); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		if point.Metadata, err = parseMetadata(metadataRaw); err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		byID[point.ID] = &point
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}

	return storage.OrderByIDs(ids, byID), nil
}

// Search ranks the collection by cosine_distance; similarity is 1 - distance.
func (c *Client) Search(ctx context.Context, collection string, vector []float64, limit int) ([]*storage.ScoredPoint, error) {
	if err := c.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, document, metadata, cosine_distance(embedding, ?) AS distance
		FROM %s
		ORDER BY distance
	`, quoteIdent(collection))
	args := []interface{}{storage.VectorToString(vector)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []*storage.ScoredPoint{}
	for rows.Next() {
		var point storage.Point
		var metadataRaw []byte
		var distance float64
		if err := rows.Scan(&point.ID, &point.Document, &metadataRaw, &distance); err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		if point.Metadata, err = parseMetadata(metadataRaw); err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		hits = append(hits, &storage.ScoredPoint{Point: &point, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return storage.SortByScore(hits, limit), nil
}

// SetMetadata merges patch into the stored JSON metadata.
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
		SET metadata = JSON_MERGE_PATCH(COALESCE(metadata, JSON_OBJECT()), ?)
		WHERE id = ?
	`, quoteIdent(collection))

	result, err := c.db.ExecContext(ctx, query, string(patchJSON), id)
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}

	// MySQL reports changed rows, so an identical patch also yields 0
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetMetadata: %w", err)
	}
	if rowsAffected == 0 {
		found, err := c.Retrieve(ctx, collection, []string{id})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("%w: %s", storage.ErrPointNotFound, id)
		}
	}
	return nil
}

// Delete deletes a point by id. Missing ids are ignored.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.requireCollection(ctx, collection); err != nil {
		return err
	}

	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(collection)), id); err != nil {
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
