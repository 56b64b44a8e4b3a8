// Package storage provides interfaces and types for vector storage backends.
//
// A VectorStore holds named collections of points. Every operation is
// addressed by collection name; backends map collections onto whatever
// unit they have (a chromem collection, a SQL table).
package storage

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when the addressed collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrPointNotFound is returned when a point id is not in the collection.
	ErrPointNotFound = errors.New("point not found")
)

// Point is one stored memory: its id, document text, vector and metadata payload.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. The core package converts it to and from core.Memory.
type Point struct {
	// ID is the opaque identifier of the point.
	ID string

	// Document is the full text of the memory.
	Document string

	// Vector is the embedding of Document. Backends may omit it on search results.
	Vector []float64

	// Metadata is the payload stored next to the document.
	Metadata map[string]interface{}
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	*Point

	// Score is the cosine similarity to the query, higher is closer.
	Score float64
}

// VectorStore defines the interface for vector storage backends.
//
// All storage implementations (chromem, SQLite, PostgreSQL, OceanBase) must implement this interface.
type VectorStore interface {
	// CreateCollection creates a collection for vectors of the given size.
	// Creating an existing collection is not an error.
	CreateCollection(ctx context.Context, name string, dimensions int) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, name string) (int, error)

	// Upsert inserts the point or replaces the point with the same id.
	Upsert(ctx context.Context, collection string, point *Point) error

	// Retrieve returns the points with the given ids. Missing ids are skipped;
	// the result follows the order of ids.
	Retrieve(ctx context.Context, collection string, ids []string) ([]*Point, error)

	// Search returns up to limit points ordered by descending similarity.
	// Vectors are not populated on the returned points.
	Search(ctx context.Context, collection string, vector []float64, limit int) ([]*ScoredPoint, error)

	// SetMetadata merges patch into the point's metadata without touching its vector.
	SetMetadata(ctx context.Context, collection, id string, patch map[string]interface{}) error

	// Delete removes the point. Deleting a missing point is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Close closes the store and releases resources.
	Close() error
}
