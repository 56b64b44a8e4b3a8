// Package core provides the powermem-mcp client: collection-routed memory
// storage with two-stage retrieval and a consolidation policy.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	"github.com/oceanbase/powermem-mcp/pkg/embedder"
	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

// Predefined errors for common failure scenarios.
//
// Every error returned by Client carries exactly one of ErrNotFound,
// ErrEmbeddingFailed, ErrStorageOperation, ErrInvalidConfig or ErrInvalidInput
// in its chain.
var (
	// ErrNotFound indicates that a requested memory or collection was not found.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid,
	// including project names that sanitize to nothing.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates that a connection to the storage backend failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrEmbeddingFailed indicates that the embedding provider failed.
	// No write has happened when it is returned, so the operation may be retried.
	ErrEmbeddingFailed = embedder.ErrEmbeddingFailed

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageOperation indicates that a vector store call failed. The
	// outcome of a write is unknown; check existence before retrying.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrLLMOperation indicates that an LLM operation failed.
	ErrLLMOperation = errors.New("llm operation failed")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Store",
//	    Err: ErrEmbeddingFailed,
//	}
//	// Error() returns: "powermem: Store: embedding generation failed"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "powermem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("powermem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Store", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// IsRetryable reports whether err is an embedding provider failure, the only
// kind that is safe to retry blindly.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingFailed)
}

// IsNotFound reports whether err means the memory or collection is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// classify attaches the taxonomy sentinel for errors coming from collaborators.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrEmbeddingFailed),
		errors.Is(err, ErrStorageOperation),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, collection.ErrEmptyName):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case errors.Is(err, storage.ErrPointNotFound), errors.Is(err, storage.ErrCollectionNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageOperation, err)
	}
}
