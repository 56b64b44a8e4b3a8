// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must satisfy,
// and a bounded cache that can wrap any of them.
package embedder

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed marks a failure reported by an embedding provider.
// Such failures are transient from the caller's point of view and may be retried.
var ErrEmbeddingFailed = errors.New("embedding generation failed")

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, Qwen, mock) must implement this interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// Returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}

// Float32To64 widens a vector returned by a float32 API.
func Float32To64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
