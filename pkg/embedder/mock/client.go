// Package mock provides a deterministic, offline embedding provider.
//
// Vectors are bag-of-words hashes: every lowercase word is hashed into one
// dimension and the result is unit-normalised. Texts sharing words get a
// positive cosine similarity and identical texts score 1.0. It is meant for
// tests and for running the server without network access.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is used when Config.Dimensions is zero.
const DefaultDimensions = 256

// Client implements embedder.Provider without any external service.
type Client struct {
	dimensions int
}

// Config contains configuration for the mock provider.
type Config struct {
	// Dimensions is the vector size (default: 256).
	Dimensions int
}

// NewClient creates a new mock embedding provider.
func NewClient(cfg *Config) *Client {
	dims := DefaultDimensions
	if cfg != nil && cfg.Dimensions > 0 {
		dims = cfg.Dimensions
	}
	return &Client{dimensions: dims}
}

// Embed hashes the words of text into a unit vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float64, c.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(c.dimensions))
		if sum&(1<<63) != 0 {
			v[idx] -= 1
		} else {
			v[idx] += 1
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		// empty text still needs a valid direction for cosine stores
		v[0] = 1
		return v, nil
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v, nil
}

// EmbedBatch embeds each text in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the vector size.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
