package core

import (
	"context"
	"time"
)

// embed returns the vector for text, retrying provider failures with a
// linear backoff. Store errors never pass through here.
func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	retries := c.config.Retrieval.EmbedRetries
	step := time.Duration(c.config.Retrieval.EmbedRetryDelayMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.obs.Log().Warn().Int("attempt", attempt).Err(lastErr).Msg("retrying embedding")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * step):
			}
		}

		vector, err := c.embedder.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
