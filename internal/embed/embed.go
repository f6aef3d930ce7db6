// Package embed wraps a Genkit embedder with the resilience the ingestion
// pipeline needs: request pacing, bounded retries and output dimension
// pinning.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ErrEmptyEmbedding indicates the provider returned no vector for a text.
var ErrEmptyEmbedding = errors.New("empty embedding returned")

// embedCallTimeout bounds a single embedding request. Each retry attempt
// gets a fresh budget.
const embedCallTimeout = 30 * time.Second

// RetryConfig configures retry behavior for embedding calls.
type RetryConfig struct {
	// Attempts is the total number of tries per text, first call included.
	Attempts int

	// Backoff is the fixed delay between tries.
	Backoff time.Duration
}

// DefaultRetryConfig returns the defaults used during ingestion.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, Backoff: time.Second}
}

// Client generates embeddings of a fixed dimension.
//
// Every call waits on the shared rate limiter first, so bulk ingestion
// paces itself against provider quotas no matter how many goroutines call
// in. Client is safe for concurrent use.
type Client struct {
	embedder  ai.Embedder
	dimension int
	retry     RetryConfig
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// PerMinuteLimiter builds a token-bucket limiter for n calls per minute.
// n <= 0 disables pacing.
func PerMinuteLimiter(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}

// NewClient creates a Client. limiter must not be nil; use
// PerMinuteLimiter(0) to disable pacing.
func NewClient(embedder ai.Embedder, dimension int, retry RetryConfig, limiter *rate.Limiter, logger *slog.Logger) (*Client, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if retry.Attempts < 1 {
		return nil, fmt.Errorf("retry attempts must be at least 1, got %d", retry.Attempts)
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		embedder:  embedder,
		dimension: dimension,
		retry:     retry,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// Dimension returns the pinned output dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// EmbedText returns the embedding for one text. Empty text is embedded like
// any other; the caller decides whether empty documents are worth indexing.
//
// Transient failures are retried up to the configured attempt count with a
// fixed backoff. The returned vector always has exactly Dimension elements.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		// Pace every attempt, retries count against the quota too
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			c.logger.Debug("embedded text",
				"attempts", attempt,
				"elapsed", time.Since(start),
				"text_length", len(text))
			return vec, nil
		}

		lastErr = err

		// A dead caller context ends the loop; a single request hitting
		// its own embedCallTimeout is transient and retried like any
		// other failure.
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}

		if attempt == c.retry.Attempts {
			break
		}

		c.logger.Warn("embedding attempt failed, retrying",
			"attempt", attempt,
			"backoff", c.retry.Backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(c.retry.Backoff):
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts (elapsed: %v): %w",
		c.retry.Attempts, time.Since(start), lastErr)
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, embedCallTimeout)
	defer cancel()

	dim := int32(c.dimension)

	resp, err := c.embedder.Embed(callCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("provider returned %d dimensions, want %d", len(vec), c.dimension)
	}

	return vec, nil
}
