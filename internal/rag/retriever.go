// Package rag implements the retrieval-augmented pipeline: bulk indexing of
// extracted documents, vector retrieval and grounded answer generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notechat/notechat/internal/index"
)

// Embedder turns text into a vector. *embed.Client satisfies it.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs vector queries against the index. *index.Manager satisfies
// it.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]index.Hit, error)
}

// Retriever finds the indexed documents most similar to a query.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever returning up to topK hits per query.
func NewRetriever(embedder Embedder, searcher Searcher, topK int, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be at least 1, got %d", topK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, searcher: searcher, topK: topK, logger: logger}, nil
}

// Retrieve embeds the query and returns the nearest hits ordered by
// descending similarity. A failed query embedding is an error, never an
// empty result: the caller must be able to tell "nothing relevant" from
// "retrieval broke".
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]index.Hit, error) {
	vec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.searcher.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	r.logger.Debug("retrieved documents", "query_length", len(query), "hits", len(hits))
	return hits, nil
}
