package driven

import (
	"context"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

// KeywordIndex provides lexical search over chunk text for hybrid
// scoring. It is an optional collaborator: when nil, retrieval
// degrades gracefully to pure vector search.
type KeywordIndex interface {
	// AddDocuments adds or updates chunks in the lexical index.
	AddDocuments(ctx context.Context, chunks []domain.Chunk) error

	// Delete removes chunks from the lexical index.
	Delete(ctx context.Context, ids []string) error

	// Search performs a keyword search and returns matching chunk ids
	// with relevance scores, best first.
	Search(ctx context.Context, query string, limit int) ([]KeywordHit, error)

	// Save flushes the index to durable storage.
	Save(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// KeywordHit represents a lexical search result.
type KeywordHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the lexical relevance score.
	Score float64
}
