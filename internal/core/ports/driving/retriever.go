package driving

import (
	"context"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

// Retriever answers relevance queries by combining vector similarity
// with relationship-based expansion over the retrieved chunks.
type Retriever interface {
	// Retrieve runs a baseline similarity search for the parsed query
	// and optionally expands the candidate set by following chunk
	// relationships up to opts.MaxHops, returning the top k candidates
	// by blended score.
	Retrieve(ctx context.Context, query domain.ParsedQuery, k int, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}
