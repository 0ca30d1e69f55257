package driven

import (
	"context"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

// MetadataStore persists chunk records durably.
// It is the source of truth: the in-memory cache is a derived,
// rebuildable view over the same records.
//
// Contract: inserts are idempotent on chunk id; filters are
// AND-composed and ordered by clinical timestamp descending (id
// descending as tiebreak) for deterministic pagination.
type MetadataStore interface {
	// InsertBatch stores chunk records in one transactional write.
	// Duplicate ids are silently ignored so re-indexing the same
	// chunk id is idempotent.
	InsertBatch(ctx context.Context, chunks []domain.Chunk) error

	// Filter returns ids of chunks matching all set criteria,
	// ordered by OccurredAt descending.
	Filter(ctx context.Context, filter domain.ChunkFilter) ([]string, error)

	// GetByIDs retrieves full records for the given ids. Unknown ids
	// are omitted from the result.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)

	// DeleteByIDs removes records and reports how many were deleted.
	DeleteByIDs(ctx context.Context, ids []string) (int, error)

	// Count returns the total number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
