package driven

import "context"

// VectorIndex provides nearest-neighbour search over chunk embeddings.
// It owns the mapping between chunk ids and internal vector slots.
//
// Contract: implementations L2-normalise vectors internally so that
// inner-product search behaves as cosine similarity. A vector whose
// dimension disagrees with the index configuration is rejected with
// domain.ErrDimensionMismatch, never silently truncated or padded.
type VectorIndex interface {
	// Add inserts one vector per chunk id. ids and vectors must be
	// the same length. Re-adding an existing id replaces its vector.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Delete removes vectors for the given chunk ids. Unknown ids
	// are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search finds the k nearest neighbours to the query vector,
	// ordered by similarity descending.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Save flushes the index to durable storage so a process restart
	// can warm-start without re-embedding.
	Save(ctx context.Context) error

	// Load restores the index from durable storage. The persisted
	// dimension must match the configured dimension.
	Load(ctx context.Context) error

	// Dimensions returns the configured vector size.
	Dimensions() int

	// Len returns the number of stored vectors.
	Len() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
