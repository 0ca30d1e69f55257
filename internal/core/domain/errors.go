package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// Returned when reindexing an artifact unknown to the index.
	ErrNotFound = errors.New("not found")

	// ErrInvalidChunk indicates a chunk failed validation
	// (empty or whitespace-only text, missing id).
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrDimensionMismatch indicates an embedding's size disagrees with
	// the vector index configuration. Vectors are never silently
	// truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreWrite indicates a vector, metadata or keyword write failed.
	// The pipeline records it and continues with later stages.
	ErrStoreWrite = errors.New("store write failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Indexing and retrieval both require embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not
	// configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrSnapshotVersion indicates a persisted snapshot was written by
	// an incompatible schema version and cannot be trusted.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)
