package domain

import "time"

// Sentinel item ids used in IndexError for whole-stage failures,
// where no single chunk is at fault.
const (
	StageEmbedding     = "embedding"
	StageVectorStore   = "vector_store"
	StageMetadataStore = "metadata_store"
	StageKeywordIndex  = "keyword_index"
	StagePersist       = "persist"
)

// Progress phase names, reported in pipeline stage order.
const (
	PhaseValidate      = "validate"
	PhaseEmbed         = "embed"
	PhaseStoreVectors  = "store_vectors"
	PhaseStoreMetadata = "store_metadata"
	PhaseKeywordIndex  = "keyword_index"
	PhaseUpdateCache   = "update_cache"
	PhasePersist       = "persist"
)

// IndexError records a single indexing failure, keyed by a logical
// item id: a chunk id for per-item failures, or a stage sentinel
// (StageVectorStore etc) for whole-batch failures.
type IndexError struct {
	// ItemID is the chunk id or stage sentinel.
	ItemID string

	// Stage names the pipeline stage that produced the error.
	Stage string

	// Message is the human-readable failure description.
	Message string
}

// IndexingResult is the report returned by every indexing call.
// It is a report object, never persisted state. The pipeline never
// propagates errors past its boundary: callers must inspect Success
// and Errors rather than rely on a returned error. A false Success
// with a populated error list is a normal outcome for large batches
// containing some bad input.
type IndexingResult struct {
	// Success is true iff the error list is empty.
	Success bool

	// ChunksIndexed counts chunks carried past the embedding stage.
	// It stays zero when the batch aborts before anything is stored.
	ChunksIndexed int

	// EmbeddingsGenerated counts embeddings produced by the batched
	// embedding call.
	EmbeddingsGenerated int

	// Errors accumulates per-item and per-stage failures.
	Errors []IndexError

	// Duration is the wall-clock time of the pipeline call.
	Duration time.Duration
}

// ProgressEvent is a stage-transition notification emitted by the
// indexing pipeline. Events are fire-and-continue: observers must
// not block the pipeline.
type ProgressEvent struct {
	// Phase is the named pipeline phase (PhaseValidate etc).
	Phase string

	// Completed is the number of chunks processed so far in this phase.
	Completed int

	// Total is the number of chunks entering this phase.
	Total int
}

// IndexStats summarises the live index, derived from the metadata cache.
type IndexStats struct {
	// TotalChunks is the number of indexed chunks.
	TotalChunks int

	// Patients is the number of distinct patient ids.
	Patients int

	// Artifacts is the number of distinct artifact ids.
	Artifacts int

	// ArtifactTypes is the number of distinct artifact classifications.
	ArtifactTypes int

	// Days is the number of distinct calendar days.
	Days int
}
