package driving

import (
	"context"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

// Indexer drives the chunk indexing pipeline.
//
// Index and ReindexArtifact never propagate stage failures as errors:
// stage-local errors are collected into the result's error list and
// the pipeline always runs to completion. The returned error is
// reserved for precondition failures (unknown artifact on reindex).
type Indexer interface {
	// Index runs the staged pipeline over a batch of chunks:
	// validate, embed, store vectors, store metadata, keyword index,
	// update cache, persist.
	Index(ctx context.Context, chunks []domain.Chunk) domain.IndexingResult

	// ReindexArtifact supersedes all chunks of an artifact with the
	// replacement set. Returns domain.ErrNotFound when the artifact
	// is unknown to the index.
	ReindexArtifact(ctx context.Context, artifactID string, chunks []domain.Chunk) (domain.IndexingResult, error)

	// DeleteArtifact removes all chunks of an artifact from the
	// metadata store and cache, reporting how many were removed.
	DeleteArtifact(ctx context.Context, artifactID string) (int, error)

	// Stats summarises the live index.
	Stats() domain.IndexStats
}

// ProgressObserver receives stage-transition events from the pipeline.
// Notifications are synchronous and fire-and-continue: a slow or
// panicking observer is isolated and cannot corrupt the indexing
// result.
type ProgressObserver interface {
	// OnProgress is called once per pipeline phase transition.
	OnProgress(event domain.ProgressEvent)
}
