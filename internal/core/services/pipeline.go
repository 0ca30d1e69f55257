package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/custodia-labs/chartdex/internal/core/cache"
	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
	"github.com/custodia-labs/chartdex/internal/core/ports/driving"
	"github.com/custodia-labs/chartdex/internal/logger"
)

// Ensure IndexingPipeline implements the interface.
var _ driving.Indexer = (*IndexingPipeline)(nil)

// IndexingPipeline orchestrates chunk indexing through strictly
// ordered stages: validate, embed, store vectors, store metadata,
// keyword index, update cache, persist.
//
// Stages accumulate errors into the result's error list and the
// pipeline always runs to completion; it never propagates stage
// failures past its own boundary. Two indexing calls must not run
// concurrently - serialisation is the caller's responsibility.
type IndexingPipeline struct {
	embedder     driven.EmbeddingService
	vectors      driven.VectorIndex
	metaStore    driven.MetadataStore
	keywordIndex driven.KeywordIndex
	metaCache    *cache.Cache
	snapshotPath string
	observers    []driving.ProgressObserver
}

// NewIndexingPipeline creates a new indexing pipeline.
// The keywordIndex is optional (can be nil); indexing then skips the
// keyword stage. snapshotPath is where the cache snapshot is persisted;
// empty disables cache persistence.
func NewIndexingPipeline(
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	metaStore driven.MetadataStore,
	keywordIndex driven.KeywordIndex,
	metaCache *cache.Cache,
	snapshotPath string,
) *IndexingPipeline {
	return &IndexingPipeline{
		embedder:     embedder,
		vectors:      vectors,
		metaStore:    metaStore,
		keywordIndex: keywordIndex,
		metaCache:    metaCache,
		snapshotPath: snapshotPath,
	}
}

// AddObserver subscribes an observer to pipeline progress events.
// Observers must be registered before indexing starts.
func (p *IndexingPipeline) AddObserver(obs driving.ProgressObserver) {
	p.observers = append(p.observers, obs)
}

// Index runs the staged pipeline over a batch of chunks.
func (p *IndexingPipeline) Index(ctx context.Context, chunks []domain.Chunk) domain.IndexingResult {
	logger.Section("Indexing Pipeline")
	start := time.Now()
	var result domain.IndexingResult

	// Stage 1: validate. Rejections are recorded, never abort the batch.
	valid := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			result.Errors = append(result.Errors, domain.IndexError{
				ItemID:  chunk.ID,
				Stage:   domain.PhaseValidate,
				Message: err.Error(),
			})
			continue
		}
		valid = append(valid, chunk)
	}
	p.notify(domain.ProgressEvent{Phase: domain.PhaseValidate, Completed: len(valid), Total: len(chunks)})
	logger.Debug("Validated %d/%d chunks", len(valid), len(chunks))

	if len(valid) == 0 {
		return p.finish(result, start)
	}

	// Stage 2: embed. One batched call; a batch-level failure aborts
	// the remaining stages for this call, so nothing counts as indexed.
	embeddings, err := p.embedBatch(ctx, valid)
	if err != nil {
		result.Errors = append(result.Errors, domain.IndexError{
			ItemID:  domain.StageEmbedding,
			Stage:   domain.PhaseEmbed,
			Message: err.Error(),
		})
		logger.Warn("Embedding stage failed: %v", err)
		return p.finish(result, start)
	}
	result.ChunksIndexed = len(valid)
	result.EmbeddingsGenerated = len(embeddings)
	p.notify(domain.ProgressEvent{Phase: domain.PhaseEmbed, Completed: len(embeddings), Total: len(valid)})
	logger.Debug("Generated %d embeddings", len(embeddings))

	ids := make([]string, len(valid))
	for i, chunk := range valid {
		ids[i] = chunk.ID
	}

	// Stage 3: store vectors. Partial-success policy: a failure here
	// is recorded but later stages still run.
	if err := p.vectors.Add(ctx, ids, embeddings); err != nil {
		result.Errors = append(result.Errors, domain.IndexError{
			ItemID:  domain.StageVectorStore,
			Stage:   domain.PhaseStoreVectors,
			Message: err.Error(),
		})
		logger.Warn("Vector store stage failed: %v", err)
	}
	p.notify(domain.ProgressEvent{Phase: domain.PhaseStoreVectors, Completed: len(ids), Total: len(valid)})

	// Stage 4: store metadata. One transactional batched write,
	// idempotent on chunk id.
	metaOK := true
	if err := p.metaStore.InsertBatch(ctx, valid); err != nil {
		metaOK = false
		result.Errors = append(result.Errors, domain.IndexError{
			ItemID:  domain.StageMetadataStore,
			Stage:   domain.PhaseStoreMetadata,
			Message: err.Error(),
		})
		logger.Warn("Metadata store stage failed: %v", err)
	}
	p.notify(domain.ProgressEvent{Phase: domain.PhaseStoreMetadata, Completed: len(valid), Total: len(valid)})

	// Stage 5: keyword index. Secondary signal only.
	if p.keywordIndex != nil {
		if err := p.keywordIndex.AddDocuments(ctx, valid); err != nil {
			result.Errors = append(result.Errors, domain.IndexError{
				ItemID:  domain.StageKeywordIndex,
				Stage:   domain.PhaseKeywordIndex,
				Message: err.Error(),
			})
			logger.Warn("Keyword index stage failed: %v", err)
		}
	}
	p.notify(domain.ProgressEvent{Phase: domain.PhaseKeywordIndex, Completed: len(valid), Total: len(valid)})

	// Stage 6: update cache. Only when the metadata write succeeded:
	// every cached id must also exist in the metadata store.
	if metaOK {
		for _, chunk := range valid {
			p.metaCache.Put(chunk)
		}
	}
	p.notify(domain.ProgressEvent{Phase: domain.PhaseUpdateCache, Completed: len(valid), Total: len(valid)})

	// Stage 7: persist for warm restart.
	for _, err := range p.persist(ctx) {
		result.Errors = append(result.Errors, domain.IndexError{
			ItemID:  domain.StagePersist,
			Stage:   domain.PhasePersist,
			Message: err.Error(),
		})
		logger.Warn("Persist stage: %v", err)
	}
	p.notify(domain.ProgressEvent{Phase: domain.PhasePersist, Completed: len(valid), Total: len(valid)})

	return p.finish(result, start)
}

// ReindexArtifact supersedes all chunks of an artifact. When chunks is
// empty the artifact's current records are reconstructed from the
// metadata store and re-run through the pipeline (refresh path);
// otherwise the replacement chunks are indexed.
func (p *IndexingPipeline) ReindexArtifact(
	ctx context.Context, artifactID string, chunks []domain.Chunk,
) (domain.IndexingResult, error) {
	logger.Section("Reindex Artifact")
	logger.Debug("Artifact: %s, replacements: %d", artifactID, len(chunks))

	if !p.metaCache.HasArtifact(artifactID) {
		return domain.IndexingResult{}, fmt.Errorf("artifact %s: %w", artifactID, domain.ErrNotFound)
	}

	oldIDs := p.metaCache.ChunksByArtifact(artifactID)

	if len(chunks) == 0 {
		// Refresh path: rebuild the pipeline input from stored records.
		records, err := p.metaStore.GetByIDs(ctx, oldIDs)
		if err != nil {
			return domain.IndexingResult{}, fmt.Errorf("fetch artifact chunks: %w", err)
		}
		chunks = records
	}

	if _, err := p.metaStore.DeleteByIDs(ctx, oldIDs); err != nil {
		return domain.IndexingResult{}, fmt.Errorf("delete superseded chunks: %w", err)
	}
	for _, id := range oldIDs {
		p.metaCache.Remove(id)
	}
	if err := p.vectors.Delete(ctx, oldIDs); err != nil {
		logger.Warn("Delete superseded vectors: %v", err)
	}
	if p.keywordIndex != nil {
		if err := p.keywordIndex.Delete(ctx, oldIDs); err != nil {
			logger.Warn("Delete superseded keyword entries: %v", err)
		}
	}

	return p.Index(ctx, chunks), nil
}

// DeleteArtifact removes all chunks of an artifact.
func (p *IndexingPipeline) DeleteArtifact(ctx context.Context, artifactID string) (int, error) {
	if !p.metaCache.HasArtifact(artifactID) {
		return 0, fmt.Errorf("artifact %s: %w", artifactID, domain.ErrNotFound)
	}

	ids := p.metaCache.ChunksByArtifact(artifactID)
	deleted, err := p.metaStore.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete artifact chunks: %w", err)
	}
	for _, id := range ids {
		p.metaCache.Remove(id)
	}
	if err := p.vectors.Delete(ctx, ids); err != nil {
		logger.Warn("Delete artifact vectors: %v", err)
	}
	if p.keywordIndex != nil {
		if err := p.keywordIndex.Delete(ctx, ids); err != nil {
			logger.Warn("Delete artifact keyword entries: %v", err)
		}
	}

	for _, err := range p.persist(ctx) {
		logger.Warn("Persist after delete: %v", err)
	}

	logger.Info("Deleted %d chunks for artifact %s", deleted, artifactID)
	return deleted, nil
}

// Stats summarises the live index from the cache.
func (p *IndexingPipeline) Stats() domain.IndexStats {
	return p.metaCache.Stats()
}

// Persist flushes the vector index, keyword index and cache snapshot.
func (p *IndexingPipeline) Persist(ctx context.Context) error {
	errs := p.persist(ctx)
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrStoreWrite, errs[0])
	}
	return nil
}

// WarmStart restores the vector index and cache from their persisted
// snapshots, validating the vector dimension against the live
// embedding configuration. A missing or stale cache snapshot falls
// back to rebuilding from the metadata store.
func (p *IndexingPipeline) WarmStart(ctx context.Context) error {
	if err := p.vectors.Load(ctx); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load vector index: %w", err)
		}
		// Cold start: nothing persisted yet.
		logger.Debug("No persisted vector index, starting cold")
	}
	if p.embedder != nil && p.vectors.Dimensions() != p.embedder.Dimensions() {
		return fmt.Errorf("vector index dimension %d does not match embedding model %d: %w",
			p.vectors.Dimensions(), p.embedder.Dimensions(), domain.ErrDimensionMismatch)
	}

	if p.snapshotPath != "" {
		err := p.metaCache.LoadFrom(p.snapshotPath)
		if err == nil {
			logger.Info("Cache warm start: %d chunks", p.metaCache.Len())
			return nil
		}
		logger.Warn("Cache snapshot unusable, rebuilding: %v", err)
	}

	if err := p.metaCache.Rebuild(ctx, p.metaStore); err != nil {
		return fmt.Errorf("rebuild cache: %w", err)
	}
	logger.Info("Cache rebuilt from metadata store: %d chunks", p.metaCache.Len())
	return nil
}

// embedBatch runs the single batched embedding call for the batch.
func (p *IndexingPipeline) embedBatch(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if p.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d embeddings for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// persist flushes all durable structures, collecting errors.
func (p *IndexingPipeline) persist(ctx context.Context) []error {
	var errs []error
	if err := p.vectors.Save(ctx); err != nil {
		errs = append(errs, fmt.Errorf("save vector index: %w", err))
	}
	if p.keywordIndex != nil {
		if err := p.keywordIndex.Save(ctx); err != nil {
			errs = append(errs, fmt.Errorf("save keyword index: %w", err))
		}
	}
	if p.snapshotPath != "" {
		if err := p.metaCache.Save(p.snapshotPath); err != nil {
			errs = append(errs, fmt.Errorf("save cache snapshot: %w", err))
		}
	}
	return errs
}

// finish stamps the result with success and duration.
func (p *IndexingPipeline) finish(result domain.IndexingResult, start time.Time) domain.IndexingResult {
	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(start)
	logger.Info("Indexing complete: %d chunks, %d embeddings, %d errors in %s",
		result.ChunksIndexed, result.EmbeddingsGenerated, len(result.Errors), result.Duration)
	return result
}

// notify delivers a progress event to every observer. Observer panics
// are recovered and swallowed so a misbehaving consumer cannot corrupt
// the indexing result.
func (p *IndexingPipeline) notify(event domain.ProgressEvent) {
	for _, obs := range p.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn("Progress observer panic: %v", r)
				}
			}()
			obs.OnProgress(event)
		}()
	}
}
