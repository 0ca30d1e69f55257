package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/chartdex/internal/core/cache"
	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
	"github.com/custodia-labs/chartdex/internal/core/ports/driving"
	"github.com/custodia-labs/chartdex/internal/logger"
)

// Ensure MultiHopRetriever implements the interface.
var _ driving.Retriever = (*MultiHopRetriever)(nil)

// rrfK is the reciprocal-rank-fusion constant used when blending
// keyword hits, preventing top ranks from dominating.
const rrfK = 60

// MultiHopRetriever answers relevance queries: a baseline top-k vector
// search, optionally expanded by following relationship edges from
// retrieved chunks to related chunks (1 or 2 hops), blending the
// original similarity with a linear hop-distance penalty and an
// additive enrichment signal.
type MultiHopRetriever struct {
	embedder     driven.EmbeddingService
	vectors      driven.VectorIndex
	metaStore    driven.MetadataStore
	keywordIndex driven.KeywordIndex
	metaCache    *cache.Cache
}

// NewMultiHopRetriever creates a new retriever.
// The keywordIndex is optional (can be nil); keyword blending then
// degrades silently to pure vector ranking.
func NewMultiHopRetriever(
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	metaStore driven.MetadataStore,
	keywordIndex driven.KeywordIndex,
	metaCache *cache.Cache,
) *MultiHopRetriever {
	return &MultiHopRetriever{
		embedder:     embedder,
		vectors:      vectors,
		metaStore:    metaStore,
		keywordIndex: keywordIndex,
		metaCache:    metaCache,
	}
}

// Retrieve runs the retrieval algorithm for a parsed query.
func (r *MultiHopRetriever) Retrieve(
	ctx context.Context, query domain.ParsedQuery, k int, opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	start := time.Now()

	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if r.vectors == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if k <= 0 {
		k = 10
	}

	maxHops := opts.MaxHops
	if !opts.EnableMultiHop {
		maxHops = 0
	}
	if maxHops < 0 {
		maxHops = 0
	}
	if maxHops > domain.MaxHopLimit {
		maxHops = domain.MaxHopLimit
	}
	logger.Debug("Query: %q, k=%d, maxHops=%d", query.Text, k, maxHops)

	// Baseline: embed the query and run a top-k similarity search.
	embedding, err := r.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	internalLimit := k
	if !query.Filter.Empty() {
		// Request more hits to survive metadata filtering.
		internalLimit = k * 3
	}

	hits, err := r.vectors.Search(ctx, embedding, internalLimit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Baseline: %d hits", len(hits))

	candidates, order, err := r.hydrateBaseline(ctx, hits, query.Filter)
	if err != nil {
		return nil, err
	}

	// Hop expansion over relationship edges. origins carries each
	// candidate's unpenalized hop-0 similarity so the hop penalty stays
	// linear in hop distance rather than compounding per edge.
	origins := make(map[string]float64, len(candidates))
	for id, cand := range candidates {
		origins[id] = cand.SimilarityScore
	}

	var hopStats []domain.HopLevelStats
	frontier := order
	for hop := 1; hop <= maxHops; hop++ {
		var stats domain.HopLevelStats
		frontier, stats, err = r.expandHop(ctx, hop, opts.Boost(), frontier, candidates, origins)
		if err != nil {
			return nil, err
		}
		order = append(order, frontier...)
		hopStats = append(hopStats, stats)
		logger.Debug("Hop %d: %d discovered, %d edges", hop, stats.ChunksDiscovered, stats.EdgesFollowed)
		if len(frontier) == 0 {
			break
		}
	}

	// Enrichment scoring: fold the annotation signal additively into
	// ranking, never replacing the similarity score.
	if opts.UseEnrichedText {
		for _, id := range order {
			cand := candidates[id]
			if cand.Chunk.Enriched() {
				cand.EnrichmentScore = cand.Chunk.EnrichmentScore
			}
		}
	}

	// Optional secondary keyword signal.
	kwBonus := r.keywordBonus(ctx, query.Text, internalLimit, opts)

	// Truncate and sort: blended score descending, direct matches
	// preferred over hop-discovered ones at equal score.
	ranked := make([]domain.RetrievalCandidate, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, *candidates[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si := ranked[i].BlendedScore() + kwBonus[ranked[i].Chunk.ID]
		sj := ranked[j].BlendedScore() + kwBonus[ranked[j].Chunk.ID]
		if si != sj {
			return si > sj
		}
		return ranked[i].HopDistance < ranked[j].HopDistance
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	result := &domain.RetrievalResult{
		Candidates: ranked,
		HopStats:   hopStats,
		Enrichment: enrichmentStats(ranked),
		Duration:   time.Since(start),
	}
	logger.Info("Retrieved %d candidates in %s", len(ranked), result.Duration)
	return result, nil
}

// hydrateBaseline converts vector hits into hop-0 candidates, applying
// the query's metadata filter. Returns the candidate map and the ids
// in store rank order.
func (r *MultiHopRetriever) hydrateBaseline(
	ctx context.Context, hits []driven.VectorHit, filter domain.ChunkFilter,
) (map[string]*domain.RetrievalCandidate, []string, error) {
	var allowed map[string]struct{}
	if !filter.Empty() {
		ids := r.metaCache.Filter(filter)
		allowed = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			allowed[id] = struct{}{}
		}
	}

	candidates := make(map[string]*domain.RetrievalCandidate, len(hits))
	order := make([]string, 0, len(hits))
	for _, hit := range hits {
		if allowed != nil {
			if _, ok := allowed[hit.ChunkID]; !ok {
				continue
			}
		}
		chunk, ok, err := r.lookupChunk(ctx, hit.ChunkID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			// Vector entry outlived its record; skip it.
			continue
		}
		candidates[hit.ChunkID] = &domain.RetrievalCandidate{
			Chunk:           chunk,
			SimilarityScore: hit.Similarity,
			HopDistance:     0,
		}
		order = append(order, hit.ChunkID)
	}
	return candidates, order, nil
}

// expandHop follows relationship edges from the previous hop level's
// chunks. A chunk already present at a smaller hop distance is never
// re-added or re-scored; a chunk discovered for the first time at hop
// h scores the maximum hop-0 similarity among the paths that led to
// it, reduced by boost*h. The penalty is linear in hop distance, so a
// hop-2 chunk pays exactly twice the hop-1 penalty off the same
// baseline score.
func (r *MultiHopRetriever) expandHop(
	ctx context.Context,
	hop int,
	boost float64,
	frontier []string,
	candidates map[string]*domain.RetrievalCandidate,
	origins map[string]float64,
) ([]string, domain.HopLevelStats, error) {
	stats := domain.HopLevelStats{Hop: hop}

	bestOrigin := make(map[string]float64)
	viaArtifacts := make(map[string][]string)
	var discovered []string

	for _, id := range frontier {
		source := candidates[id]
		pathOrigin := origins[id]
		for _, rel := range source.Chunk.Relationships {
			stats.EdgesFollowed++

			target := rel.RelatedChunkID
			if target == "" || target == id {
				continue
			}
			if _, exists := candidates[target]; exists {
				continue
			}

			if _, seen := bestOrigin[target]; !seen {
				discovered = append(discovered, target)
				bestOrigin[target] = pathOrigin
			} else if pathOrigin > bestOrigin[target] {
				bestOrigin[target] = pathOrigin
			}
			viaArtifacts[target] = appendUnique(viaArtifacts[target], source.Chunk.ArtifactID)
		}
	}

	added := make([]string, 0, len(discovered))
	for _, target := range discovered {
		chunk, ok, err := r.lookupChunk(ctx, target)
		if err != nil {
			return nil, stats, err
		}
		if !ok {
			// Edge points at a chunk that was never indexed or has
			// been superseded.
			continue
		}

		score := bestOrigin[target] - boost*float64(hop)
		if score < 0 {
			score = 0
		}
		origins[target] = bestOrigin[target]
		candidates[target] = &domain.RetrievalCandidate{
			Chunk:              chunk,
			SimilarityScore:    score,
			HopDistance:        hop,
			RelatedArtifactIDs: viaArtifacts[target],
		}
		added = append(added, target)
	}
	stats.ChunksDiscovered = len(added)
	return added, stats, nil
}

// lookupChunk resolves a chunk id, preferring the cache and falling
// back to the metadata store.
func (r *MultiHopRetriever) lookupChunk(ctx context.Context, id string) (domain.Chunk, bool, error) {
	if chunk, ok := r.metaCache.Get(id); ok {
		return chunk, true, nil
	}
	chunks, err := r.metaStore.GetByIDs(ctx, []string{id})
	if err != nil {
		return domain.Chunk{}, false, fmt.Errorf("get chunk %s: %w", id, err)
	}
	if len(chunks) == 0 {
		return domain.Chunk{}, false, nil
	}
	return chunks[0], true, nil
}

// keywordBonus computes reciprocal-rank bonuses from the keyword index
// when blending is requested. A missing or failing keyword index
// degrades silently to pure vector ranking.
func (r *MultiHopRetriever) keywordBonus(
	ctx context.Context, query string, limit int, opts domain.RetrieveOptions,
) map[string]float64 {
	if !opts.KeywordBlend || r.keywordIndex == nil {
		return nil
	}

	hits, err := r.keywordIndex.Search(ctx, query, limit)
	if err != nil {
		logger.Warn("Keyword blend unavailable: %v", err)
		return nil
	}

	bonus := make(map[string]float64, len(hits))
	for rank, hit := range hits {
		bonus[hit.ChunkID] = 1.0 / float64(rrfK+rank+1)
	}
	return bonus
}

// enrichmentStats reports the fraction of returned candidates carrying
// enrichment data and their average enrichment score.
func enrichmentStats(candidates []domain.RetrievalCandidate) domain.EnrichmentStats {
	if len(candidates) == 0 {
		return domain.EnrichmentStats{}
	}

	var enriched int
	var total float64
	for _, cand := range candidates {
		if cand.Chunk.Enriched() {
			enriched++
			total += cand.Chunk.EnrichmentScore
		}
	}

	stats := domain.EnrichmentStats{
		EnrichedFraction: float64(enriched) / float64(len(candidates)),
	}
	if enriched > 0 {
		stats.AvgScore = total / float64(enriched)
	}
	return stats
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
