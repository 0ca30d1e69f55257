package domain

import "time"

// DefaultRelationshipBoost is the per-hop score penalty applied to
// chunks discovered via relationship expansion. Each hop discounts
// the inherited similarity score by this amount.
//
// The value is a tuned heuristic, not a product requirement; it is
// exposed as an option so callers can revisit it.
const DefaultRelationshipBoost = 0.3

// MaxHopLimit is the largest supported hop expansion depth.
const MaxHopLimit = 2

// RetrieveOptions configures a retrieval query.
type RetrieveOptions struct {
	// EnableMultiHop turns on relationship expansion. When false the
	// retriever behaves as a pure similarity search.
	EnableMultiHop bool

	// MaxHops is the expansion depth (0, 1 or 2). With 0 the result
	// is identical to a pure similarity search.
	MaxHops int

	// RelationshipBoost is the linear hop-distance penalty. A chunk
	// first discovered at hop h scores its best path's hop-0
	// similarity minus RelationshipBoost*h. Zero means
	// DefaultRelationshipBoost.
	RelationshipBoost float64

	// UseEnrichedText folds enrichment annotations additively into
	// ranking for candidates that carry them.
	UseEnrichedText bool

	// KeywordBlend mixes keyword-index hits into ranking as a
	// secondary signal. Off by default so multi-hop results stay
	// comparable with pure vector search.
	KeywordBlend bool
}

// Boost returns the effective hop penalty.
func (o RetrieveOptions) Boost() float64 {
	if o.RelationshipBoost == 0 {
		return DefaultRelationshipBoost
	}
	return o.RelationshipBoost
}

// RetrievalCandidate is a scored chunk produced by a retrieval query.
// Candidates are transient: created per query, never persisted.
type RetrievalCandidate struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// SimilarityScore is the cosine similarity from the vector index,
	// or the inherited hop score for expansion-discovered chunks.
	SimilarityScore float64

	// HopDistance is 0 for direct matches, 1 or 2 for chunks reached
	// by relationship expansion. A candidate reached by multiple paths
	// keeps its minimum hop distance.
	HopDistance int

	// EnrichmentScore is the additive enrichment signal, set only when
	// retrieval runs with UseEnrichedText.
	EnrichmentScore float64

	// RelatedArtifactIDs lists artifacts of the chunks this candidate
	// was discovered through, for provenance display.
	RelatedArtifactIDs []string
}

// BlendedScore is the ranking key: similarity plus the additive
// enrichment signal.
func (c RetrievalCandidate) BlendedScore() float64 {
	return c.SimilarityScore + c.EnrichmentScore
}

// HopLevelStats reports expansion work done at one hop level.
type HopLevelStats struct {
	// Hop is the level (1 or 2).
	Hop int

	// ChunksDiscovered is how many chunks were first seen at this level.
	ChunksDiscovered int

	// EdgesFollowed is how many relationship edges were examined.
	EdgesFollowed int
}

// EnrichmentStats reports enrichment coverage over returned candidates.
type EnrichmentStats struct {
	// EnrichedFraction is the fraction of returned candidates carrying
	// enrichment data.
	EnrichedFraction float64

	// AvgScore is the mean enrichment score over enriched candidates.
	AvgScore float64
}

// RetrievalResult is the full response of a retrieval query.
type RetrievalResult struct {
	// Candidates are the top-k blended-score-ranked candidates.
	Candidates []RetrievalCandidate

	// HopStats has one entry per executed hop level.
	HopStats []HopLevelStats

	// Enrichment summarises enrichment coverage of Candidates.
	Enrichment EnrichmentStats

	// Duration is the wall-clock retrieval time.
	Duration time.Duration
}
