package domain

import (
	"strings"
	"time"
)

// Chunk represents an indexed fragment of a clinical artifact.
// It is the canonical unit of indexing and retrieval. Chunks are
// immutable once stored: reindexing an artifact supersedes its old
// chunks rather than mutating them.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// ArtifactID links to the source artifact (note, report, letter)
	// this chunk was cut from.
	ArtifactID string

	// PatientID identifies the patient the artifact belongs to.
	PatientID string

	// ArtifactType classifies the source artifact (e.g. "note",
	// "discharge_summary", "lab_report").
	ArtifactType string

	// OccurredAt is the clinical timestamp of the artifact.
	OccurredAt time.Time

	// Author is the clinician who authored the artifact, if known.
	Author string

	// Text is the chunk content.
	Text string

	// CharStart and CharEnd are the character offsets of this chunk
	// within the artifact text.
	CharStart int
	CharEnd   int

	// SourceURL is the original location of the artifact, if any.
	SourceURL string

	// Relationships are edges to related chunks, attached by the
	// upstream enrichment collaborator. Read here, never computed.
	Relationships []Relationship

	// EnrichmentScore is the entity/relationship density annotation
	// from the enrichment collaborator. Zero when not enriched.
	EnrichmentScore float64
}

// Relationship is a directed edge from one chunk to a related chunk.
// Relationship data is produced upstream; the retriever only follows it.
type Relationship struct {
	// RelatedChunkID is the target chunk.
	RelatedChunkID string

	// RelationType names the relation (e.g. "same_encounter",
	// "follows_up", "references").
	RelationType string

	// Weight is the relation strength (0-1).
	Weight float64
}

// Day returns the calendar day key for this chunk, derived from
// OccurredAt truncated to date granularity in UTC.
func (c Chunk) Day() string {
	return c.OccurredAt.UTC().Format("2006-01-02")
}

// Enriched reports whether the enrichment collaborator annotated
// this chunk.
func (c Chunk) Enriched() bool {
	return c.EnrichmentScore > 0 || len(c.Relationships) > 0
}

// Validate checks that the chunk is indexable.
// Chunks with empty or whitespace-only text are rejected.
func (c Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunk
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrInvalidChunk
	}
	return nil
}
