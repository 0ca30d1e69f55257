package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

var indexFile string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a batch of chunks",
	Long: `Indexes chunks from a JSON file through the full pipeline:
validate, embed, store vectors, store metadata, keyword index,
update cache, persist.

The file holds an array of chunk objects:

  [{"id": "c1", "artifact_id": "a1", "patient_id": "p1",
    "artifact_type": "note", "occurred_at": "2024-01-15T09:30:00Z",
    "author": "dr-lee", "text": "...", "char_start": 0, "char_end": 240,
    "source_url": "", "enrichment_score": 0,
    "relationships": [{"related_chunk_id": "c2",
                       "relation_type": "same_encounter", "weight": 0.8}]}]

Chunks without an id are assigned one.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexFile, "file", "f", "", "JSON file of chunks to index (required)")
	_ = indexCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(indexCmd)
}

// chunkInput is the JSON wire form of a chunk.
type chunkInput struct {
	ID              string              `json:"id"`
	ArtifactID      string              `json:"artifact_id"`
	PatientID       string              `json:"patient_id"`
	ArtifactType    string              `json:"artifact_type"`
	OccurredAt      time.Time           `json:"occurred_at"`
	Author          string              `json:"author"`
	Text            string              `json:"text"`
	CharStart       int                 `json:"char_start"`
	CharEnd         int                 `json:"char_end"`
	SourceURL       string              `json:"source_url"`
	Relationships   []relationshipInput `json:"relationships"`
	EnrichmentScore float64             `json:"enrichment_score"`
}

type relationshipInput struct {
	RelatedChunkID string  `json:"related_chunk_id"`
	RelationType   string  `json:"relation_type"`
	Weight         float64 `json:"weight"`
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexer == nil {
		return errors.New("indexer not configured")
	}

	chunks, err := loadChunksFile(indexFile)
	if err != nil {
		return err
	}

	result := indexer.Index(cmd.Context(), chunks)
	printIndexingResult(cmd, result)
	return nil
}

// loadChunksFile reads and converts the JSON chunk file.
func loadChunksFile(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}

	var inputs []chunkInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse chunks file: %w", err)
	}

	chunks := make([]domain.Chunk, len(inputs))
	for i, in := range inputs {
		if in.ID == "" {
			in.ID = uuid.New().String()
		}
		rels := make([]domain.Relationship, len(in.Relationships))
		for j, rel := range in.Relationships {
			rels[j] = domain.Relationship{
				RelatedChunkID: rel.RelatedChunkID,
				RelationType:   rel.RelationType,
				Weight:         rel.Weight,
			}
		}
		chunks[i] = domain.Chunk{
			ID:              in.ID,
			ArtifactID:      in.ArtifactID,
			PatientID:       in.PatientID,
			ArtifactType:    in.ArtifactType,
			OccurredAt:      in.OccurredAt,
			Author:          in.Author,
			Text:            in.Text,
			CharStart:       in.CharStart,
			CharEnd:         in.CharEnd,
			SourceURL:       in.SourceURL,
			Relationships:   rels,
			EnrichmentScore: in.EnrichmentScore,
		}
	}
	return chunks, nil
}

// printIndexingResult renders the pipeline report.
func printIndexingResult(cmd *cobra.Command, result domain.IndexingResult) {
	status := "ok"
	if !result.Success {
		status = "completed with errors"
	}
	cmd.Printf("Indexing %s: %d chunks, %d embeddings in %s\n",
		status, result.ChunksIndexed, result.EmbeddingsGenerated, result.Duration.Round(time.Millisecond))

	for _, indexErr := range result.Errors {
		cmd.Printf("  [%s] %s: %s\n", indexErr.Stage, indexErr.ItemID, indexErr.Message)
	}
}
