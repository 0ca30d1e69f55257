package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

var reindexFile string

var reindexCmd = &cobra.Command{
	Use:   "reindex [artifact-id]",
	Short: "Supersede all chunks of an artifact",
	Long: `Deletes the artifact's current chunks and re-runs the full
pipeline. With --file the replacement chunks come from a JSON file;
without it the stored chunks are re-embedded in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().StringVarP(&reindexFile, "file", "f", "", "JSON file of replacement chunks")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if indexer == nil {
		return errors.New("indexer not configured")
	}
	artifactID := args[0]

	var chunks []domain.Chunk
	if reindexFile != "" {
		var err error
		chunks, err = loadChunksFile(reindexFile)
		if err != nil {
			return err
		}
	}

	result, err := indexer.ReindexArtifact(cmd.Context(), artifactID, chunks)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("artifact %s is not indexed", artifactID)
		}
		return fmt.Errorf("reindex failed: %w", err)
	}

	printIndexingResult(cmd, result)
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete [artifact-id]",
	Short: "Remove all chunks of an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if indexer == nil {
			return errors.New("indexer not configured")
		}

		deleted, err := indexer.DeleteArtifact(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("artifact %s is not indexed", args[0])
			}
			return fmt.Errorf("delete failed: %w", err)
		}

		cmd.Printf("Deleted %d chunks for artifact %s\n", deleted, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
