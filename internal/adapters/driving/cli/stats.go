package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if indexer == nil {
			return errors.New("indexer not configured")
		}

		stats := indexer.Stats()
		cmd.Printf("Chunks:         %d\n", stats.TotalChunks)
		cmd.Printf("Patients:       %d\n", stats.Patients)
		cmd.Printf("Artifacts:      %d\n", stats.Artifacts)
		cmd.Printf("Artifact types: %d\n", stats.ArtifactTypes)
		cmd.Printf("Days:           %d\n", stats.Days)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
