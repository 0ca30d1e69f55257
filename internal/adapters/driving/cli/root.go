// Package cli provides the cobra command tree driving the indexing
// pipeline and retriever.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/chartdex/internal/core/ports/driving"
	"github.com/custodia-labs/chartdex/internal/logger"
)

// version is the build version, overridable at link time.
var version = "dev"

// Injected core services. main wires these before Execute.
var (
	indexer   driving.Indexer
	retriever driving.Retriever
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "chartdex",
	Short: "Clinical chunk indexing and multi-hop retrieval",
	Long: `chartdex indexes clinical text chunks into a searchable form and
answers relevance queries by combining vector similarity search with
relationship-based expansion and metadata filtering.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// SetServices injects the core services. Must be called before Execute.
func SetServices(i driving.Indexer, r driving.Retriever) {
	indexer = i
	retriever = r
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
