package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

var (
	searchLimit    int
	searchHops     int
	searchBoost    float64
	searchEnriched bool
	searchKeyword  bool
	searchPatient  string
	searchArtifact string
	searchType     string
	searchDay      string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks",
	Long: `Runs a similarity search over the index. With --hops the candidate
set is expanded by following chunk relationships, discounting each
hop by the relationship boost.

Examples:
  chartdex search "chest pain on exertion"
  chartdex search "metformin dosage" --hops 2 --patient p42
  chartdex search "discharge summary" --type note --day 2024-01-15 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().IntVar(&searchHops, "hops", 0, "relationship expansion depth (0-2)")
	searchCmd.Flags().Float64Var(&searchBoost, "boost", 0, "per-hop score penalty (default 0.3)")
	searchCmd.Flags().BoolVar(&searchEnriched, "enriched", false, "fold enrichment scores into ranking")
	searchCmd.Flags().BoolVar(&searchKeyword, "keyword", false, "blend keyword-index hits into ranking")
	searchCmd.Flags().StringVar(&searchPatient, "patient", "", "restrict to a patient id")
	searchCmd.Flags().StringVar(&searchArtifact, "artifact", "", "restrict to an artifact id")
	searchCmd.Flags().StringVar(&searchType, "type", "", "restrict to an artifact type")
	searchCmd.Flags().StringVar(&searchDay, "day", "", "restrict to a day (YYYY-MM-DD)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit the result as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retriever == nil {
		return errors.New("retriever not configured")
	}
	if searchHops < 0 || searchHops > domain.MaxHopLimit {
		return fmt.Errorf("hops must be between 0 and %d", domain.MaxHopLimit)
	}

	query := domain.ParsedQuery{
		Text: strings.Join(args, " "),
		Filter: domain.ChunkFilter{
			PatientID:    searchPatient,
			ArtifactID:   searchArtifact,
			ArtifactType: searchType,
			Day:          searchDay,
		},
	}
	opts := domain.RetrieveOptions{
		EnableMultiHop:    searchHops > 0,
		MaxHops:           searchHops,
		RelationshipBoost: searchBoost,
		UseEnrichedText:   searchEnriched,
		KeywordBlend:      searchKeyword,
	}

	result, err := retriever.Retrieve(cmd.Context(), query, searchLimit, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printSearchJSON(cmd, result)
	}
	printSearchText(cmd, result)
	return nil
}

func printSearchText(cmd *cobra.Command, result *domain.RetrievalResult) {
	if len(result.Candidates) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Printf("Found %d results in %s\n\n", len(result.Candidates), result.Duration.Round(time.Millisecond))

	for i, c := range result.Candidates {
		cmd.Printf("%d. [%.4f] %s (%s, %s)\n", i+1, c.BlendedScore(), c.Chunk.ID, c.Chunk.ArtifactID, c.Chunk.ArtifactType)
		if c.HopDistance > 0 {
			cmd.Printf("   hop %d via %s\n", c.HopDistance, strings.Join(c.RelatedArtifactIDs, ", "))
		}
		cmd.Printf("   %s\n", snippet(c.Chunk.Text, 120))
	}

	for _, hs := range result.HopStats {
		cmd.Printf("\nhop %d: %d chunks discovered, %d edges followed", hs.Hop, hs.ChunksDiscovered, hs.EdgesFollowed)
	}
	if len(result.HopStats) > 0 {
		cmd.Println()
	}
	if result.Enrichment.EnrichedFraction > 0 {
		cmd.Printf("enriched: %.0f%% of results (avg score %.2f)\n",
			result.Enrichment.EnrichedFraction*100, result.Enrichment.AvgScore)
	}
}

func printSearchJSON(cmd *cobra.Command, result *domain.RetrievalResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// snippet truncates text to at most n runes on a single line.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
