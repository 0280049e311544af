package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit   int
	searchSession string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Similarity-search the corpus without analysis",
	Long: `Search the indexed corpus by similarity and print the raw hits.

Returns scored document chunks without running the analysis backend.
Use 'ask' for a synthesized answer.

Examples:
  helix search "kinase inhibition"
  helix search "BRCA1 variants" --limit 10
  helix search "assay protocol" --session 2f6c1b0a`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
	searchCmd.Flags().StringVarP(&searchSession, "session", "s", "", "restrict to one session's documents")
}

func runSearch(cmd *cobra.Command, args []string) error {
	hits, err := api.Search(context.Background(), args[0], searchLimit, searchSession)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(hits))
	for i, hit := range hits {
		oneLine := strings.Join(strings.Fields(hit.Content), " ")
		fmt.Printf("%d. [%.3f] %s\n", i+1, hit.Score, snippet(oneLine, 100))
		if verbose {
			fmt.Printf("   id: %s\n", hit.ID)
			if hit.SessionID != "" {
				fmt.Printf("   session: %s\n", hit.SessionID)
			}
		}
		fmt.Println()
	}

	return nil
}
