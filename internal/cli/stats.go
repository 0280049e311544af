package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show corpus, session, and runtime statistics for the server.

Runtime statistics are in-memory and reset when the server restarts.

Examples:
  helix stats
  helix stats -v
  helix stats --endpoint http://helix.lab:8000`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := api.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Printf("%s %s  model %s\n", stats.Service, stats.Version, stats.Model)
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Corpus: %d documents (%s, %d dims)\n",
		stats.Index.TotalDocuments, stats.Index.EmbeddingModel, stats.Index.EmbeddingDim)
	fmt.Printf("Sessions: %d\n", stats.Sessions)
	if verbose && len(stats.Index.Sessions) > 0 {
		fmt.Println("Documents per scope:")
		for id, n := range stats.Index.Sessions {
			scope := id
			if scope == "" {
				scope = "(corpus-wide)"
			}
			fmt.Printf("  %-36s %d\n", scope, n)
		}
	}
	fmt.Println()

	printRuntime(stats.Runtime)
	return nil
}

// printRuntime displays server runtime statistics.
func printRuntime(rt metrics.Snapshot) {
	fmt.Printf("Runtime Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", rt.UptimeSeconds)

	if rt.Embed != nil {
		fmt.Printf("\nEmbeddings:\n")
		printOpStats(rt.Embed)
	}

	if rt.IndexAdd != nil {
		fmt.Printf("\nIndex Add:\n")
		printOpStats(rt.IndexAdd)
	}

	if rt.IndexSearch != nil {
		fmt.Printf("\nIndex Search:\n")
		printOpStats(rt.IndexSearch)
	}

	if rt.Ingest != nil {
		fmt.Printf("\nIngest:\n")
		printOpStats(rt.Ingest)
	}

	if rt.Analyze != nil {
		fmt.Printf("\nAnalyze:\n")
		printOpStats(rt.Analyze)
		printTokenStats(rt.Analyze)
	}

	if rt.AnalyzeStream != nil {
		fmt.Printf("\nAnalyze Stream:\n")
		printOpStats(rt.AnalyzeStream)
		printTokenStats(rt.AnalyzeStream)
	}

	if rt.RenderChart != nil {
		fmt.Printf("\nChart Render:\n")
		printOpStats(rt.RenderChart)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Printf(", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Println()

	fmt.Printf("  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Printf(", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Println()
}
