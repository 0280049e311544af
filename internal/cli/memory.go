package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/memory"
)

var (
	memoryHistoryLimit int
	memorySweepHours   int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage session memory",
	Long: `Inspect and manage the per-session memory the server grounds its
answers on.

list, history, clear, and patterns talk to the server; sweep operates
directly on the local data directory.`,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runMemoryList,
}

var memoryHistoryCmd = &cobra.Command{
	Use:   "history <session>",
	Short: "Show a session's exchanges, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryHistory,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear <session>",
	Short: "Delete a session's memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryClear,
}

var memoryPatternsCmd = &cobra.Command{
	Use:   "patterns <session>",
	Short: "Summarize a session's query patterns",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryPatterns,
}

var memorySweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired sessions from local memory",
	Long: `Delete local session files whose last update is older than the
expiry window.

Sweep works on the data directory directly and does not call the server.
The server runs the same sweep once at startup.

Examples:
  helix memory sweep
  helix memory sweep --hours 48`,
	Args: cobra.NoArgs,
	RunE: runMemorySweep,
}

func init() {
	memoryHistoryCmd.Flags().IntVarP(&memoryHistoryLimit, "limit", "n", 10, "max exchanges to show")
	memorySweepCmd.Flags().IntVar(&memorySweepHours, "hours", 0, "expiry window in hours (default SESSION_EXPIRY_HOURS)")

	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryHistoryCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	memoryCmd.AddCommand(memoryPatternsCmd)
	memoryCmd.AddCommand(memorySweepCmd)
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	sessions, err := api.Sessions(context.Background())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	fmt.Printf("Sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		updated := "never"
		if s.LastUpdated != nil {
			updated = s.LastUpdated.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("  %-36s  %3d memories   last updated %s\n", s.SessionID, s.MemoryCount, updated)
	}
	return nil
}

func runMemoryHistory(cmd *cobra.Command, args []string) error {
	entries, err := api.History(context.Background(), args[0], memoryHistoryLimit)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No memories for this session.")
		return nil
	}

	for i, entry := range entries {
		fmt.Printf("%d. [%s] %s\n", i+1,
			entry.Timestamp.Local().Format("2006-01-02 15:04"),
			snippet(entry.Content.Query, 80))
		result := strings.Join(strings.Fields(entry.Content.Result), " ")
		fmt.Printf("   %s\n", snippet(result, 120))
		if len(entry.Content.Files) > 0 {
			fmt.Printf("   Files: %s\n", strings.Join(entry.Content.Files, ", "))
		}
		fmt.Println()
	}
	return nil
}

func runMemoryClear(cmd *cobra.Command, args []string) error {
	if err := api.ClearMemory(context.Background(), args[0]); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	fmt.Printf("Cleared session %s.\n", args[0])
	return nil
}

func runMemoryPatterns(cmd *cobra.Command, args []string) error {
	patterns, err := api.Patterns(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("fetch patterns: %w", err)
	}

	fmt.Printf("Total queries:    %d\n", patterns.TotalQueries)
	fmt.Printf("Session duration: %s\n", patterns.SessionDuration)
	fmt.Printf("Insights:         %s\n", patterns.Insights)
	if len(patterns.Patterns) > 0 {
		fmt.Println("Patterns:")
		for _, p := range patterns.Patterns {
			fmt.Printf("  • %s\n", p)
		}
	}
	return nil
}

func runMemorySweep(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	embedder, err := embedding.New(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	store, err := memory.NewStore(cfg.MemoryDir(), embedder, cfg.MaxMemoryItems, log)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}

	expiry := cfg.SessionExpiry()
	if memorySweepHours > 0 {
		expiry = time.Duration(memorySweepHours) * time.Hour
	}

	n, err := store.SweepExpired(time.Now().UTC(), expiry)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	fmt.Printf("Removed %d expired sessions (older than %s).\n", n, expiry)
	return nil
}
