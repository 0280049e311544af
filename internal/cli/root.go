// Package cli provides the command-line interface for Helix.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/client"
	"github.com/raphaelgruber/helix-go/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose  bool
	endpoint string

	// Global config and API client
	cfg config.Config
	api *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "helix",
	Short: "Research analysis pipeline",
	Long: `Helix is a research analysis pipeline: multimodal document analysis
grounded on session memory and a similarity-searched corpus, with chart
generation built in.

Most commands talk to a running helix-server (see --endpoint); 'serve'
runs the server in-process, and 'render' and 'memory sweep' operate on
local data directly.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		api = client.New(endpoint)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "server URL (default HELIX_ENDPOINT or http://localhost:8000)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// snippet shortens s to at most n runes for single-line display.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
