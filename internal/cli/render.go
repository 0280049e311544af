package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/models"
	"github.com/raphaelgruber/helix-go/internal/render"
)

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render <spec.json>",
	Short: "Render a chart specification to HTML",
	Long: `Render a chart specification file to a standalone HTML artifact.

The spec file carries the same JSON shape analysis answers embed in their
fenced chart blocks: type, title, data, and optional insights. Rendering
is local and needs no server.

Examples:
  helix render growth.json
  helix render growth.json --out ./charts`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "artifact directory (default <data>/charts)")
}

func runRender(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read spec: %w", err)
	}

	var spec models.ChartSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parse spec: %w", err)
	}

	dir := renderOut
	if dir == "" {
		dir = cfg.ChartsDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	chart := render.NewRenderer(dir, log).Chart(spec)
	if chart.Error != "" {
		return fmt.Errorf("render: %s", chart.Error)
	}
	if chart.File == "" {
		return fmt.Errorf("render: no artifact written")
	}

	fmt.Printf("Rendered %s chart %q -> %s\n", chart.Type, chart.Title, chart.File)
	return nil
}
