package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix-go/internal/backend"
	"github.com/raphaelgruber/helix-go/internal/config"
	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/index"
	"github.com/raphaelgruber/helix-go/internal/ingest"
	"github.com/raphaelgruber/helix-go/internal/memory"
	"github.com/raphaelgruber/helix-go/internal/metrics"
	"github.com/raphaelgruber/helix-go/internal/render"
	"github.com/raphaelgruber/helix-go/internal/server"
	"github.com/raphaelgruber/helix-go/internal/service"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Helix server",
	Long: `Run the Helix HTTP server in the foreground.

The server exposes the analyze, memory, vectorize, and chart endpoints
and shuts down cleanly on SIGINT or SIGTERM.

Examples:
  helix serve
  helix serve --addr :9000
  HELIX_BACKEND=placeholder helix serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HELIX_ADDR or :8000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("preparing data directories: %w", err)
	}

	log, closeLog := config.SetupLogger(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.New(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	collector := metrics.NewCollector()
	metered := embedding.NewMetered(embedder, collector)

	corpus, err := index.New(cfg.CorpusFile(), metered, log)
	if err != nil {
		return fmt.Errorf("opening corpus index: %w", err)
	}

	store, err := memory.NewStore(cfg.MemoryDir(), metered, cfg.MaxMemoryItems, log)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}
	if _, err := store.SweepExpired(time.Now().UTC(), cfg.SessionExpiry()); err != nil {
		log.Warn("session sweep failed", "error", err)
	}

	pipeline, err := ingest.New(corpus, log,
		ingest.WithChunkSize(cfg.ChunkSize),
		ingest.WithPoolSize(cfg.IngestWorkers))
	if err != nil {
		return fmt.Errorf("creating ingest pipeline: %w", err)
	}
	defer pipeline.Release()

	chain, err := backend.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating analysis backend: %w", err)
	}

	svc := service.New(corpus, store, pipeline, chain, collector, log,
		service.WithThinkingLevel(cfg.ThinkingLevel))
	renderer := render.NewRenderer(cfg.ChartsDir(), log)
	diagrams := render.NewDiagramGenerator(chain, log)

	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	return server.New(Version, svc, renderer, diagrams, log).Run(ctx, addr)
}
