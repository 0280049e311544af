// Package main provides the standalone Helix server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

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

const version = "0.1.0"

func main() {
	addr := flag.String("addr", "", "listen address (default HELIX_ADDR or :8000)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg)
	defer cleanup()

	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("failed to prepare data directories", "error", err)
		os.Exit(1)
	}

	logger.Info("helix starting",
		"version", version,
		"addr", cfg.Addr,
		"backend", cfg.Backend,
		"embed_provider", cfg.EmbedProvider,
		"data_dir", cfg.DataDir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Embedding, with per-call metrics
	embedder, err := embedding.New(cfg)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	collector := metrics.NewCollector()
	metered := embedding.NewMetered(embedder, collector)

	// Corpus index and session memory
	corpus, err := index.New(cfg.CorpusFile(), metered, logger)
	if err != nil {
		logger.Error("failed to open corpus index", "error", err)
		os.Exit(1)
	}
	store, err := memory.NewStore(cfg.MemoryDir(), metered, cfg.MaxMemoryItems, logger)
	if err != nil {
		logger.Error("failed to open memory store", "error", err)
		os.Exit(1)
	}
	if _, err := store.SweepExpired(time.Now().UTC(), cfg.SessionExpiry()); err != nil {
		logger.Warn("session sweep failed", "error", err)
	}

	// Ingestion pipeline
	pipeline, err := ingest.New(corpus, logger,
		ingest.WithChunkSize(cfg.ChunkSize),
		ingest.WithPoolSize(cfg.IngestWorkers))
	if err != nil {
		logger.Error("failed to create ingest pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Release()

	// Analysis backend chain
	chain, err := backend.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create analysis backend", "error", err)
		os.Exit(1)
	}

	svc := service.New(corpus, store, pipeline, chain, collector, logger,
		service.WithThinkingLevel(cfg.ThinkingLevel))
	renderer := render.NewRenderer(cfg.ChartsDir(), logger)
	diagrams := render.NewDiagramGenerator(chain, logger)

	if err := server.New(version, svc, renderer, diagrams, logger).Run(ctx, cfg.Addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
