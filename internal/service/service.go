// Package service orchestrates analysis turns: it recalls session memory,
// searches the shared corpus, ingests uploaded documents, drives the
// analysis chain, and persists every exchange for future turns.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/helix-go/internal/backend"
	"github.com/raphaelgruber/helix-go/internal/index"
	"github.com/raphaelgruber/helix-go/internal/ingest"
	"github.com/raphaelgruber/helix-go/internal/memory"
	"github.com/raphaelgruber/helix-go/internal/metrics"
	"github.com/raphaelgruber/helix-go/internal/models"
)

const (
	// memoryContextLimit is how many past exchanges ground a new query.
	memoryContextLimit = 5

	// corpusContextLimit is how many corpus hits ground a new query. The
	// corpus search is deliberately unscoped so knowledge uploaded in one
	// session benefits every other.
	corpusContextLimit = 3

	defaultThinkingLevel = "high"
)

// Service wires the retrieval, ingestion, and analysis stages together.
type Service struct {
	corpus   *index.Collection
	memory   *memory.Store
	pipeline *ingest.Pipeline
	chain    backend.Analyzer
	metrics  *metrics.Collector
	log      *slog.Logger

	thinking string
}

// Option configures a Service.
type Option func(*Service)

// WithThinkingLevel sets the thinking level used when a request does not
// carry one.
func WithThinkingLevel(level string) Option {
	return func(s *Service) {
		if level != "" {
			s.thinking = level
		}
	}
}

// New creates the orchestration service.
func New(corpus *index.Collection, mem *memory.Store, pipeline *ingest.Pipeline,
	chain backend.Analyzer, collector *metrics.Collector, log *slog.Logger, opts ...Option) *Service {

	if collector == nil {
		collector = metrics.NewCollector()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		corpus:   corpus,
		memory:   mem,
		pipeline: pipeline,
		chain:    chain,
		metrics:  collector,
		log:      log,
		thinking: defaultThinkingLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model names the analysis model currently first in the chain.
func (s *Service) Model() string {
	return s.chain.Model()
}

// VectorizeText chunks and indexes one document outside an analysis turn.
func (s *Service) VectorizeText(ctx context.Context, filename, content, sessionID string) ([]string, error) {
	start := time.Now()
	ids, err := s.pipeline.IngestDocument(ctx, ingest.Document{
		Filename:  filename,
		Content:   content,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest document: %w", err)
	}
	s.metrics.RecordTiming(metrics.OpIngest, time.Since(start))
	return ids, nil
}

// SearchCorpus runs a similarity search over the shared corpus. An empty
// sessionScope searches everything.
func (s *Service) SearchCorpus(ctx context.Context, query string, limit int, sessionScope string) ([]models.SearchHit, error) {
	start := time.Now()
	hits, err := s.corpus.Search(ctx, query, limit, sessionScope)
	if err != nil {
		return nil, fmt.Errorf("search corpus: %w", err)
	}
	s.metrics.RecordTiming(metrics.OpIndexSearch, time.Since(start))
	return hits, nil
}

// History returns the most recent exchanges of a session in order.
func (s *Service) History(sessionID string, limit int) ([]models.HistoryEntry, error) {
	return s.memory.History(sessionID, limit)
}

// ClearSession drops the session's memory. Clearing an unknown session
// succeeds.
func (s *Service) ClearSession(sessionID string) error {
	return s.memory.Clear(sessionID)
}

// Sessions lists all stored sessions.
func (s *Service) Sessions() ([]models.SessionInfo, error) {
	return s.memory.Sessions()
}

// Patterns summarizes what a session has been asking about.
func (s *Service) Patterns(sessionID string) (models.LearningPatterns, error) {
	return s.memory.Patterns(sessionID)
}

// SweepSessions removes sessions idle longer than expiry.
func (s *Service) SweepSessions(expiry time.Duration) (int, error) {
	return s.memory.SweepExpired(time.Now().UTC(), expiry)
}

// IndexStats summarizes the corpus.
func (s *Service) IndexStats() models.IndexStats {
	return s.corpus.Stats()
}

// MetricsSnapshot returns the current runtime statistics.
func (s *Service) MetricsSnapshot() metrics.Snapshot {
	return s.metrics.Snapshot()
}
