package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/helix-go/internal/backend"
	"github.com/raphaelgruber/helix-go/internal/ingest"
	"github.com/raphaelgruber/helix-go/internal/metrics"
	"github.com/raphaelgruber/helix-go/internal/models"
	"github.com/raphaelgruber/helix-go/internal/parser"
)

// contextStages is what the concurrent retrieval stages produce before the
// backend is called.
type contextStages struct {
	memoryHits []models.MemoryHit
	corpusHits []models.SearchHit
	ingested   []string
}

// Analyze runs one full analysis turn: gather context, call the analysis
// chain, mine charts from the answer, persist the exchange. The chain
// absorbs backend failures, so errors returned here are the caller's
// cancellation or a failing local resource.
func (s *Service) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResult, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	stages, err := s.gatherContext(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.chain.Analyze(ctx, s.backendRequest(req, stages))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAnalysis(metrics.OpAnalyze, time.Since(start), resp.InputTokens, resp.OutputTokens)

	charts := parser.ExtractCharts(resp.AnswerText)

	if err := s.persistExchange(ctx, sessionID, req, resp.AnswerText); err != nil {
		return nil, err
	}

	s.log.Info("analysis complete",
		"session_id", sessionID,
		"model", resp.Model,
		"charts", len(charts),
		"memory_hits", len(stages.memoryHits),
		"corpus_hits", len(stages.corpusHits),
		"ingested_chunks", len(stages.ingested),
	)

	return &models.AnalyzeResult{
		SessionID:     sessionID,
		Result:        resp.AnswerText,
		ThinkingTrace: resp.ThinkingSegments,
		Charts:        charts,
		MemoryContext: stages.memoryHits,
		Model:         resp.Model,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// AnalyzeStream runs one analysis turn and delivers it as an ordered event
// stream: zero or more thinking events, response fragments whose
// concatenation is the full answer, chart events once the answer is
// complete, and exactly one terminal complete event carrying the session
// id. The exchange is persisted after the complete event is handed over;
// a cancelled consumer gets neither the complete event nor persistence.
func (s *Service) AnalyzeStream(ctx context.Context, req models.AnalyzeRequest) (<-chan models.StreamEvent, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	stages, err := s.gatherContext(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}

	events := make(chan models.StreamEvent)
	go func() {
		defer close(events)

		var answer strings.Builder
		start := time.Now()
		err := s.chain.AnalyzeStream(ctx, s.backendRequest(req, stages), func(d backend.Delta) error {
			ev := models.StreamEvent{Type: models.EventResponse, Content: d.Text}
			if d.Kind == backend.DeltaThinking {
				ev.Type = models.EventThinking
			} else {
				answer.WriteString(d.Text)
			}
			return s.send(ctx, events, ev)
		})
		s.metrics.RecordTiming(metrics.OpAnalyzeStream, time.Since(start))
		if err != nil {
			// The chain only surfaces cancellation and emit errors; both
			// mean the consumer is gone.
			s.log.Warn("analysis stream aborted", "session_id", sessionID, "error", err)
			return
		}

		for _, spec := range parser.ExtractCharts(answer.String()) {
			if err := s.send(ctx, events, models.StreamEvent{Type: models.EventChart, Chart: &spec}); err != nil {
				return
			}
		}

		if err := s.send(ctx, events, models.StreamEvent{Type: models.EventComplete, SessionID: sessionID}); err != nil {
			return
		}

		// The consumer has the complete event; a disconnect from here on
		// must not lose the exchange.
		if err := s.persistExchange(context.WithoutCancel(ctx), sessionID, req, answer.String()); err != nil {
			s.log.Error("streamed exchange not persisted", "session_id", sessionID, "error", err)
		}
	}()

	return events, nil
}

func (s *Service) send(ctx context.Context, events chan<- models.StreamEvent, ev models.StreamEvent) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// gatherContext runs the three retrieval stages concurrently: session
// memory recall, corpus search, and ingestion of document attachments.
// Any stage failing fails the turn.
func (s *Service) gatherContext(ctx context.Context, sessionID string, req models.AnalyzeRequest) (contextStages, error) {
	var (
		stages                       contextStages
		memErr, searchErr, ingestErr error
		wg                           sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		stages.memoryHits, memErr = s.memory.Retrieve(ctx, sessionID, req.Query, memoryContextLimit)
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		stages.corpusHits, searchErr = s.corpus.Search(ctx, req.Query, corpusContextLimit, "")
		if searchErr == nil {
			s.metrics.RecordTiming(metrics.OpIndexSearch, time.Since(start))
		}
	}()
	go func() {
		defer wg.Done()
		stages.ingested, ingestErr = s.ingestAttachments(ctx, sessionID, req.Attachments)
	}()
	wg.Wait()

	if memErr != nil {
		return contextStages{}, fmt.Errorf("recall session memory: %w", memErr)
	}
	if searchErr != nil {
		return contextStages{}, fmt.Errorf("search corpus: %w", searchErr)
	}
	if ingestErr != nil {
		return contextStages{}, ingestErr
	}
	return stages, nil
}

// ingestAttachments indexes the text of document attachments so this and
// later queries can retrieve them. Images stay out of the corpus.
func (s *Service) ingestAttachments(ctx context.Context, sessionID string, attachments []models.Attachment) ([]string, error) {
	var docs []ingest.Document
	for _, att := range attachments {
		if att.Kind == models.AttachmentImage || att.Text == "" {
			continue
		}
		docs = append(docs, ingest.Document{
			Filename:  att.Filename,
			Content:   att.Text,
			SessionID: sessionID,
		})
	}
	if len(docs) == 0 {
		return nil, nil
	}

	start := time.Now()
	ids, err := s.pipeline.IngestAll(ctx, docs)
	if err != nil {
		return ids, fmt.Errorf("ingest attachments: %w", err)
	}
	s.metrics.RecordTiming(metrics.OpIngest, time.Since(start))
	return ids, nil
}

func (s *Service) backendRequest(req models.AnalyzeRequest, stages contextStages) backend.Request {
	memories := make([]string, len(stages.memoryHits))
	for i, hit := range stages.memoryHits {
		memories[i] = fmt.Sprintf("%s: %s", hit.Content.Query, hit.Content.Result)
	}

	snippets := make([]string, len(stages.corpusHits))
	for i, hit := range stages.corpusHits {
		snippets[i] = hit.Content
	}

	thinking := req.ThinkingLevel
	if thinking == "" {
		thinking = s.thinking
	}

	return backend.Request{
		Query:          req.Query,
		MemorySnippets: memories,
		CorpusSnippets: snippets,
		Attachments:    req.Attachments,
		ThinkingLevel:  thinking,
	}
}

// persistExchange stores the exchange in the session memory and the shared
// corpus. Failures propagate: losing memory silently would corrupt every
// later turn of the session.
func (s *Service) persistExchange(ctx context.Context, sessionID string, req models.AnalyzeRequest, answer string) error {
	record := models.MemoryRecord{
		Query:     req.Query,
		Result:    answer,
		Files:     attachmentNames(req.Attachments),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.memory.Store(ctx, sessionID, record); err != nil {
		return fmt.Errorf("store session memory: %w", err)
	}

	start := time.Now()
	content := fmt.Sprintf("Query: %s\nResult: %s", req.Query, answer)
	if _, err := s.corpus.Add(ctx, content, sessionID, nil); err != nil {
		return fmt.Errorf("index exchange: %w", err)
	}
	s.metrics.RecordTiming(metrics.OpIndexAdd, time.Since(start))
	return nil
}

func attachmentNames(attachments []models.Attachment) []string {
	if len(attachments) == 0 {
		return nil
	}
	names := make([]string, len(attachments))
	for i, att := range attachments {
		names[i] = att.Filename
	}
	return names
}
