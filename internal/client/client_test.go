package client_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/backend"
	"github.com/raphaelgruber/helix-go/internal/client"
	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/index"
	"github.com/raphaelgruber/helix-go/internal/ingest"
	"github.com/raphaelgruber/helix-go/internal/memory"
	"github.com/raphaelgruber/helix-go/internal/metrics"
	"github.com/raphaelgruber/helix-go/internal/models"
	"github.com/raphaelgruber/helix-go/internal/render"
	"github.com/raphaelgruber/helix-go/internal/server"
	"github.com/raphaelgruber/helix-go/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	dir := t.TempDir()
	embedder := embedding.NewFingerprint(0)
	log := testLogger()

	corpus, err := index.New(filepath.Join(dir, "documents.json"), embedder, log)
	require.NoError(t, err)

	store, err := memory.NewStore(filepath.Join(dir, "memory"), embedder, 0, log)
	require.NoError(t, err)

	pipeline, err := ingest.New(corpus, log)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	chain := backend.NewChain(nil, nil, nil, log)
	svc := service.New(corpus, store, pipeline, chain, metrics.NewCollector(), log)
	renderer := render.NewRenderer(t.TempDir(), log)
	diagrams := render.NewDiagramGenerator(chain, log)

	ts := httptest.NewServer(server.New("test", svc, renderer, diagrams, log).Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL)
}

func TestStatus(t *testing.T) {
	c := newTestClient(t)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", status.Status)
	assert.Equal(t, "Helix", status.Service)
	assert.Contains(t, status.Features, "dynamic_charts")
}

func TestAnalyzeRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	resp, err := c.Analyze(ctx, models.AnalyzeRequest{
		Query:     "tumor mutation profile",
		SessionID: "client-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "client-1", resp.SessionID)
	assert.NotEmpty(t, resp.Result)
	require.NotEmpty(t, resp.Charts)
	assert.NotNil(t, resp.Charts[0].HTML)

	history, err := c.History(ctx, "client-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "tumor mutation profile", history[0].Content.Query)

	require.NoError(t, c.ClearMemory(ctx, "client-1"))

	history, err = c.History(ctx, "client-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnalyzeStreamDeliversOrderedEvents(t *testing.T) {
	c := newTestClient(t)

	var events []models.StreamEvent
	err := c.AnalyzeStream(context.Background(), models.AnalyzeRequest{
		Query:     "protein binding kinetics",
		SessionID: "stream-1",
	}, func(ev models.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, models.EventComplete, last.Type)
	assert.Equal(t, "stream-1", last.SessionID)

	var answer strings.Builder
	for _, ev := range events {
		if ev.Type == models.EventResponse {
			answer.WriteString(ev.Content)
		}
	}
	assert.Contains(t, answer.String(), "Executive Summary")
}

func TestAnalyzeStreamCallerAbort(t *testing.T) {
	c := newTestClient(t)

	abort := errors.New("seen enough")
	err := c.AnalyzeStream(context.Background(), models.AnalyzeRequest{
		Query: "abort early",
	}, func(models.StreamEvent) error {
		return abort
	})
	assert.ErrorIs(t, err, abort)
}

func TestAnalyzeStreamRejectsEmptyQuery(t *testing.T) {
	c := newTestClient(t)

	err := c.AnalyzeStream(context.Background(), models.AnalyzeRequest{},
		func(models.StreamEvent) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestVectorizeAndSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	result, err := c.Vectorize(ctx, "pathways.txt", "MAPK signaling cascades regulate proliferation.", "")
	require.NoError(t, err)
	assert.Equal(t, "indexed", result.Status)
	assert.Equal(t, 1, result.Chunks)

	hits, err := c.Search(ctx, "MAPK signaling", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Content, "MAPK")
}

func TestGenerateChart(t *testing.T) {
	c := newTestClient(t)

	chart, err := c.GenerateChart(context.Background(), models.ChartSpec{
		Type:  models.ChartBar,
		Title: "Expression Levels",
		Data: models.BarData{
			Labels: []models.Label{"BRCA1", "TP53"},
			Values: []float64{4.2, 7.9},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChartBar, chart.Type)
	require.NotNil(t, chart.HTML)
	assert.Contains(t, *chart.HTML, "Expression Levels")
}

func TestGenerateDiagram(t *testing.T) {
	c := newTestClient(t)

	diagram, err := c.GenerateDiagram(context.Background(), "sequencing workflow", "flowchart")
	require.NoError(t, err)
	assert.Equal(t, "flowchart", diagram.DiagramType)
	assert.NotEmpty(t, diagram.MermaidCode)
	assert.True(t, strings.HasPrefix(diagram.RenderURL, "https://mermaid.ink/img/"))
}

func TestStats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Analyze(ctx, models.AnalyzeRequest{Query: "warmup"})
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Helix", stats.Service)
	assert.Equal(t, 1, stats.Index.TotalDocuments)
	assert.Equal(t, 1, stats.Sessions)
	require.NotNil(t, stats.Runtime.Analyze)
	assert.EqualValues(t, 1, stats.Runtime.Analyze.Count)
}

func TestSessions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Analyze(ctx, models.AnalyzeRequest{Query: "first", SessionID: "s1"})
	require.NoError(t, err)
	_, err = c.Analyze(ctx, models.AnalyzeRequest{Query: "second", SessionID: "s2"})
	require.NoError(t, err)

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestServerErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Search(context.Background(), "", 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}
