package render_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/backend"
	"github.com/raphaelgruber/helix-go/internal/render"
)

type stubAnalyzer struct {
	answer      string
	err         error
	gotQuery    string
	gotThinking string
}

func (s *stubAnalyzer) Analyze(_ context.Context, req backend.Request) (*backend.Response, error) {
	s.gotQuery = req.Query
	s.gotThinking = req.ThinkingLevel
	if s.err != nil {
		return nil, s.err
	}
	return &backend.Response{AnswerText: s.answer, Model: "stub"}, nil
}

func (s *stubAnalyzer) AnalyzeStream(ctx context.Context, req backend.Request, emit func(backend.Delta) error) error {
	resp, err := s.Analyze(ctx, req)
	if err != nil {
		return err
	}
	return emit(backend.Delta{Kind: backend.DeltaText, Text: resp.AnswerText})
}

func (s *stubAnalyzer) Model() string { return "stub" }

func TestGenerateFromBackend(t *testing.T) {
	stub := &stubAnalyzer{answer: "```mermaid\nflowchart TD\n    A[Sample] --> B[Sequencing]\n```"}
	g := render.NewDiagramGenerator(stub, testLogger())

	d := g.Generate(context.Background(), "sequencing workflow", "flowchart")

	assert.Equal(t, "flowchart", d.DiagramType)
	assert.Equal(t, "sequencing workflow", d.Description)
	assert.Equal(t, "flowchart TD\n    A[Sample] --> B[Sequencing]", d.MermaidCode)

	assert.Contains(t, stub.gotQuery, "sequencing workflow")
	assert.Contains(t, stub.gotQuery, "Return ONLY the Mermaid code")
	assert.Equal(t, "low", stub.gotThinking)

	require.True(t, strings.HasPrefix(d.RenderURL, "https://mermaid.ink/img/"))
	decoded, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(d.RenderURL, "https://mermaid.ink/img/"))
	require.NoError(t, err)
	assert.Equal(t, d.MermaidCode, string(decoded))
}

func TestGenerateBareCodeAccepted(t *testing.T) {
	stub := &stubAnalyzer{answer: "sequenceDiagram\n    User->>API: query"}
	g := render.NewDiagramGenerator(stub, testLogger())

	d := g.Generate(context.Background(), "query flow", "sequence")

	assert.Equal(t, "sequenceDiagram\n    User->>API: query", d.MermaidCode)
}

func TestGenerateProseFallsBackToTemplate(t *testing.T) {
	stub := &stubAnalyzer{answer: "## Executive Summary\nHere is my analysis of the workflow."}
	g := render.NewDiagramGenerator(stub, testLogger())

	d := g.Generate(context.Background(), "anything", "flowchart")

	assert.Contains(t, d.MermaidCode, "flowchart TD")
	assert.Contains(t, d.MermaidCode, "Analysis Engine")
}

func TestGenerateBackendErrorFallsBackToTemplate(t *testing.T) {
	stub := &stubAnalyzer{err: errors.New("backend down")}
	g := render.NewDiagramGenerator(stub, testLogger())

	d := g.Generate(context.Background(), "anything", "sequence")

	assert.True(t, strings.HasPrefix(d.MermaidCode, "sequenceDiagram"))
	assert.NotEmpty(t, d.RenderURL)
}

func TestGenerateWithoutAnalyzer(t *testing.T) {
	g := render.NewDiagramGenerator(nil, testLogger())

	tests := []struct {
		diagramType string
		wantPrefix  string
	}{
		{"flowchart", "flowchart TD"},
		{"sequence", "sequenceDiagram"},
		{"class", "classDiagram"},
		{"mindmap", "flowchart LR"},
	}
	for _, tt := range tests {
		d := g.Generate(context.Background(), "desc", tt.diagramType)
		assert.Truef(t, strings.HasPrefix(d.MermaidCode, tt.wantPrefix),
			"type %q should use the %q template, got %q", tt.diagramType, tt.wantPrefix, d.MermaidCode)
	}
}

func TestGenerateDefaultsToFlowchart(t *testing.T) {
	g := render.NewDiagramGenerator(nil, testLogger())

	d := g.Generate(context.Background(), "desc", "")

	assert.Equal(t, "flowchart", d.DiagramType)
	assert.Contains(t, d.MermaidCode, "flowchart TD")
}
