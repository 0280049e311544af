package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/helix-go/internal/backend"
	"github.com/raphaelgruber/helix-go/internal/models"
)

const mermaidInkBase = "https://mermaid.ink/img/"

// DiagramGenerator produces Mermaid diagrams. It asks the analysis chain
// for bespoke code when one is wired in and falls back to built-in
// templates when the chain is missing, fails, or returns prose instead of
// a diagram. Generate never fails: there is always a drawable result.
type DiagramGenerator struct {
	analyzer backend.Analyzer
	log      *slog.Logger
}

func NewDiagramGenerator(analyzer backend.Analyzer, log *slog.Logger) *DiagramGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &DiagramGenerator{analyzer: analyzer, log: log}
}

// Generate builds a Mermaid diagram of the given type for the description.
func (g *DiagramGenerator) Generate(ctx context.Context, description, diagramType string) models.Diagram {
	if diagramType == "" {
		diagramType = "flowchart"
	}

	code := g.generated(ctx, description, diagramType)
	if code == "" {
		code = templateMermaid(diagramType)
	}

	return models.Diagram{
		DiagramType: diagramType,
		MermaidCode: code,
		Description: description,
		RenderURL:   mermaidInkBase + base64.URLEncoding.EncodeToString([]byte(code)),
	}
}

func (g *DiagramGenerator) generated(ctx context.Context, description, diagramType string) string {
	if g.analyzer == nil {
		return ""
	}

	prompt := fmt.Sprintf("Generate a Mermaid %s diagram for:\n%s\n\n"+
		"Return ONLY the Mermaid code, no explanations. Start with the diagram type declaration.",
		diagramType, description)

	resp, err := g.analyzer.Analyze(ctx, backend.Request{Query: prompt, ThinkingLevel: "low"})
	if err != nil {
		g.log.Warn("diagram generation failed, using template", "type", diagramType, "error", err)
		return ""
	}

	code := extractMermaid(resp.AnswerText)
	if !looksLikeMermaid(code) {
		g.log.Debug("diagram response was not mermaid code, using template", "type", diagramType)
		return ""
	}
	return code
}

// extractMermaid pulls diagram code out of a fenced response, tolerating
// bare responses and plain ``` fences.
func extractMermaid(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```mermaid"); i >= 0 {
		rest := text[i+len("```mermaid"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	return text
}

var mermaidKeywords = []string{
	"flowchart", "graph", "sequenceDiagram", "classDiagram",
	"stateDiagram", "erDiagram", "gantt", "pie", "mindmap", "journey",
}

func looksLikeMermaid(code string) bool {
	for _, kw := range mermaidKeywords {
		if strings.HasPrefix(code, kw) {
			return true
		}
	}
	return false
}

func templateMermaid(diagramType string) string {
	switch diagramType {
	case "flowchart":
		return `flowchart TD
    A[Input Data] --> B[Analysis Engine]
    B --> C{Decision Point}
    C -->|Yes| D[Generate Report]
    C -->|No| E[Request More Data]
    D --> F[Visualization]
    E --> B`
	case "sequence":
		return `sequenceDiagram
    participant User
    participant Helix
    participant Backend
    participant Memory
    User->>Helix: Submit Query
    Helix->>Memory: Check Context
    Memory-->>Helix: Return History
    Helix->>Backend: Process Request
    Backend-->>Helix: Generate Response
    Helix-->>User: Deliver Results`
	case "class":
		return `classDiagram
    class DataProcessor {
        +ingest(document)
        +chunk(text)
        +vectorize(chunks)
    }
    class AnalysisEngine {
        +analyze(query)
        +stream(query)
    }
    class MemoryStore {
        +record(session)
        +recall(session)
    }
    DataProcessor --> AnalysisEngine
    AnalysisEngine --> MemoryStore`
	default:
		return `flowchart LR
    A[Start] --> B[Process]
    B --> C[End]`
	}
}
