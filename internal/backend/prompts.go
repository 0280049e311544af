package backend

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/helix-go/internal/models"
)

// corpusSnippetMax bounds each corpus snippet carried into the prompt.
// Full chunks live in the index; the prompt only needs enough to ground
// the answer.
const corpusSnippetMax = 500

// systemPrompt positions the model and pins the fenced chart contract the
// chart miner depends on.
const systemPrompt = `You are Helix, an autonomous bio-research analysis agent for scientists, researchers, and graduate students. You combine deep scientific knowledge with rigorous analytical method.

CAPABILITIES
- Analyze microscopy images, gels, experimental data, papers, protocols and clinical documents.
- Apply the scientific method: observation, hypothesis, analysis, conclusion.
- Identify statistical significance and potential confounds; cite confidence levels.

VISUALIZATION REQUIREMENTS
Every analysis MUST include at least 2 chart blocks in exactly this format:

` + "```chart" + `
{
  "type": "bar|line|scatter|heatmap|pie|radar",
  "title": "Descriptive Chart Title",
  "data": {
    "labels": ["Label1", "Label2"],
    "values": [1, 2]
  },
  "insights": "Key scientific finding from this visualization"
}
` + "```" + `

Chart type guidance: bar for category comparisons, line for trends over time or dose, scatter for correlations, heatmap for matrices (use z, x, y), pie for composition, radar for multi-dimensional profiles.

RESPONSE STRUCTURE
1. Executive summary in 2-3 sentences.
2. Detailed analysis with proper scientific terminology.
3. Visualizations with insights.
4. Actionable recommendations.
5. Limitations and caveats.

Be precise, clinical and action-oriented. Always suggest validation experiments.`

// buildUserPrompt assembles the textual user message: the query, then the
// session memory and corpus knowledge sections, then the visualization
// directive. Attachment sections are appended separately so backends that
// support native content blocks can place them themselves.
func buildUserPrompt(req Request) string {
	parts := []string{req.Query}

	if len(req.MemorySnippets) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n--- PAST SESSION CONTEXT ---\n")
		for _, m := range req.MemorySnippets {
			sb.WriteString("• " + m + "\n")
		}
		parts = append(parts, sb.String())
	}

	if len(req.CorpusSnippets) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n--- RELEVANT RESEARCH KNOWLEDGE ---\n")
		for _, snippet := range req.CorpusSnippets {
			sb.WriteString("• " + truncateRunes(snippet, corpusSnippetMax) + "...\n")
		}
		parts = append(parts, sb.String())
	}

	prompt := strings.Join(parts, "\n")
	prompt += "\n\n**IMPORTANT: Generate at least 2 relevant data visualizations with actual data values.**"
	return prompt
}

// attachmentSection renders one text-bearing attachment as a prompt
// section. Images return an empty string; they travel as native content
// blocks where the backend supports them.
func attachmentSection(att models.Attachment) string {
	switch att.Kind {
	case models.AttachmentPDF:
		return fmt.Sprintf("\n\n--- PDF: %s ---\n%s", att.Filename, att.Text)
	case models.AttachmentText:
		return fmt.Sprintf("\n\n--- FILE: %s ---\n%s", att.Filename, att.Text)
	default:
		return ""
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
