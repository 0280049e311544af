package parser

import (
	"encoding/json"
	"regexp"

	"github.com/raphaelgruber/helix-go/internal/models"
)

// chartBlockRe matches fenced ```chart blocks in analysis text. The fence
// payload is expected to be a JSON chart specification.
var chartBlockRe = regexp.MustCompile("(?s)```chart\\s*\\n(.*?)\\n```")

// ExtractCharts mines chart specifications from fenced ```chart blocks.
// Blocks that are not valid JSON, name an unknown chart type, or lack a
// data payload are dropped without failing the surrounding analysis. The
// input text is left untouched; callers keep the fences in the response.
func ExtractCharts(text string) []models.ChartSpec {
	matches := chartBlockRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	charts := make([]models.ChartSpec, 0, len(matches))
	for _, m := range matches {
		var spec models.ChartSpec
		if err := json.Unmarshal([]byte(m[1]), &spec); err != nil {
			continue
		}
		charts = append(charts, spec)
	}
	if len(charts) == 0 {
		return nil
	}
	return charts
}
