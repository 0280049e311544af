package render_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/models"
	"github.com/raphaelgruber/helix-go/internal/render"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestChartWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	r := render.NewRenderer(dir, testLogger())

	out := r.Chart(models.ChartSpec{
		Type:     models.ChartBar,
		Title:    "Mutation Impact Score by Gene",
		Insights: "TP53 dominates",
		Data: models.BarData{
			Labels: []models.Label{"TP53", "KRAS", "BRCA1"},
			Values: []float64{9.1, 7.5, 8.2},
		},
	})

	assert.Empty(t, out.Error)
	assert.Equal(t, models.ChartBar, out.Type)
	assert.Equal(t, "Mutation Impact Score by Gene", out.Title)
	assert.Equal(t, "TP53 dominates", out.Insights)

	require.NotNil(t, out.HTML, "should carry inline HTML")
	assert.Contains(t, *out.HTML, "Mutation Impact Score by Gene")
	assert.Contains(t, *out.HTML, "TP53")

	require.NotEmpty(t, out.File, "should write an artifact file")
	assert.True(t, strings.HasPrefix(filepath.Base(out.File), "chart_"))
	assert.True(t, strings.HasSuffix(out.File, ".html"))

	written, err := os.ReadFile(out.File)
	require.NoError(t, err)
	assert.Equal(t, *out.HTML, string(written))
}

func TestChartAllKinds(t *testing.T) {
	specs := []models.ChartSpec{
		{Type: models.ChartBar, Title: "bar", Data: models.BarData{
			Labels: []models.Label{"a", "b"}, Values: []float64{1, 2},
		}},
		{Type: models.ChartLine, Title: "line", Data: models.LineData{
			X: []models.Label{"jan", "feb", "mar"}, Y: []float64{3, 1, 4},
		}},
		{Type: models.ChartScatter, Title: "scatter", Data: models.ScatterData{
			X: []float64{1, 2, 3}, Y: []float64{4, 5, 6}, Sizes: []float64{10, 20, 30},
		}},
		{Type: models.ChartHeatmap, Title: "heatmap", Data: models.HeatmapData{
			X: []models.Label{"c1", "c2"}, Y: []models.Label{"r1", "r2"},
			Z: [][]float64{{0.1, 0.9}, {0.5, 0.3}},
		}},
		{Type: models.ChartPie, Title: "pie", Data: models.PieData{
			Labels: []models.Label{"x", "y"}, Values: []float64{60, 40},
		}},
		{Type: models.ChartRadar, Title: "radar", Data: models.RadarData{
			Categories: []models.Label{"speed", "accuracy", "depth"},
			Values:     []float64{80, 92, 71},
		}},
	}

	r := render.NewRenderer("", testLogger())
	rendered := r.ChartAll(specs)
	require.Len(t, rendered, len(specs))

	for i, out := range rendered {
		assert.Emptyf(t, out.Error, "chart %s should render", specs[i].Type)
		assert.Equal(t, specs[i].Type, out.Type)
		require.NotNilf(t, out.HTML, "chart %s should carry HTML", specs[i].Type)
		assert.Contains(t, *out.HTML, specs[i].Title)
		assert.Empty(t, out.File, "no artifact dir was configured")
	}
}

func TestChartNoData(t *testing.T) {
	r := render.NewRenderer("", testLogger())

	out := r.Chart(models.ChartSpec{Type: models.ChartLine, Title: "Empty"})

	assert.Empty(t, out.Error, "missing data should not fail rendering")
	require.NotNil(t, out.HTML)
	assert.Contains(t, *out.HTML, "No Data", "placeholder should be visible")
	assert.Equal(t, models.ChartLine, out.Type, "declared type survives the fallback")
}

func TestChartDefaultTitle(t *testing.T) {
	r := render.NewRenderer("", testLogger())

	out := r.Chart(models.ChartSpec{
		Type: models.ChartPie,
		Data: models.PieData{Labels: []models.Label{"a"}, Values: []float64{1}},
	})

	assert.Equal(t, "Analysis Chart", out.Title)
}

func TestChartBadArtifactDirStillRenders(t *testing.T) {
	r := render.NewRenderer(filepath.Join(t.TempDir(), "missing", "nested"), testLogger())

	out := r.Chart(models.ChartSpec{
		Type: models.ChartBar,
		Data: models.BarData{Labels: []models.Label{"a"}, Values: []float64{1}},
	})

	assert.Empty(t, out.Error)
	require.NotNil(t, out.HTML, "a failed file write must not lose the chart")
	assert.Empty(t, out.File)
}

func TestChartAllEmpty(t *testing.T) {
	r := render.NewRenderer("", testLogger())
	assert.Nil(t, r.ChartAll(nil))
}
