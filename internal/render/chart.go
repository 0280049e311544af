// Package render turns mined chart specs into standalone HTML artifacts
// and produces Mermaid diagrams. Rendering is best-effort by contract:
// a spec that cannot be drawn degrades to a result carrying the original
// data and an error note, never a failure of the surrounding request.
package render

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/google/uuid"

	"github.com/raphaelgruber/helix-go/internal/models"
)

const chartBackground = "#111118"

// Renderer draws chart specs. When dir is non-empty every rendered chart
// is also written there as chart_<uuid>.html for sharing outside the API
// response.
type Renderer struct {
	dir string
	log *slog.Logger
}

// NewRenderer creates a renderer writing artifacts into dir. An empty dir
// keeps charts in-memory only.
func NewRenderer(dir string, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{dir: dir, log: log}
}

type renderable interface {
	Render(w io.Writer) error
}

// Chart renders one spec to HTML. It never fails the caller: an
// undrawable spec yields a result with no HTML and the error message set,
// with the original data riding along so clients can draw it themselves.
// A spec without data is drawn as a visible "No Data" bar instead.
func (r *Renderer) Chart(spec models.ChartSpec) models.RenderedChart {
	out := models.RenderedChart{
		Type:     spec.Type,
		Title:    spec.Title,
		Insights: spec.Insights,
		Data:     spec.Data,
	}
	if out.Title == "" {
		out.Title = "Analysis Chart"
	}

	data := spec.Data
	if data == nil {
		data = models.BarData{Labels: []models.Label{"No Data"}, Values: []float64{0}}
	}

	chart, err := buildChart(out.Title, data)
	if err != nil {
		r.log.Warn("chart not drawable", "type", spec.Type, "title", out.Title, "error", err)
		out.Error = err.Error()
		return out
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		r.log.Warn("chart render failed", "type", spec.Type, "title", out.Title, "error", err)
		out.Error = err.Error()
		return out
	}

	html := buf.String()
	out.HTML = &html

	if r.dir != "" {
		name := fmt.Sprintf("chart_%s.html", uuid.NewString())
		path := filepath.Join(r.dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			r.log.Warn("chart artifact not written", "path", path, "error", err)
		} else {
			out.File = path
		}
	}
	return out
}

// ChartAll renders every spec in order.
func (r *Renderer) ChartAll(specs []models.ChartSpec) []models.RenderedChart {
	if len(specs) == 0 {
		return nil
	}
	rendered := make([]models.RenderedChart, len(specs))
	for i, spec := range specs {
		rendered[i] = r.Chart(spec)
	}
	return rendered
}

func buildChart(title string, data models.ChartData) (renderable, error) {
	switch d := data.(type) {
	case models.BarData:
		bar := charts.NewBar()
		bar.SetGlobalOptions(baseOptions(title)...)
		bar.SetXAxis(labelStrings(d.Labels))
		bar.AddSeries("", barItems(d.Values))
		return bar, nil

	case models.LineData:
		line := charts.NewLine()
		line.SetGlobalOptions(baseOptions(title)...)
		line.SetXAxis(labelStrings(d.X))
		line.AddSeries("", lineItems(d.Y))
		return line, nil

	case models.ScatterData:
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(append(baseOptions(title),
			charts.WithXAxisOpts(opts.XAxis{Type: "value"}),
			charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		)...)
		scatter.AddSeries("", scatterItems(d))
		return scatter, nil

	case models.HeatmapData:
		min, max := matrixRange(d.Z)
		heatmap := charts.NewHeatMap()
		heatmap.SetGlobalOptions(append(baseOptions(title),
			charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: labelStrings(d.X)}),
			charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: labelStrings(d.Y)}),
			charts.WithVisualMapOpts(opts.VisualMap{
				Calculable: opts.Bool(true),
				Min:        float32(min),
				Max:        float32(max),
			}),
		)...)
		heatmap.AddSeries("", heatmapItems(d.Z))
		return heatmap, nil

	case models.PieData:
		pie := charts.NewPie()
		pie.SetGlobalOptions(baseOptions(title)...)
		pie.AddSeries("", pieItems(d))
		pie.SetSeriesOptions(charts.WithPieChartOpts(opts.PieChart{
			Radius: []string{"40%", "75%"},
		}))
		return pie, nil

	case models.RadarData:
		maxVal := 0.0
		for _, v := range d.Values {
			if v > maxVal {
				maxVal = v
			}
		}
		if maxVal == 0 {
			maxVal = 1
		} else {
			maxVal *= 1.2
		}
		indicators := make([]*opts.Indicator, len(d.Categories))
		for i, c := range d.Categories {
			indicators[i] = &opts.Indicator{Name: string(c), Max: float32(maxVal)}
		}
		radar := charts.NewRadar()
		radar.SetGlobalOptions(append(baseOptions(title),
			charts.WithRadarComponentOpts(opts.RadarComponent{Indicator: indicators}),
		)...)
		radar.AddSeries("", []opts.RadarData{{Value: d.Values}})
		return radar, nil

	default:
		return nil, fmt.Errorf("no renderer for chart data %T", data)
	}
}

func baseOptions(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemePurplePassion,
			BackgroundColor: chartBackground,
			Width:           "800px",
			Height:          "500px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func labelStrings(labels []models.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

func barItems(values []float64) []opts.BarData {
	items := make([]opts.BarData, len(values))
	for i, v := range values {
		items[i] = opts.BarData{Value: v}
	}
	return items
}

func lineItems(values []float64) []opts.LineData {
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		items[i] = opts.LineData{Value: v}
	}
	return items
}

func scatterItems(d models.ScatterData) []opts.ScatterData {
	n := len(d.X)
	if len(d.Y) < n {
		n = len(d.Y)
	}
	items := make([]opts.ScatterData, n)
	for i := 0; i < n; i++ {
		item := opts.ScatterData{Value: []interface{}{d.X[i], d.Y[i]}}
		if i < len(d.Sizes) && d.Sizes[i] > 0 {
			item.SymbolSize = int(d.Sizes[i])
		}
		items[i] = item
	}
	return items
}

func heatmapItems(z [][]float64) []opts.HeatMapData {
	var items []opts.HeatMapData
	for yi, row := range z {
		for xi, v := range row {
			items = append(items, opts.HeatMapData{Value: [3]interface{}{xi, yi, v}})
		}
	}
	return items
}

func pieItems(d models.PieData) []opts.PieData {
	n := len(d.Labels)
	if len(d.Values) < n {
		n = len(d.Values)
	}
	items := make([]opts.PieData, n)
	for i := 0; i < n; i++ {
		items[i] = opts.PieData{Name: string(d.Labels[i]), Value: d.Values[i]}
	}
	return items
}

func matrixRange(z [][]float64) (float64, float64) {
	min, max := 0.0, 0.0
	first := true
	for _, row := range z {
		for _, v := range row {
			if first {
				min, max = v, v
				first = false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}
