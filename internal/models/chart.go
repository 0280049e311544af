package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChartType enumerates the supported chart kinds.
type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartScatter ChartType = "scatter"
	ChartHeatmap ChartType = "heatmap"
	ChartPie     ChartType = "pie"
	ChartRadar   ChartType = "radar"
)

// ChartData is the typed payload of a chart specification. Exactly one
// variant exists per chart kind; shapes are validated once, when the spec
// is parsed, so renderers never see free-form maps.
type ChartData interface {
	chartData()
}

// Label is a categorical axis value. Numeric JSON values are accepted and
// kept as their literal text, since generated specs mix the two freely.
type Label string

// UnmarshalJSON accepts strings, numbers and null.
func (l *Label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	*l = Label(b)
	return nil
}

// BarData drives bar charts: one value per label.
type BarData struct {
	Labels []Label   `json:"labels"`
	Values []float64 `json:"values"`
}

// LineData drives line charts. Specs may name the axes x/y or
// labels/values; both spellings decode into the same shape.
type LineData struct {
	X []Label   `json:"x"`
	Y []float64 `json:"y"`
}

// ScatterData drives scatter plots. Sizes is optional per-point sizing.
type ScatterData struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Sizes []float64 `json:"sizes,omitempty"`
}

// HeatmapData drives heatmaps: Z is a row-major matrix, X labels columns,
// Y labels rows.
type HeatmapData struct {
	X []Label     `json:"x,omitempty"`
	Y []Label     `json:"y,omitempty"`
	Z [][]float64 `json:"z"`
}

// PieData drives pie charts: one value per slice label.
type PieData struct {
	Labels []Label   `json:"labels"`
	Values []float64 `json:"values"`
}

// RadarData drives radar charts: one value per category axis.
type RadarData struct {
	Categories []Label   `json:"categories"`
	Values     []float64 `json:"values"`
}

func (BarData) chartData()     {}
func (LineData) chartData()    {}
func (ScatterData) chartData() {}
func (HeatmapData) chartData() {}
func (PieData) chartData()     {}
func (RadarData) chartData()   {}

// UnmarshalJSON resolves the x/labels and y/values axis aliases.
func (d *LineData) UnmarshalJSON(b []byte) error {
	var aux struct {
		X      []Label   `json:"x"`
		Y      []float64 `json:"y"`
		Labels []Label   `json:"labels"`
		Values []float64 `json:"values"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.X, d.Y = aux.X, aux.Y
	if len(d.X) == 0 {
		d.X = aux.Labels
	}
	if len(d.Y) == 0 {
		d.Y = aux.Values
	}
	return nil
}

// UnmarshalJSON resolves the z/values and x/x_labels, y/y_labels aliases.
func (d *HeatmapData) UnmarshalJSON(b []byte) error {
	var aux struct {
		X       []Label     `json:"x"`
		Y       []Label     `json:"y"`
		Z       [][]float64 `json:"z"`
		XLabels []Label     `json:"x_labels"`
		YLabels []Label     `json:"y_labels"`
		Values  [][]float64 `json:"values"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.X, d.Y, d.Z = aux.X, aux.Y, aux.Z
	if len(d.X) == 0 {
		d.X = aux.XLabels
	}
	if len(d.Y) == 0 {
		d.Y = aux.YLabels
	}
	if len(d.Z) == 0 {
		d.Z = aux.Values
	}
	return nil
}

// UnmarshalJSON resolves the categories/labels alias.
func (d *RadarData) UnmarshalJSON(b []byte) error {
	var aux struct {
		Categories []Label   `json:"categories"`
		Labels     []Label   `json:"labels"`
		Values     []float64 `json:"values"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.Categories, d.Values = aux.Categories, aux.Values
	if len(d.Categories) == 0 {
		d.Categories = aux.Labels
	}
	return nil
}

// ChartSpec is a chart specification mined from analysis text. Specs are
// ephemeral per request and never persisted independently.
type ChartSpec struct {
	Type     ChartType
	Title    string
	Data     ChartData
	Insights string
}

// UnmarshalJSON validates the spec at the parse boundary: the type must be
// a known kind and the data payload must be present and decode into that
// kind's variant.
func (s *ChartSpec) UnmarshalJSON(b []byte) error {
	var shell struct {
		Type     ChartType       `json:"type"`
		Title    string          `json:"title"`
		Data     json.RawMessage `json:"data"`
		Insights string          `json:"insights"`
	}
	if err := json.Unmarshal(b, &shell); err != nil {
		return err
	}
	data, err := DecodeChartData(shell.Type, shell.Data)
	if err != nil {
		return err
	}
	s.Type = shell.Type
	s.Title = shell.Title
	s.Data = data
	s.Insights = shell.Insights
	return nil
}

// MarshalJSON writes the spec back in its wire shape.
func (s ChartSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     ChartType `json:"type"`
		Title    string    `json:"title,omitempty"`
		Data     ChartData `json:"data"`
		Insights string    `json:"insights,omitempty"`
	}{s.Type, s.Title, s.Data, s.Insights})
}

// DecodeChartData decodes a raw data payload into the variant for kind.
// Empty or missing payloads are rejected, as are unknown kinds.
func DecodeChartData(kind ChartType, raw json.RawMessage) (ChartData, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, fmt.Errorf("chart %q: missing data", kind)
	}

	var (
		data ChartData
		err  error
	)
	switch kind {
	case ChartBar:
		var v BarData
		err = json.Unmarshal(raw, &v)
		data = v
	case ChartLine:
		var v LineData
		err = json.Unmarshal(raw, &v)
		data = v
	case ChartScatter:
		var v ScatterData
		err = json.Unmarshal(raw, &v)
		data = v
	case ChartHeatmap:
		var v HeatmapData
		err = json.Unmarshal(raw, &v)
		data = v
	case ChartPie:
		var v PieData
		err = json.Unmarshal(raw, &v)
		data = v
	case ChartRadar:
		var v RadarData
		err = json.Unmarshal(raw, &v)
		data = v
	default:
		return nil, fmt.Errorf("unknown chart type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", kind, err)
	}
	return data, nil
}

// RenderedChart is the renderer's output for one ChartSpec. HTML is nil
// when rendering was unavailable; the original data rides along so clients
// can fall back to drawing it themselves.
type RenderedChart struct {
	Type     ChartType `json:"type"`
	Title    string    `json:"title"`
	HTML     *string   `json:"html"`
	File     string    `json:"file,omitempty"`
	Insights string    `json:"insights"`
	Data     ChartData `json:"data"`
	Error    string    `json:"error,omitempty"`
}

// UnmarshalJSON decodes a rendered chart leniently: an undecodable data
// payload leaves Data nil instead of failing the surrounding response.
func (c *RenderedChart) UnmarshalJSON(b []byte) error {
	var shell struct {
		Type     ChartType       `json:"type"`
		Title    string          `json:"title"`
		HTML     *string         `json:"html"`
		File     string          `json:"file"`
		Insights string          `json:"insights"`
		Data     json.RawMessage `json:"data"`
		Error    string          `json:"error"`
	}
	if err := json.Unmarshal(b, &shell); err != nil {
		return err
	}
	c.Type = shell.Type
	c.Title = shell.Title
	c.HTML = shell.HTML
	c.File = shell.File
	c.Insights = shell.Insights
	c.Error = shell.Error
	if data, err := DecodeChartData(shell.Type, shell.Data); err == nil {
		c.Data = data
	}
	return nil
}

// Diagram is generated Mermaid source plus a shareable render link.
type Diagram struct {
	DiagramType string `json:"diagram_type"`
	MermaidCode string `json:"mermaid_code"`
	Description string `json:"description"`
	RenderURL   string `json:"render_url"`
}
