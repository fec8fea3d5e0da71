package timeline

import (
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/histogram"
	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
)

// Chart describes a full SVG rendering: an optional histogram panel above
// any number of timeline tracks, all on one time scale.
type Chart struct {
	Location   *time.Location
	Domain     timescale.Domain
	Title      string
	BarColor   string
	Background string
	Tracks     []Track
	Bins       []histogram.Bin
	Markers    []tzconvert.Marker
	Width      int
	RowHeight  int
	BarsHeight int
}

const (
	marginLeft   = 96
	marginRight  = 16
	marginTop    = 28
	axisHeight   = 28
	minLabelGap  = 64
	pointRadius  = 3.5
	endRadius    = 2.5
	strokeWidth  = 3
	defaultWidth = 960
)

type svgLine struct{ X1, Y1, X2, Y2 float64 }

type svgBar struct {
	Tooltip    string
	X, Y, W, H float64
}

type svgMark struct {
	Tooltip string
	Color   string
	X0, X1  float64
	Y       float64
	Segment bool
}

type svgText struct {
	Text string
	X, Y float64
}

type svgMarker struct {
	Name   string
	X      float64
	Y1, Y2 float64
}

type svgView struct {
	Title      string
	Background string
	BarColor   string
	Grid       []svgLine
	Bars       []svgBar
	Rows       []svgText
	Marks      []svgMark
	Markers    []svgMarker
	Labels     []svgText
	Ceiling    svgText
	Width      int
	Height     int
	Left       float64
	Right      float64
	AxisY      float64
	Radius     float64
	EndRadius  float64
	Stroke     float64
	HasBars    bool
}

var (
	svgTmpl     *template.Template
	svgTmplOnce sync.Once
)

func getSVGTemplate() *template.Template {
	svgTmplOnce.Do(func() {
		svgTmpl = template.Must(template.New("chart").Funcs(template.FuncMap{
			"px": func(v float64) string { return fmt.Sprintf("%.1f", v) },
		}).Parse(svgTemplateStr))
	})
	return svgTmpl
}

// RenderSVG writes the chart as a standalone SVG document.
func RenderSVG(w io.Writer, c Chart) error {
	if err := c.Domain.Validate(); err != nil {
		return err
	}
	v := buildView(c)
	if err := getSVGTemplate().Execute(w, v); err != nil {
		return fmt.Errorf("rendering svg: %w", err)
	}
	return nil
}

func buildView(c Chart) svgView {
	width := c.Width
	if width <= 0 {
		width = defaultWidth
	}
	rowHeight := c.RowHeight
	if rowHeight <= 0 {
		rowHeight = 24
	}
	barsHeight := c.BarsHeight
	if len(c.Bins) > 0 && barsHeight <= 0 {
		barsHeight = 140
	}
	if len(c.Bins) == 0 {
		barsHeight = 0
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	v := svgView{
		Title:      c.Title,
		Background: orDefault(c.Background, "#ffffff"),
		BarColor:   orDefault(c.BarColor, "#3b82f6"),
		Width:      width,
		Left:       marginLeft,
		Right:      float64(width - marginRight),
		Radius:     pointRadius,
		EndRadius:  endRadius,
		Stroke:     strokeWidth,
		HasBars:    barsHeight > 0,
	}

	scale := timescale.New(c.Domain, v.Left, v.Right, loc)
	tracksTop := float64(marginTop + barsHeight)
	v.AxisY = tracksTop + float64(len(c.Tracks)*rowHeight)
	v.Height = int(v.AxisY) + axisHeight

	ticks := scale.Ticks(timescale.TickCountForWidth(width))
	layout := tickLayout(c.Domain)
	lastLabel := -1e9
	for _, t := range ticks {
		x := scale.X(t)
		v.Grid = append(v.Grid, svgLine{X1: x, Y1: marginTop, X2: x, Y2: v.AxisY})
		if x-lastLabel >= minLabelGap {
			v.Labels = append(v.Labels, svgText{Text: t.In(loc).Format(layout), X: x, Y: v.AxisY + 16})
			lastLabel = x
		}
	}

	if barsHeight > 0 {
		ceiling := histogram.NiceCeiling(histogram.MaxCount(c.Bins))
		base := float64(marginTop + barsHeight)
		for _, b := range c.Bins {
			if b.Count == 0 {
				continue
			}
			h := float64(b.Count) / float64(ceiling) * float64(barsHeight-8)
			x0, x1 := scale.X(b.X0), scale.X(b.X1)
			v.Bars = append(v.Bars, svgBar{
				Tooltip: fmt.Sprintf("%s–%s: %d taps", b.X0.In(loc).Format(layout), b.X1.In(loc).Format(layout), b.Count),
				X:       x0 + 0.5,
				Y:       base - h,
				W:       max(x1-x0-1, 0.5),
				H:       h,
			})
		}
		v.Ceiling = svgText{Text: fmt.Sprintf("%d", ceiling), X: v.Left - 6, Y: marginTop + 12}
	}

	for i, track := range c.Tracks {
		v.Rows = append(v.Rows, svgText{
			Text: track.Name,
			X:    8,
			Y:    tracksTop + float64(i*rowHeight) + float64(rowHeight)/2 + 4,
		})
	}

	for _, m := range Layout(scale, c.Tracks, LayoutOptions{Top: tracksTop, RowHeight: float64(rowHeight)}) {
		v.Marks = append(v.Marks, svgMark{
			Tooltip: markTooltip(m, loc, layout),
			Color:   m.Color,
			X0:      m.X0,
			X1:      m.X1,
			Y:       m.Y,
			Segment: m.Kind == Segment,
		})
	}

	for _, mk := range c.Markers {
		if !c.Domain.Contains(mk.Time) {
			continue
		}
		v.Markers = append(v.Markers, svgMarker{Name: mk.Name, X: scale.X(mk.Time), Y1: marginTop - 10, Y2: v.AxisY})
	}
	return v
}

func markTooltip(m Mark, loc *time.Location, layout string) string {
	when := m.Record.Start.In(loc).Format(layout)
	if m.Kind == Segment {
		when += "–" + m.Record.Stop.In(loc).Format(layout)
	}
	if m.Tooltip == "" {
		return when
	}
	return when + ": " + m.Tooltip
}

func tickLayout(d timescale.Domain) string {
	if d.Width() > 36*time.Hour {
		return "Mon 15:04"
	}
	return "15:04"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

const svgTemplateStr = `<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}" font-family="sans-serif" font-size="11">
<rect width="{{.Width}}" height="{{.Height}}" fill="{{.Background}}"/>
{{- if .Title}}
<text x="{{px .Left}}" y="16" font-size="13" font-weight="bold">{{.Title}}</text>
{{- end}}
{{- range .Grid}}
<line x1="{{px .X1}}" y1="{{px .Y1}}" x2="{{px .X2}}" y2="{{px .Y2}}" stroke="#e5e7eb"/>
{{- end}}
{{- if .HasBars}}
<text x="{{px .Ceiling.X}}" y="{{px .Ceiling.Y}}" text-anchor="end" fill="#6b7280">{{.Ceiling.Text}}</text>
{{- range .Bars}}
<rect x="{{px .X}}" y="{{px .Y}}" width="{{px .W}}" height="{{px .H}}" fill="{{$.BarColor}}"><title>{{.Tooltip}}</title></rect>
{{- end}}
{{- end}}
{{- range .Rows}}
<text x="{{px .X}}" y="{{px .Y}}" fill="#374151">{{.Text}}</text>
{{- end}}
{{- range .Marks}}
{{- if .Segment}}
<g><title>{{.Tooltip}}</title><line x1="{{px .X0}}" y1="{{px .Y}}" x2="{{px .X1}}" y2="{{px .Y}}" stroke="{{.Color}}" stroke-width="{{px $.Stroke}}"/><circle cx="{{px .X0}}" cy="{{px .Y}}" r="{{px $.EndRadius}}" fill="{{.Color}}"/><circle cx="{{px .X1}}" cy="{{px .Y}}" r="{{px $.EndRadius}}" fill="{{.Color}}"/></g>
{{- else}}
<circle cx="{{px .X0}}" cy="{{px .Y}}" r="{{px $.Radius}}" fill="{{.Color}}"><title>{{.Tooltip}}</title></circle>
{{- end}}
{{- end}}
{{- range .Markers}}
<line x1="{{px .X}}" y1="{{px .Y1}}" x2="{{px .X}}" y2="{{px .Y2}}" stroke="#9ca3af" stroke-dasharray="4 2"/><text x="{{px .X}}" y="{{px .Y1}}" dx="3" fill="#6b7280">{{.Name}}</text>
{{- end}}
<line x1="{{px .Left}}" y1="{{px .AxisY}}" x2="{{px .Right}}" y2="{{px .AxisY}}" stroke="#9ca3af"/>
{{- range .Labels}}
<text x="{{px .X}}" y="{{px .Y}}" text-anchor="middle" fill="#4b5563">{{.Text}}</text>
{{- end}}
</svg>
`
