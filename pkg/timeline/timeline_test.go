package timeline

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/histogram"
	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
)

var t0 = time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)

func at(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

func TestVisible(t *testing.T) {
	window := timescale.Domain{Start: at(0), End: at(60)}
	tests := []struct {
		name string
		r    Record
		want bool
	}{
		{"point inside", Record{Start: at(30)}, true},
		{"point on start edge", Record{Start: at(0)}, true},
		{"point before", Record{Start: at(-1)}, false},
		{"point after", Record{Start: at(61)}, false},
		{"range inside", Record{Start: at(10), Stop: at(20)}, true},
		{"range overlapping start", Record{Start: at(-10), Stop: at(5)}, true},
		{"range overlapping end", Record{Start: at(55), Stop: at(90)}, true},
		{"range spanning window", Record{Start: at(-10), Stop: at(90)}, true},
		{"range before", Record{Start: at(-30), Stop: at(-5)}, false},
		{"range after", Record{Start: at(65), Stop: at(90)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Visible(tt.r, window); got != tt.want {
				t.Errorf("Visible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayoutClipsAndSharesScale(t *testing.T) {
	window := timescale.Domain{Start: at(0), End: at(100)}
	scale := timescale.New(window, 0, 1000, time.UTC)
	tracks := []Track{
		{Name: "Taps", Records: []Record{
			{Start: at(-20), Stop: at(10), Label: "12.0 taps/min", Color: "#f00"},
			{Start: at(50)},
			{Start: at(200)},
		}},
		{Name: "Audio", Records: []Record{{Start: at(50), Color: "#0f0"}}},
	}

	marks := Layout(scale, tracks, LayoutOptions{Top: 10, RowHeight: 20})
	if len(marks) != 3 {
		t.Fatalf("Layout() returned %d marks, want 3", len(marks))
	}

	seg := marks[0]
	if seg.Kind != Segment || seg.X0 != 0 || math.Abs(seg.X1-100) > 1e-9 {
		t.Errorf("clipped segment = %+v, want x0=0 x1=100", seg)
	}
	if seg.Tooltip != "12.0 taps/min" || seg.Color != "#f00" || seg.Y != 20 {
		t.Errorf("segment = %+v", seg)
	}

	tap, audio := marks[1], marks[2]
	if tap.Kind != Point || tap.Color != DefaultColor {
		t.Errorf("tap mark = %+v", tap)
	}
	if tap.X0 != audio.X0 {
		t.Errorf("same instant on two tracks at x=%v and x=%v", tap.X0, audio.X0)
	}
	if audio.Track != 1 || audio.Y != 40 {
		t.Errorf("audio mark = %+v, want track 1 at y=40", audio)
	}
}

func TestRenderSVG(t *testing.T) {
	domain := timescale.Domain{Start: at(0), End: at(24 * 60)}
	bins := histogram.Build([]time.Time{at(5), at(6), at(300)}, domain, 20, time.UTC)
	chart := Chart{
		Domain: domain,
		Title:  "Participant <abc123>",
		Tracks: []Track{{Name: "Bouts", Records: []Record{{Start: at(60), Stop: at(90), Label: "4.0 taps/min"}}}},
		Bins:   bins,
		Markers: []tzconvert.Marker{
			{Time: at(120), Name: "America/Chicago"},
			{Time: at(-5), Name: "hidden"},
		},
		Width: 1200,
	}

	var buf bytes.Buffer
	if err := RenderSVG(&buf, chart); err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"<svg", "4.0 taps/min", "America/Chicago", "Participant &lt;abc123&gt;", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderSVG() output missing %q", want)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("RenderSVG() drew a timezone marker outside the domain")
	}
	if strings.Contains(out, "<abc123>") {
		t.Error("RenderSVG() did not escape the title")
	}

	if err := RenderSVG(&buf, Chart{}); err == nil {
		t.Error("RenderSVG() with empty domain should fail")
	}
}

func TestRenderText(t *testing.T) {
	window := timescale.Domain{Start: at(0), End: at(100)}
	tracks := []Track{
		{Name: "Bouts", Records: []Record{{Start: at(10), Stop: at(20), Label: "6.0 taps/min"}}},
		{Name: "Audio"},
	}
	marks := Layout(timescale.New(window, 0, 100, time.UTC), tracks, LayoutOptions{})
	out := RenderText(tracks, marks, time.UTC)
	if !strings.Contains(out, "6.0 taps/min") || !strings.Contains(out, "nothing in view") {
		t.Errorf("RenderText() = %s", out)
	}
}
