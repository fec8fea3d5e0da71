// Package timeline places point and interval records on a shared time axis.
package timeline

import (
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
)

// DefaultColor is used for records that carry no color of their own.
const DefaultColor = "#6b7280"

// Record is a single event (zero Stop) or an interval on the timeline.
type Record struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop,omitzero"`
	Label string    `json:"label,omitempty"`
	Color string    `json:"color,omitempty"`
}

// IsPoint reports whether r is a single-point marker.
func (r Record) IsPoint() bool {
	return r.Stop.IsZero()
}

// Track is one named row of records. Records within a track are independent;
// overlapping intervals overdraw.
type Track struct {
	Name    string   `json:"name"`
	Records []Record `json:"records"`
}

// Visible reports whether r starts inside w, stops inside w, or spans it.
func Visible(r Record, w timescale.Domain) bool {
	within := func(t time.Time) bool {
		return !t.Before(w.Start) && !t.After(w.End)
	}
	if r.IsPoint() {
		return within(r.Start)
	}
	spans := !r.Start.After(w.Start) && !r.Stop.Before(w.End)
	return within(r.Start) || within(r.Stop) || spans
}

// Clip clamps an interval to w. Points are returned unchanged.
func Clip(r Record, w timescale.Domain) Record {
	if r.IsPoint() {
		return r
	}
	if r.Start.Before(w.Start) {
		r.Start = w.Start
	}
	if r.Stop.After(w.End) {
		r.Stop = w.End
	}
	return r
}

// MarkKind distinguishes the two visual primitives.
type MarkKind int

const (
	// Point is a dot for a single event.
	Point MarkKind = iota
	// Segment is a line between two endpoint dots.
	Segment
)

// Mark is a positioned visual primitive.
type Mark struct {
	Record  Record
	Tooltip string
	Color   string
	Kind    MarkKind
	Track   int
	X0      float64
	X1      float64
	Y       float64
}

// LayoutOptions positions track rows vertically.
type LayoutOptions struct {
	Top       float64
	RowHeight float64
}

// Layout maps every visible record of every track onto the scale. The
// scale's domain is the render window; intervals are clipped to it.
func Layout(scale timescale.Scale, tracks []Track, opts LayoutOptions) []Mark {
	if opts.RowHeight <= 0 {
		opts.RowHeight = 24
	}
	window := scale.Domain

	var marks []Mark
	for ti, track := range tracks {
		y := opts.Top + float64(ti)*opts.RowHeight + opts.RowHeight/2
		for _, r := range track.Records {
			if !Visible(r, window) {
				continue
			}
			color := r.Color
			if color == "" {
				color = DefaultColor
			}
			m := Mark{
				Record:  r,
				Tooltip: r.Label,
				Color:   color,
				Track:   ti,
				Y:       y,
			}
			if r.IsPoint() {
				m.Kind = Point
				m.X0 = scale.X(r.Start)
				m.X1 = m.X0
			} else {
				c := Clip(r, window)
				m.Kind = Segment
				m.X0 = scale.X(c.Start)
				m.X1 = scale.X(c.Stop)
			}
			marks = append(marks, m)
		}
	}
	return marks
}
