// Package timescale maps time domains onto pixel ranges and generates the
// calendar-aligned ticks shared by chart axes and histogram bin edges.
package timescale

import (
	"fmt"
	"time"
)

// Domain is the visible time window of a chart.
type Domain struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Centered returns a domain of exactly width around center.
func Centered(center time.Time, width time.Duration) Domain {
	start := center.Add(-width / 2)
	return Domain{Start: start, End: start.Add(width)}
}

// Width returns End - Start.
func (d Domain) Width() time.Duration {
	return d.End.Sub(d.Start)
}

// Center returns the midpoint of the domain.
func (d Domain) Center() time.Time {
	return d.Start.Add(d.Width() / 2)
}

// Contains reports whether t lies in [Start, End).
func (d Domain) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// Shift moves the domain by delta, preserving its width.
func (d Domain) Shift(delta time.Duration) Domain {
	return Domain{Start: d.Start.Add(delta), End: d.End.Add(delta)}
}

// Validate checks the Start < End invariant.
func (d Domain) Validate() error {
	if !d.Start.Before(d.End) {
		return fmt.Errorf("invalid domain: start %s is not before end %s",
			d.Start.Format(time.RFC3339), d.End.Format(time.RFC3339))
	}
	return nil
}

func (d Domain) String() string {
	return fmt.Sprintf("[%s, %s)", d.Start.Format(time.RFC3339), d.End.Format(time.RFC3339))
}

// Scale is a linear time scale from a Domain onto [RangeMin, RangeMax] pixels.
// Every track of a chart shares one Scale so that rows stay aligned.
type Scale struct {
	Location *time.Location
	Domain   Domain
	RangeMin float64
	RangeMax float64
}

// New creates a scale over d spanning the given pixel range.
func New(d Domain, rangeMin, rangeMax float64, loc *time.Location) Scale {
	return Scale{Domain: d, RangeMin: rangeMin, RangeMax: rangeMax, Location: loc}
}

// X maps t to a pixel coordinate. Times outside the domain extrapolate.
func (s Scale) X(t time.Time) float64 {
	w := s.Domain.Width()
	if w <= 0 {
		return s.RangeMin
	}
	frac := float64(t.Sub(s.Domain.Start)) / float64(w)
	return s.RangeMin + frac*(s.RangeMax-s.RangeMin)
}

// Invert maps a pixel coordinate back to a time.
func (s Scale) Invert(x float64) time.Time {
	span := s.RangeMax - s.RangeMin
	if span == 0 {
		return s.Domain.Start
	}
	frac := (x - s.RangeMin) / span
	return s.Domain.Start.Add(time.Duration(frac * float64(s.Domain.Width())))
}

// Ticks returns roughly n calendar-aligned ticks within the domain.
func (s Scale) Ticks(n int) []time.Time {
	return Ticks(s.Domain, n, s.Location)
}

// TickCountForWidth picks how many ticks (and so histogram bins) a chart
// rendered at px pixels wide should use. Bin width stays roughly constant
// in pixels across screen sizes.
func TickCountForWidth(px int) int {
	switch {
	case px >= 1000:
		return 50
	case px >= 800:
		return 40
	default:
		return 20
	}
}
