// Package bouts groups tap timestamps into bouts of sustained activity.
//
// The detector makes one pass over the sorted taps, keeping a candidate
// group. For each tap the first matching rule wins:
//  1. within 60s of the group's first tap: join the group
//  2. group has 5+ taps and the gap is under 30m: join the group
//  3. group has 5+ taps and the gap is 30m or more: close it as a bout
//  4. group has fewer than 5 taps and the gap is 60s or more: flush as singles
//  5. otherwise flush the taps more than 60s older than this one as singles
//
// The last group is closed as a bout only if it has 5+ taps spanning at
// least 10 minutes.
package bouts

import (
	"fmt"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
)

const (
	// TightWindow is how close to the group's first tap a tap must be to join it.
	TightWindow = 60 * time.Second
	// MinTaps is the group size at which a group counts as an established bout.
	MinTaps = 5
	// SustainedGap is the largest gap an established bout tolerates.
	SustainedGap = 30 * time.Minute
	// StopPadding extends a bout's drawn end past its last tap.
	StopPadding = 10 * time.Minute
	// MinFinalSpan is the span the final group needs to be closed as a bout.
	MinFinalSpan = 10 * time.Minute

	rateUnit = 10 * time.Minute
)

// Palette holds the colors assigned to each kind of record.
type Palette struct {
	Tap   string `yaml:"tap"`
	Bout  string `yaml:"bout"`
	Audio string `yaml:"audio"`
}

// DefaultPalette matches the portal's chart colors.
var DefaultPalette = Palette{
	Tap:   "#4b5563",
	Bout:  "#8b5cf6",
	Audio: "#f59e0b",
}

// Detect returns bouts and single taps, followed by one single-point
// record per audio timestamp. It sorts a copy of taps; neither input is
// modified.
func Detect(taps, audio []time.Time) []timeline.Record {
	return DetectWithPalette(taps, audio, DefaultPalette)
}

// DetectWithPalette is Detect with custom colors.
func DetectWithPalette(taps, audio []time.Time, p Palette) []timeline.Record {
	sorted := slices.Clone(taps)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })

	d := &detector{palette: p}
	for i, current := range sorted {
		if i == 0 {
			d.begin(current)
		} else {
			d.step(current)
		}
		d.previous = current
	}
	if len(sorted) > 0 {
		d.finish()
	}

	for _, a := range audio {
		d.out = append(d.out, timeline.Record{Start: a, Color: p.Audio})
	}
	return d.out
}

type detector struct {
	first    time.Time
	previous time.Time
	palette  Palette
	group    []time.Time
	out      []timeline.Record
}

func (d *detector) begin(t time.Time) {
	d.first = t
	d.group = []time.Time{t}
}

func (d *detector) step(current time.Time) {
	count := len(d.group)
	gap := current.Sub(d.previous)

	switch {
	case current.Sub(d.first) < TightWindow:
		d.group = append(d.group, current)
	case count >= MinTaps && gap < SustainedGap:
		d.group = append(d.group, current)
	case count >= MinTaps:
		d.closeBout()
		d.begin(current)
	case gap >= TightWindow:
		d.singles(d.group)
		d.begin(current)
	default:
		d.partialFlush(current)
	}
}

// partialFlush emits every tap more than TightWindow before current as a
// single and keeps the rest, plus current, as the candidate group.
func (d *detector) partialFlush(current time.Time) {
	keep := slices.IndexFunc(d.group, func(t time.Time) bool {
		return current.Sub(t) < TightWindow
	})
	if keep < 0 {
		d.singles(d.group)
		d.begin(current)
		return
	}

	d.singles(d.group[:keep])
	rest := append(slices.Clone(d.group[keep:]), current)
	d.group = rest
	d.first = rest[0]
}

func (d *detector) finish() {
	if len(d.group) >= MinTaps && d.previous.Sub(d.first) >= MinFinalSpan {
		d.closeBout()
		return
	}
	d.singles(d.group)
}

func (d *detector) closeBout() {
	d.out = append(d.out, timeline.Record{
		Start: d.first,
		Stop:  d.previous.Add(StopPadding),
		Label: rateLabel(len(d.group), d.previous.Sub(d.first)),
		Color: d.palette.Bout,
	})
	d.group = nil
}

func (d *detector) singles(ts []time.Time) {
	for _, t := range ts {
		d.out = append(d.out, timeline.Record{Start: t, Color: d.palette.Tap})
	}
}

// rateLabel formats count taps over span, measured per ten minute unit.
func rateLabel(count int, span time.Duration) string {
	if span <= 0 {
		return fmt.Sprintf("%d taps", count)
	}
	rate := float64(count) / (float64(span) / float64(rateUnit))
	return fmt.Sprintf("%.1f taps/min", rate)
}

// Summary counts the records Detect produced.
type Summary struct {
	Bouts       int           `json:"bouts"`
	Singles     int           `json:"singles"`
	Audio       int           `json:"audio"`
	LongestBout time.Duration `json:"longest_bout"`
}

// Summarize tallies records, telling audio markers apart by the palette.
func Summarize(records []timeline.Record, p Palette) Summary {
	var s Summary
	for _, r := range records {
		switch {
		case !r.IsPoint():
			s.Bouts++
			if span := r.Stop.Sub(r.Start) - StopPadding; span > s.LongestBout {
				s.LongestBout = span
			}
		case r.Color == p.Audio && p.Audio != p.Tap:
			s.Audio++
		default:
			s.Singles++
		}
	}
	return s
}
