// Package activity assembles one participant's viewing window: it fetches
// taps and audio taps, then derives histogram bins, bouts and timezone
// markers over a shared domain.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/bouts"
	"github.com/codeGROOVE-dev/ditti/pkg/export"
	"github.com/codeGROOVE-dev/ditti/pkg/gemini"
	"github.com/codeGROOVE-dev/ditti/pkg/histogram"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
	"golang.org/x/sync/errgroup"
)

// Source supplies tap logs. *portal.Client satisfies it.
type Source interface {
	Taps(ctx context.Context, q portal.TapQuery) ([]portal.Tap, error)
	AudioTaps(ctx context.Context, q portal.TapQuery) ([]portal.AudioTap, error)
}

// Logs are a participant's raw tap logs, fetched once and re-windowed on
// every zoom or pan.
type Logs struct {
	DittiID string
	Taps    []portal.Tap
	Audio   []portal.AudioTap
}

// Fetch loads taps and audio taps for dittiID concurrently.
func Fetch(ctx context.Context, src Source, dittiID string, logger *slog.Logger) (*Logs, error) {
	logs := &Logs{DittiID: dittiID}
	q := portal.TapQuery{DittiID: dittiID}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		taps, err := src.Taps(ctx, q)
		logs.Taps = taps
		return err
	})
	g.Go(func() error {
		audio, err := src.AudioTaps(ctx, q)
		logs.Audio = audio
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching logs for %s: %w", dittiID, err)
	}

	logger.Debug("fetched participant logs", "ditti_id", dittiID,
		"taps", len(logs.Taps), "audio_taps", len(logs.Audio), "duration", time.Since(start))
	return logs, nil
}

// Options control how a window is derived.
type Options struct {
	Location *time.Location
	Palette  bouts.Palette
	// Width is the chart width in pixels, which sets the tick density.
	Width int
}

// Window is everything drawn for one domain. It is recomputed wholesale
// whenever the domain changes.
type Window struct {
	Domain   timescale.Domain
	Location *time.Location
	Palette  bouts.Palette
	Logs     *Logs
	Bins     []histogram.Bin
	Records  []timeline.Record
	Markers  []tzconvert.Marker
	// Summary counts the records visible in Domain.
	Summary  bouts.Summary
}

// Derive computes the window of logs over domain. Bouts and markers are
// computed over all logs so bouts straddling the domain edges keep their
// true extent; the renderer clips them.
func Derive(logs *Logs, domain timescale.Domain, opts Options) (*Window, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Palette == (bouts.Palette{}) {
		opts.Palette = bouts.DefaultPalette
	}

	taps := portal.TapTimes(logs.Taps)
	audio := portal.AudioTapTimes(logs.Audio)
	records := bouts.DetectWithPalette(taps, audio, opts.Palette)

	w := &Window{
		Domain:   domain,
		Location: opts.Location,
		Palette:  opts.Palette,
		Logs:     logs,
		Bins:     histogram.Build(taps, domain, timescale.TickCountForWidth(opts.Width), opts.Location),
		Records:  records,
		Markers:  tzconvert.Markers(portal.TimezoneEvents(logs.Taps, logs.Audio)),
	}
	w.Summary = bouts.Summarize(w.VisibleRecords(), opts.Palette)
	return w, nil
}

// Tracks returns the timeline rows of the window.
func (w *Window) Tracks() []timeline.Track {
	return []timeline.Track{{Name: "Taps", Records: w.Records}}
}

// Chart returns an SVG chart of the window.
func (w *Window) Chart(title string, width, rowHeight int, barColor, background string) timeline.Chart {
	return timeline.Chart{
		Location:   w.Location,
		Domain:     w.Domain,
		Title:      title,
		BarColor:   barColor,
		Background: background,
		Tracks:     w.Tracks(),
		Bins:       w.Bins,
		Markers:    w.Markers,
		Width:      width,
		RowHeight:  rowHeight,
	}
}

// VisibleRecords returns the records that intersect the domain.
func (w *Window) VisibleRecords() []timeline.Record {
	var out []timeline.Record
	for _, r := range w.Records {
		if timeline.Visible(r, w.Domain) {
			out = append(out, r)
		}
	}
	return out
}

// Dataset returns the window's data for spreadsheet export, limited to the
// domain.
func (w *Window) Dataset() export.Dataset {
	ds := export.Dataset{
		Location: w.Location,
		Palette:  w.Palette,
		DittiID:  w.Logs.DittiID,
		Bouts:    w.VisibleRecords(),
		Bins:     w.Bins,
	}
	for _, t := range w.Logs.Taps {
		if w.Domain.Contains(t.Time.Time) {
			ds.Taps = append(ds.Taps, t)
		}
	}
	for _, a := range w.Logs.Audio {
		if w.Domain.Contains(a.Time.Time) {
			ds.Audio = append(ds.Audio, a)
		}
	}
	return ds
}

// Activity returns the window as input for an AI digest.
func (w *Window) Activity() gemini.Activity {
	visible := w.VisibleRecords()
	a := gemini.Activity{
		Start:       w.Domain.Start,
		End:         w.Domain.End,
		Location:    w.Location,
		DittiID:     w.Logs.DittiID,
		Taps:        histogram.Total(w.Bins),
		BoutSummary: w.Summary,
	}
	for _, r := range visible {
		if !r.IsPoint() {
			a.BoutLabels = append(a.BoutLabels, r.Label)
		}
	}
	for _, au := range w.Logs.Audio {
		if w.Domain.Contains(au.Time.Time) {
			a.AudioTaps++
		}
	}
	for _, m := range w.Markers {
		if w.Domain.Contains(m.Time) {
			a.Timezones = append(a.Timezones, m)
		}
	}
	return a
}
