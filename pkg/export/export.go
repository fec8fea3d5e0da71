// Package export writes a participant's activity window as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/bouts"
	"github.com/codeGROOVE-dev/ditti/pkg/histogram"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
	"github.com/xuri/excelize/v2"
)

const timeLayout = "2006-01-02 15:04:05"

// Sheet names, in workbook order.
const (
	SheetTaps      = "Taps"
	SheetAudio     = "Audio"
	SheetBouts     = "Bouts"
	SheetHistogram = "Histogram"
)

// Dataset is everything exported for one participant window.
type Dataset struct {
	Location *time.Location
	Palette  bouts.Palette
	DittiID  string
	Taps     []portal.Tap
	Audio    []portal.AudioTap
	Bouts    []timeline.Record
	Bins     []histogram.Bin
}

// Write renders ds as a workbook to w.
func Write(w io.Writer, ds Dataset) (err error) {
	if ds.Location == nil {
		ds.Location = time.UTC
	}
	if ds.Palette == (bouts.Palette{}) {
		ds.Palette = bouts.DefaultPalette
	}

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing workbook: %w", closeErr)
		}
	}()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetTaps, []any{"Ditti ID", "Time", "Timezone", "Epoch ms"}, tapRows(ds)},
		{SheetAudio, []any{"Ditti ID", "Time", "Timezone", "Action", "Audio file", "Epoch ms"}, audioRows(ds)},
		{SheetBouts, []any{"Kind", "Start", "Stop", "Minutes", "Label"}, boutRows(ds)},
		{SheetHistogram, []any{"Bin start", "Bin end", "Taps"}, binRows(ds)},
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("renaming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s.name, err)
		}

		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return fmt.Errorf("writing %s header: %w", s.name, err)
		}
		last, err := excelize.CoordinatesToCellName(len(s.header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(s.name, "A1", last, header); err != nil {
			return fmt.Errorf("styling %s header: %w", s.name, err)
		}
		lastCol, _, err := excelize.SplitCellName(last)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, "A", lastCol, 20); err != nil {
			return fmt.Errorf("sizing %s columns: %w", s.name, err)
		}

		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("writing %s row %d: %w", s.name, r+2, err)
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (ds Dataset) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(ds.Location).Format(timeLayout)
}

func tapRows(ds Dataset) [][]any {
	rows := make([][]any, 0, len(ds.Taps))
	for _, t := range ds.Taps {
		rows = append(rows, []any{t.DittiID, ds.format(t.Time.Time), t.Timezone, t.Time.UnixMilli()})
	}
	return rows
}

func audioRows(ds Dataset) [][]any {
	rows := make([][]any, 0, len(ds.Audio))
	for _, a := range ds.Audio {
		rows = append(rows, []any{a.DittiID, ds.format(a.Time.Time), a.Timezone, a.Action, a.AudioFileTitle, a.Time.UnixMilli()})
	}
	return rows
}

func boutRows(ds Dataset) [][]any {
	rows := make([][]any, 0, len(ds.Bouts))
	for _, r := range ds.Bouts {
		kind := "tap"
		minutes := 0.0
		switch {
		case !r.IsPoint():
			kind = "bout"
			minutes = r.Stop.Sub(r.Start).Minutes()
		case r.Color == ds.Palette.Audio:
			kind = "audio"
		}
		rows = append(rows, []any{kind, ds.format(r.Start), ds.format(r.Stop), minutes, r.Label})
	}
	return rows
}

func binRows(ds Dataset) [][]any {
	rows := make([][]any, 0, len(ds.Bins))
	for _, b := range ds.Bins {
		rows = append(rows, []any{ds.format(b.X0), ds.format(b.X1), b.Count})
	}
	return rows
}
