package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/bouts"
	"github.com/codeGROOVE-dev/ditti/pkg/histogram"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func TestWrite(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var taps []portal.Tap
	var times []time.Time
	for i := range 5 {
		ts := base.Add(time.Duration(i) * 10 * time.Second)
		times = append(times, ts)
		taps = append(taps, portal.Tap{DittiID: "sat001", Time: portal.Timestamp{Time: ts}, Timezone: "UTC"})
	}
	late := base.Add(35*time.Minute + time.Millisecond)
	times = append(times, late)
	taps = append(taps, portal.Tap{DittiID: "sat001", Time: portal.Timestamp{Time: late}, Timezone: "UTC"})
	audio := []portal.AudioTap{{
		DittiID: "sat001", Time: portal.Timestamp{Time: base.Add(time.Hour)},
		Timezone: "UTC", Action: "play", AudioFileTitle: "Rain",
	}}
	domain := timescale.Domain{Start: base, End: base.Add(2 * time.Hour)}

	ds := Dataset{
		DittiID: "sat001",
		Taps:    taps,
		Audio:   audio,
		Bouts:   bouts.Detect(times, portal.AudioTapTimes(audio)),
		Bins:    histogram.Build(times, domain, 20, time.UTC),
	}

	var buf bytes.Buffer
	if err := Write(&buf, ds); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close() //nolint:errcheck // test cleanup

	if diff := cmp.Diff([]string{SheetTaps, SheetAudio, SheetBouts, SheetHistogram}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows(SheetTaps)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 7 {
		t.Fatalf("Taps has %d rows, want 7", len(rows))
	}
	if diff := cmp.Diff([]string{"sat001", "2024-05-01 12:00:00", "UTC"}, rows[1][:3]); diff != "" {
		t.Errorf("first tap row mismatch (-want +got):\n%s", diff)
	}

	rows, err = f.GetRows(SheetBouts)
	if err != nil {
		t.Fatal(err)
	}
	// Header, one bout, the trailing single, one audio marker.
	if len(rows) != 4 {
		t.Fatalf("Bouts has %d rows, want 4: %v", len(rows), rows)
	}
	if rows[1][0] != "bout" || rows[1][4] != "75.0 taps/min" {
		t.Errorf("bout row = %v", rows[1])
	}
	if rows[2][0] != "tap" || rows[3][0] != "audio" {
		t.Errorf("marker rows = %v, %v", rows[2], rows[3])
	}

	rows, err = f.GetRows(SheetHistogram)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(ds.Bins)+1 {
		t.Errorf("Histogram has %d rows, want %d", len(rows), len(ds.Bins)+1)
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Dataset{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close() //nolint:errcheck // test cleanup
	rows, err := f.GetRows(SheetAudio)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("empty Audio sheet has %d rows, want header only", len(rows))
	}
}
