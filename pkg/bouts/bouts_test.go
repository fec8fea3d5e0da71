package bouts

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
)

var epoch = time.Date(2024, time.April, 2, 8, 0, 0, 0, time.UTC)

func ms(n int64) time.Time { return epoch.Add(time.Duration(n) * time.Millisecond) }

func single(n int64) timeline.Record {
	return timeline.Record{Start: ms(n), Color: DefaultPalette.Tap}
}

func TestDetect(t *testing.T) {
	const minute = 60_000
	tests := []struct {
		name  string
		taps  []time.Time
		audio []time.Time
		want  []timeline.Record
	}{
		{
			name: "empty",
		},
		{
			name: "lone tap",
			taps: []time.Time{ms(0)},
			want: []timeline.Record{single(0)},
		},
		{
			name: "tight bout closed by a long gap",
			taps: []time.Time{ms(0), ms(10_000), ms(20_000), ms(30_000), ms(40_000), ms(35*minute + 1)},
			want: []timeline.Record{
				{Start: ms(0), Stop: ms(40_000 + 10*minute), Label: "75.0 taps/min", Color: DefaultPalette.Bout},
				single(35*minute + 1),
			},
		},
		{
			name: "sparse taps stay single",
			taps: []time.Time{ms(0), ms(61_000), ms(200_000), ms(400_000)},
			want: []timeline.Record{single(0), single(61_000), single(200_000), single(400_000)},
		},
		{
			name: "partial flush keeps recent taps",
			taps: []time.Time{ms(0), ms(50_000), ms(100_000)},
			want: []timeline.Record{single(0), single(50_000), single(100_000)},
		},
		{
			// 0s is flushed when 100s arrives; 50s and 100s stay and
			// grow into a bout that flushing everything would lose.
			name: "partial flush remainder grows into a bout",
			taps: []time.Time{
				ms(0), ms(50_000), ms(100_000), ms(101_000), ms(102_000), ms(103_000),
				ms(600_000), ms(600_000 + 45*minute),
			},
			want: []timeline.Record{
				single(0),
				{Start: ms(50_000), Stop: ms(20 * minute), Label: "6.5 taps/min", Color: DefaultPalette.Bout},
				single(55 * minute),
			},
		},
		{
			name: "established bout tolerates gaps under 30 minutes",
			taps: []time.Time{
				ms(0), ms(5_000), ms(10_000), ms(15_000), ms(20_000),
				ms(10 * minute), ms(25 * minute), ms(40 * minute),
			},
			want: []timeline.Record{
				{Start: ms(0), Stop: ms(50 * minute), Label: "2.0 taps/min", Color: DefaultPalette.Bout},
			},
		},
		{
			name: "short final group flushes as singles",
			taps: []time.Time{ms(0), ms(1_000), ms(2_000), ms(3_000), ms(4_000)},
			want: []timeline.Record{single(0), single(1_000), single(2_000), single(3_000), single(4_000)},
		},
		{
			name: "identical timestamps",
			taps: []time.Time{ms(0), ms(0), ms(0), ms(0), ms(0), ms(40 * minute)},
			want: []timeline.Record{
				{Start: ms(0), Stop: ms(10 * minute), Label: "5 taps", Color: DefaultPalette.Bout},
				single(40 * minute),
			},
		},
		{
			name:  "audio bypasses bout logic",
			taps:  []time.Time{ms(0)},
			audio: []time.Time{ms(1_000), ms(2_000), ms(3_000), ms(4_000), ms(5_000)},
			want: []timeline.Record{
				single(0),
				{Start: ms(1_000), Color: DefaultPalette.Audio},
				{Start: ms(2_000), Color: DefaultPalette.Audio},
				{Start: ms(3_000), Color: DefaultPalette.Audio},
				{Start: ms(4_000), Color: DefaultPalette.Audio},
				{Start: ms(5_000), Color: DefaultPalette.Audio},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.taps, tt.audio)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Detect() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectSortsInput(t *testing.T) {
	taps := []time.Time{ms(40_000), ms(0), ms(35*60_000 + 1), ms(20_000), ms(10_000), ms(30_000)}
	original := slices.Clone(taps)

	got := Detect(taps, nil)
	sorted := slices.Clone(taps)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	if diff := cmp.Diff(Detect(sorted, nil), got); diff != "" {
		t.Errorf("unsorted input changed the result (-sorted +unsorted):\n%s", diff)
	}
	if diff := cmp.Diff(original, taps); diff != "" {
		t.Errorf("Detect() modified its input:\n%s", diff)
	}
}

// TestDetectAccountsForEveryTap checks on random input that each tap is
// either emitted as a single or covered by exactly one bout, and that the
// output does not depend on previous calls.
func TestDetectAccountsForEveryTap(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	gaps := []time.Duration{time.Second, 20 * time.Second, 59 * time.Second, 61 * time.Second, 5 * time.Minute, 29 * time.Minute, 31 * time.Minute, 2 * time.Hour}

	for round := range 200 {
		var taps []time.Time
		now := epoch
		for range rng.IntN(60) + 1 {
			now = now.Add(gaps[rng.IntN(len(gaps))])
			taps = append(taps, now)
		}

		got := Detect(taps, nil)
		if diff := cmp.Diff(got, Detect(taps, nil)); diff != "" {
			t.Fatalf("round %d: Detect() not idempotent:\n%s", round, diff)
		}

		covered := 0
		for _, tap := range taps {
			n := 0
			for _, r := range got {
				if r.IsPoint() && r.Start.Equal(tap) {
					n++
				}
				if !r.IsPoint() && !tap.Before(r.Start) && !tap.After(r.Stop.Add(-StopPadding)) {
					n++
				}
			}
			if n != 1 {
				t.Fatalf("round %d: tap %v covered %d times in %v", round, tap.Sub(epoch), n, got)
			}
			covered++
		}
		if covered != len(taps) {
			t.Fatalf("round %d: covered %d of %d taps", round, covered, len(taps))
		}
	}
}

func TestSummarize(t *testing.T) {
	records := Detect(
		[]time.Time{ms(0), ms(10_000), ms(20_000), ms(30_000), ms(40_000), ms(35*60_000 + 1)},
		[]time.Time{ms(5_000)},
	)
	got := Summarize(records, DefaultPalette)
	want := Summary{Bouts: 1, Singles: 1, Audio: 1, LongestBout: 40 * time.Second}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}
