package sleep

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const export = `{"sleep": [
  {
    "logId": 1, "dateOfSleep": "2024-05-02", "isMainSleep": true, "type": "stages",
    "startTime": "2024-05-01T23:30:00.000", "endTime": "2024-05-02T01:00:00.000",
    "levels": {
      "data": [
        {"dateTime": "2024-05-01T23:30:00.000", "level": "light", "seconds": 1800},
        {"dateTime": "2024-05-02T00:00:00.000", "level": "deep", "seconds": 2700},
        {"dateTime": "2024-05-02T00:45:00.000", "level": "rem", "seconds": 900}
      ],
      "shortData": [
        {"dateTime": "2024-05-02T00:10:00.000", "level": "wake", "seconds": 60}
      ]
    }
  },
  {
    "logId": 2, "dateOfSleep": "2024-05-02", "isMainSleep": false, "type": "classic",
    "startTime": "2024-05-02T14:00:00.000", "endTime": "2024-05-02T14:40:00.000",
    "levels": {"data": [{"dateTime": "2024-05-02T14:00:00.000", "level": "asleep", "seconds": 2400}]}
  }
]}`

func TestParse(t *testing.T) {
	loc := time.FixedZone("UTC-4", -4*3600)
	logs, err := Parse(strings.NewReader(export), loc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("Parse() returned %d logs, want 2", len(logs))
	}

	main := logs[0]
	wantStart := time.Date(2024, 5, 2, 3, 30, 0, 0, time.UTC)
	if !main.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", main.Start, wantStart)
	}
	if main.Duration() != 90*time.Minute {
		t.Errorf("Duration() = %v, want 90m", main.Duration())
	}
	names := make([]string, len(main.Levels))
	for i, l := range main.Levels {
		names[i] = l.Name
	}
	if diff := cmp.Diff([]string{"light", "deep", "wake", "rem"}, names); diff != "" {
		t.Errorf("level order mismatch (-want +got):\n%s", diff)
	}

	if _, err := Parse(strings.NewReader(`[{"startTime": "yesterday"}]`), nil); err == nil {
		t.Error("Parse() accepted a bad timestamp")
	}
}

func TestSummary(t *testing.T) {
	logs, err := Parse(strings.NewReader(export), time.UTC)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := Summary(&logs[0])
	want := []StageTotal{
		{"wake", time.Minute},
		{"rem", 15 * time.Minute},
		{"light", 30 * time.Minute},
		{"deep", 44 * time.Minute},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}

	var total time.Duration
	for _, st := range got {
		total += st.Duration
	}
	if total != logs[0].Duration() {
		t.Errorf("Summary() totals %v, want time in bed %v", total, logs[0].Duration())
	}
}

func TestSummaryShortLevelAcrossStages(t *testing.T) {
	start := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	log := Log{
		Type: TypeStages,
		Levels: []Level{
			{Start: start, Name: "light", Duration: 10 * time.Minute},
			{Start: start.Add(9 * time.Minute), Name: "wake", Duration: 2 * time.Minute, Short: true},
			{Start: start.Add(10 * time.Minute), Name: "deep", Duration: 10 * time.Minute},
		},
	}
	want := []StageTotal{
		{"wake", 2 * time.Minute},
		{"rem", 0},
		{"light", 9 * time.Minute},
		{"deep", 9 * time.Minute},
	}
	if diff := cmp.Diff(want, Summary(&log)); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}
}

func TestTracks(t *testing.T) {
	logs, err := Parse(strings.NewReader(export), time.UTC)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tracks := Tracks(logs, nil)

	var names []string
	for _, tr := range tracks {
		names = append(names, tr.Name)
	}
	want := []string{"Wake", "REM", "Light", "Deep", "Awake", "Restless", "Asleep"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("track names mismatch (-want +got):\n%s", diff)
	}

	deep := tracks[3].Records
	if len(deep) != 1 || deep[0].Label != "Deep · 45 min" || deep[0].Color != DefaultPalette["deep"] {
		t.Errorf("deep track = %+v", deep)
	}
	if deep[0].Stop.Sub(deep[0].Start) != 45*time.Minute {
		t.Errorf("deep interval = %v", deep[0].Stop.Sub(deep[0].Start))
	}
}

func TestMainSleep(t *testing.T) {
	logs := []Log{
		{ID: 1, DateOfSleep: "2024-05-03", Start: time.Unix(0, 0), End: time.Unix(3600, 0)},
		{ID: 2, DateOfSleep: "2024-05-03", Start: time.Unix(0, 0), End: time.Unix(7200, 0)},
		{ID: 3, DateOfSleep: "2024-05-02", Start: time.Unix(0, 0), End: time.Unix(60, 0), IsMainSleep: true},
		{ID: 4, DateOfSleep: "2024-05-02", Start: time.Unix(0, 0), End: time.Unix(9000, 0)},
	}
	got := MainSleep(logs)
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Errorf("MainSleep() ids = %v", got)
	}
}
