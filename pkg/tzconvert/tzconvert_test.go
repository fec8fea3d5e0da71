package tzconvert

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMarkers(t *testing.T) {
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	taps := []Event{
		{at(1), "America/New_York"},
		{at(5), "America/New_York"},
		{at(9), "Europe/London"},
		{at(12), "Europe/London"},
	}
	audio := []Event{
		{at(0), "America/New_York"},
		{at(7), "America/Chicago"},
		{at(11), "Europe/London"},
	}

	got := Markers(taps, audio)
	want := []Marker{
		{at(0), "America/New_York"},
		{at(7), "America/Chicago"},
		{at(9), "Europe/London"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Markers() mismatch (-want +got):\n%s", diff)
	}

	if got := Markers(); got != nil {
		t.Errorf("Markers() with no events = %v, want nil", got)
	}
}

func TestLoadLocation(t *testing.T) {
	ref := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		wantOffset int
		wantErr    bool
	}{
		{"", 0, false},
		{"UTC", 0, false},
		{"UTC-4", -4 * 3600, false},
		{"UTC+8", 8 * 3600, false},
		{"UTC+5:30", 5*3600 + 30*60, false},
		{"UTC-0330", -(3*3600 + 30*60), false},
		{"America/New_York", -5 * 3600, false},
		{"UTC+99", 0, true},
		{"Not/AZone", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadLocation(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if _, offset := ref.In(loc).Zone(); offset != tt.wantOffset {
				t.Errorf("LoadLocation(%q) offset = %d, want %d", tt.name, offset, tt.wantOffset)
			}
		})
	}
}

func TestOffsetLabel(t *testing.T) {
	ref := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		loc  *time.Location
		want string
	}{
		{time.UTC, "UTC+0"},
		{time.FixedZone("x", -4*3600), "UTC-4"},
		{time.FixedZone("x", 5*3600+30*60), "UTC+5:30"},
	}
	for _, tt := range tests {
		if got := OffsetLabel(ref, tt.loc); got != tt.want {
			t.Errorf("OffsetLabel() = %q, want %q", got, tt.want)
		}
	}
}
