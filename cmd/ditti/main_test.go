package main

import (
	"testing"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/portal"
)

func TestParseWindowTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tz database unavailable")
	}
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2024-05-01T12:00:00Z", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), false},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, ny), false},
		{"May 1", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseWindowTime(tt.input, ny)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseWindowTime(%q) error = %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseWindowTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatPermissions(t *testing.T) {
	got := formatPermissions([]portal.Permission{
		{Action: portal.ActionView, Resource: "Participants"},
		{Action: portal.ActionAll, Resource: "*"},
	})
	if got != "View Participants, * *" {
		t.Errorf("formatPermissions() = %q", got)
	}
	if formatTime(portal.Timestamp{}, time.UTC) != "-" {
		t.Error("formatTime(zero) not \"-\"")
	}
}
