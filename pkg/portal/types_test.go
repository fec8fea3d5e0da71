package portal

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshal(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"epoch ms", `1714564800000`, want},
		{"iso millis", `"2024-05-01T12:00:00.000Z"`, want},
		{"rfc3339 offset", `"2024-05-01T08:00:00-04:00"`, want},
		{"naive", `"2024-05-01T12:00:00"`, want},
		{"http date", `"Wed, 01 May 2024 12:00:00 GMT"`, want},
		{"null", `null`, time.Time{}},
		{"empty", `""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.input, err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, ts.Time, tt.want)
			}
		})
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("Unmarshal(yesterday) succeeded")
	}
}

func TestTimestampMarshal(t *testing.T) {
	data, err := json.Marshal(Timestamp{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"2024-05-01T12:00:00Z"` {
		t.Errorf("Marshal() = %s", data)
	}
	data, err = json.Marshal(Timestamp{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Errorf("Marshal(zero) = %s", data)
	}
}

func TestValidateDittiID(t *testing.T) {
	s := Study{DittiID: "sat"}
	tests := []struct {
		id    string
		valid bool
	}{
		{"sat001", true},
		{"satABC9", true},
		{"sat", false},
		{"qi001", false},
		{"sat-01", false},
	}
	for _, tt := range tests {
		if err := s.ValidateDittiID(tt.id); (err == nil) != tt.valid {
			t.Errorf("ValidateDittiID(%q) error = %v, want valid=%v", tt.id, err, tt.valid)
		}
	}
}

func TestParticipantExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	p := Participant{ExpTime: Timestamp{Time: now.Add(-time.Hour)}}
	if !p.Expired(now) {
		t.Error("Expired() = false for past expiry")
	}
	if (Participant{}).Expired(now) {
		t.Error("Expired() = true with no expiry set")
	}
}
