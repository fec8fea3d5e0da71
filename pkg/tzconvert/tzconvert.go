// Package tzconvert resolves display timezones and finds the points where a
// participant's reporting timezone changes.
// All event times are stored as absolute instants; locations only matter for
// display and for calendar-aligned ticks.
package tzconvert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Event is an instant reported together with the device's timezone name.
type Event struct {
	Time     time.Time
	Timezone string
}

// Marker is a changepoint in the reporting timezone.
type Marker struct {
	Time time.Time `json:"time"`
	Name string    `json:"name"`
}

// Markers merges the given event streams, orders them by time, and emits a
// marker at the first event and at every event whose timezone differs from
// the one before it. Events at the same instant keep their stream order.
func Markers(streams ...[]Event) []Marker {
	var merged []Event
	for _, s := range streams {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})

	var markers []Marker
	previous := ""
	for i, e := range merged {
		if i == 0 || e.Timezone != previous {
			markers = append(markers, Marker{Time: e.Time, Name: e.Timezone})
		}
		previous = e.Timezone
	}
	return markers
}

// LoadLocation resolves a timezone for display.
// Examples:
//   - "UTC" or "" returns UTC
//   - "UTC-4" returns a fixed zone four hours west of UTC
//   - "UTC+5:30" returns a fixed zone five and a half hours east
//   - "America/New_York" is loaded from the tz database
//   - "Local" returns the machine's zone
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "", "UTC", "GMT":
		return time.UTC, nil
	case "Local", "local":
		return time.Local, nil
	}

	if rest, ok := strings.CutPrefix(name, "UTC"); ok {
		offset, err := ParseOffset(rest)
		if err != nil {
			return nil, fmt.Errorf("parsing timezone %q: %w", name, err)
		}
		return time.FixedZone(name, offset), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseOffset parses "+8", "-4", "+05:30" or "-0330" into seconds east of UTC.
func ParseOffset(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	sign := 1
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	default:
		return 0, fmt.Errorf("offset %q has no sign", s)
	}

	hours, minutes := s, ""
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, minutes = h, m
	} else if len(s) == 4 {
		hours, minutes = s[:2], s[2:]
	}

	h, err := strconv.Atoi(hours)
	if err != nil || h > 14 {
		return 0, fmt.Errorf("invalid offset hours %q", hours)
	}
	m := 0
	if minutes != "" {
		m, err = strconv.Atoi(minutes)
		if err != nil || m >= 60 {
			return 0, fmt.Errorf("invalid offset minutes %q", minutes)
		}
	}
	return sign * (h*3600 + m*60), nil
}

// OffsetLabel formats the offset of loc at t as "UTC+5:30" or "UTC-4".
func OffsetLabel(t time.Time, loc *time.Location) string {
	_, offset := t.In(loc).Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h, m := offset/3600, offset%3600/60
	if m == 0 {
		return fmt.Sprintf("UTC%s%d", sign, h)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
}
