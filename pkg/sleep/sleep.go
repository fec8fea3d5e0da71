// Package sleep converts wearable sleep logs into per-stage timeline tracks.
package sleep

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/timeline"
)

// Log types reported by the wearable.
const (
	TypeStages  = "stages"
	TypeClassic = "classic"
)

// Stage names, in the order their tracks are drawn.
var (
	StagesOrder  = []string{"wake", "rem", "light", "deep"}
	ClassicOrder = []string{"awake", "restless", "asleep"}
)

// DefaultPalette colors each stage.
var DefaultPalette = map[string]string{
	"wake":     "#f87171",
	"rem":      "#38bdf8",
	"light":    "#60a5fa",
	"deep":     "#1e3a8a",
	"awake":    "#f87171",
	"restless": "#fbbf24",
	"asleep":   "#3b82f6",
}

// Level is one contiguous period spent in a stage. Short levels are brief
// wake periods that overlay the long-form stages.
type Level struct {
	Start    time.Time
	Name     string
	Duration time.Duration
	Short    bool
}

// End returns when the level finished.
func (l Level) End() time.Time {
	return l.Start.Add(l.Duration)
}

// Log is one recorded sleep.
type Log struct {
	Start       time.Time
	End         time.Time
	DateOfSleep string
	Type        string
	Levels      []Level
	ID          int64
	IsMainSleep bool
}

// Duration returns the time in bed.
func (l *Log) Duration() time.Duration {
	return l.End.Sub(l.Start)
}

type rawLevel struct {
	DateTime string `json:"dateTime"`
	Level    string `json:"level"`
	Seconds  int    `json:"seconds"`
}

type rawLog struct {
	DateOfSleep string `json:"dateOfSleep"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Type        string `json:"type"`
	Levels      struct {
		Data      []rawLevel `json:"data"`
		ShortData []rawLevel `json:"shortData"`
	} `json:"levels"`
	LogID       int64 `json:"logId"`
	IsMainSleep bool  `json:"isMainSleep"`
}

// Parse reads a sleep export, either {"sleep": [...]} or a bare array.
// Timestamps without a zone are read in loc.
func Parse(r io.Reader, loc *time.Location) ([]Log, error) {
	if loc == nil {
		loc = time.UTC
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading sleep logs: %w", err)
	}

	var raws []rawLog
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &raws)
	} else {
		var wrapper struct {
			Sleep []rawLog `json:"sleep"`
		}
		err = json.Unmarshal(data, &wrapper)
		raws = wrapper.Sleep
	}
	if err != nil {
		return nil, fmt.Errorf("decoding sleep logs: %w", err)
	}

	logs := make([]Log, 0, len(raws))
	for i := range raws {
		log, err := convert(&raws[i], loc)
		if err != nil {
			return nil, fmt.Errorf("sleep log %d: %w", raws[i].LogID, err)
		}
		logs = append(logs, log)
	}
	return logs, nil
}

func convert(raw *rawLog, loc *time.Location) (Log, error) {
	start, err := parseTime(raw.StartTime, loc)
	if err != nil {
		return Log{}, err
	}
	end, err := parseTime(raw.EndTime, loc)
	if err != nil {
		return Log{}, err
	}

	log := Log{
		ID:          raw.LogID,
		DateOfSleep: raw.DateOfSleep,
		Start:       start,
		End:         end,
		Type:        raw.Type,
		IsMainSleep: raw.IsMainSleep,
	}
	if log.Type == "" {
		log.Type = TypeStages
	}

	// Short wake periods overlay the long-form stages.
	short := len(raw.Levels.Data)
	for i, rl := range slices.Concat(raw.Levels.Data, raw.Levels.ShortData) {
		t, err := parseTime(rl.DateTime, loc)
		if err != nil {
			return Log{}, err
		}
		log.Levels = append(log.Levels, Level{
			Start:    t,
			Name:     strings.ToLower(rl.Level),
			Duration: time.Duration(rl.Seconds) * time.Second,
			Short:    i >= short,
		})
	}
	slices.SortStableFunc(log.Levels, func(a, b Level) int { return a.Start.Compare(b.Start) })
	return log, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Order returns the stage order for a log type.
func Order(logType string) []string {
	if logType == TypeClassic {
		return ClassicOrder
	}
	return StagesOrder
}

// Tracks builds one track per stage across all logs. Stages of both log
// types present in logs get tracks; unknown stage names are appended last.
func Tracks(logs []Log, palette map[string]string) []timeline.Track {
	if palette == nil {
		palette = DefaultPalette
	}

	var order []string
	index := map[string]int{}
	add := func(name string) {
		if _, ok := index[name]; !ok {
			index[name] = len(order)
			order = append(order, name)
		}
	}
	for i := range logs {
		for _, name := range Order(logs[i].Type) {
			add(name)
		}
	}
	for i := range logs {
		for _, l := range logs[i].Levels {
			add(l.Name)
		}
	}

	tracks := make([]timeline.Track, len(order))
	for i, name := range order {
		tracks[i].Name = stageTitle(name)
	}
	for i := range logs {
		for _, l := range logs[i].Levels {
			tracks[index[l.Name]].Records = append(tracks[index[l.Name]].Records, timeline.Record{
				Start: l.Start,
				Stop:  l.End(),
				Label: fmt.Sprintf("%s · %d min", stageTitle(l.Name), int(l.Duration.Minutes())),
				Color: palette[l.Name],
			})
		}
	}
	return tracks
}

// StageTotal is the time a log spent in one stage.
type StageTotal struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Summary totals time per stage in drawing order. Time covered by a short
// level counts only toward the short level's stage, so the totals never
// exceed the logged levels' span.
func Summary(log *Log) []StageTotal {
	var short []Level
	for _, l := range log.Levels {
		if l.Short {
			short = append(short, l)
		}
	}

	totals := map[string]time.Duration{}
	for _, l := range log.Levels {
		d := l.Duration
		if !l.Short {
			for _, s := range short {
				d -= overlap(l, s)
			}
		}
		totals[l.Name] += max(d, 0)
	}

	var out []StageTotal
	for _, name := range Order(log.Type) {
		out = append(out, StageTotal{Name: name, Duration: totals[name]})
		delete(totals, name)
	}
	var rest []StageTotal
	for name, d := range totals {
		rest = append(rest, StageTotal{Name: name, Duration: d})
	}
	slices.SortFunc(rest, func(a, b StageTotal) int { return cmp.Compare(a.Name, b.Name) })
	return append(out, rest...)
}

func overlap(a, b Level) time.Duration {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End()
	if b.End().Before(end) {
		end = b.End()
	}
	return max(end.Sub(start), 0)
}

// MainSleep keeps one log per night: the one flagged as main sleep, or else
// the longest. Results are ordered by date.
func MainSleep(logs []Log) []Log {
	best := map[string]int{}
	for i := range logs {
		j, ok := best[logs[i].DateOfSleep]
		if !ok {
			best[logs[i].DateOfSleep] = i
			continue
		}
		cur, prev := &logs[i], &logs[j]
		if (cur.IsMainSleep && !prev.IsMainSleep) ||
			(cur.IsMainSleep == prev.IsMainSleep && cur.Duration() > prev.Duration()) {
			best[logs[i].DateOfSleep] = i
		}
	}

	out := make([]Log, 0, len(best))
	for _, i := range best {
		out = append(out, logs[i])
	}
	slices.SortFunc(out, func(a, b Log) int {
		return cmp.Or(cmp.Compare(a.DateOfSleep, b.DateOfSleep), a.Start.Compare(b.Start))
	})
	return out
}

func stageTitle(name string) string {
	switch name {
	case "rem":
		return "REM"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
