package gemini

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/bouts"
	"github.com/codeGROOVE-dev/ditti/pkg/sleep"
	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
)

// Activity is what the model is told about one participant window.
type Activity struct {
	Start       time.Time
	End         time.Time
	Location    *time.Location
	DittiID     string
	Sleep       []sleep.StageTotal
	Timezones   []tzconvert.Marker
	BoutLabels  []string
	Taps        int
	AudioTaps   int
	BoutSummary bouts.Summary
}

const promptTemplate = `You are helping a sleep researcher review a study participant's tap log.
Participants tap their phone when they are awake in bed at night; bursts of
taps ("bouts") suggest restless periods. Write a short, neutral digest for the
research team. Do not speculate about diagnoses.

WINDOW: %s to %s (%s)
PARTICIPANT: %s

ACTIVITY:
%s`

// BuildPrompt renders a deterministic prompt for a, so identical windows hit
// the cache.
func BuildPrompt(a Activity) string {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	const layout = "2006-01-02 15:04"

	var b strings.Builder
	fmt.Fprintf(&b, "- taps: %d\n", a.Taps)
	fmt.Fprintf(&b, "- audio taps: %d\n", a.AudioTaps)
	fmt.Fprintf(&b, "- bouts: %d\n", a.BoutSummary.Bouts)
	fmt.Fprintf(&b, "- taps outside bouts: %d\n", a.BoutSummary.Singles)
	if a.BoutSummary.LongestBout > 0 {
		fmt.Fprintf(&b, "- longest bout: %.0f minutes\n", a.BoutSummary.LongestBout.Minutes())
	}
	for _, label := range a.BoutLabels {
		fmt.Fprintf(&b, "- bout rate: %s\n", label)
	}
	for _, st := range a.Sleep {
		if st.Duration > 0 {
			fmt.Fprintf(&b, "- sleep stage %s: %.0f minutes\n", st.Name, st.Duration.Minutes())
		}
	}
	for _, m := range a.Timezones {
		fmt.Fprintf(&b, "- device timezone %s from %s\n", m.Name, m.Time.In(loc).Format(layout))
	}

	return fmt.Sprintf(promptTemplate,
		a.Start.In(loc).Format(layout), a.End.In(loc).Format(layout), loc,
		a.DittiID, b.String())
}
