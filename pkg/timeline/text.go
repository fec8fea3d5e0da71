package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

// trackColors cycles through terminal colors per track.
var trackColors = []*color.Color{
	color.New(color.FgYellow),
	color.New(color.FgMagenta),
	color.New(color.FgBlue),
	color.New(color.FgGreen),
	color.New(color.FgRed),
}

// RenderText lists the marks of each track, one line per mark.
func RenderText(tracks []Track, marks []Mark, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var output strings.Builder

	byTrack := make([][]Mark, len(tracks))
	for _, m := range marks {
		if m.Track >= 0 && m.Track < len(tracks) {
			byTrack[m.Track] = append(byTrack[m.Track], m)
		}
	}

	for i, track := range tracks {
		c := trackColors[i%len(trackColors)]
		output.WriteString(fmt.Sprintf("\n%s (%d)\n", c.Sprint(track.Name), len(byTrack[i])))
		output.WriteString(strings.Repeat("─", 50) + "\n")
		if len(byTrack[i]) == 0 {
			output.WriteString("  (nothing in view)\n")
			continue
		}
		for _, m := range byTrack[i] {
			when := m.Record.Start.In(loc).Format("Mon 15:04:05")
			marker := "•"
			if m.Kind == Segment {
				marker = "━"
				when += " – " + m.Record.Stop.In(loc).Format("15:04:05")
			}
			line := fmt.Sprintf("  %s %s", c.Sprint(marker), when)
			if m.Tooltip != "" {
				line += "  " + m.Tooltip
			}
			output.WriteString(line + "\n")
		}
	}
	return output.String()
}
