package histogram

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	Location *time.Location
	Title    string
	BarWidth int
}

// Render draws bins as a horizontal bar chart scaled to NiceCeiling.
func Render(bins []Bin, opts RenderOptions) string {
	var output strings.Builder

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	barWidth := opts.BarWidth
	if barWidth <= 0 {
		barWidth = 40
	}
	title := opts.Title
	if title == "" {
		title = "Tap Activity"
	}

	output.WriteString(fmt.Sprintf("📊 %s (%d bins)\n", title, len(bins)))
	output.WriteString(strings.Repeat("─", 50) + "\n")

	if len(bins) == 0 {
		return output.String() + "No activity data available\n"
	}

	total := Total(bins)
	if total < 20 {
		output.WriteString(fmt.Sprintf("⚠️  Limited data: only %d taps in view\n", total))
		output.WriteString(strings.Repeat("─", 50) + "\n")
	}

	ceiling := NiceCeiling(MaxCount(bins))
	layout := labelLayout(bins[0].X0, bins[len(bins)-1].X1)
	bar := color.New(color.FgCyan)
	grey := color.New(color.FgHiBlack)

	for i := range bins {
		b := &bins[i]
		line := b.X0.In(loc).Format(layout) + " "

		if b.Count > 0 {
			line += fmt.Sprintf("(%3d) ", b.Count)
		} else {
			line += "      "
		}

		n := b.Count * barWidth / ceiling
		switch {
		case b.Count == 0:
		case n == 0:
			line += grey.Sprint("·")
		default:
			line += bar.Sprint(strings.Repeat("█", n))
		}
		output.WriteString(line + "\n")
	}

	output.WriteString(fmt.Sprintf("%s y-axis ceiling %d, %d taps\n", strings.Repeat(" ", len(layout)), ceiling, total))
	return output.String()
}

func labelLayout(start, end time.Time) string {
	if end.Sub(start) > 24*time.Hour {
		return "Mon 01/02 15:04"
	}
	return "15:04"
}
