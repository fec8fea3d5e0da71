// Package histogram buckets event timestamps into display bins aligned with
// the chart axis, and renders them for the terminal.
package histogram

import (
	"sort"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
)

// Bin is the half-open interval [X0, X1) and the events that fell inside it.
type Bin struct {
	X0     time.Time   `json:"x0"`
	X1     time.Time   `json:"x1"`
	Events []time.Time `json:"-"`
	Count  int         `json:"count"`
}

// Build partitions the timestamps inside domain into bins whose inner edges
// are the axis ticks for tickCount. Timestamps outside [Start, End) are
// dropped. The input slice is not modified and need not be sorted.
func Build(timestamps []time.Time, domain timescale.Domain, tickCount int, loc *time.Location) []Bin {
	if domain.Validate() != nil {
		return nil
	}

	var thresholds []time.Time
	for _, t := range timescale.Ticks(domain, tickCount, loc) {
		if t.After(domain.Start) && t.Before(domain.End) {
			thresholds = append(thresholds, t)
		}
	}

	bins := make([]Bin, len(thresholds)+1)
	for i := range bins {
		bins[i].X0 = domain.Start
		bins[i].X1 = domain.End
		if i > 0 {
			bins[i].X0 = thresholds[i-1]
		}
		if i < len(thresholds) {
			bins[i].X1 = thresholds[i]
		}
	}

	for _, ts := range timestamps {
		if !domain.Contains(ts) {
			continue
		}
		i := sort.Search(len(thresholds), func(j int) bool {
			return thresholds[j].After(ts)
		})
		bins[i].Events = append(bins[i].Events, ts)
		bins[i].Count++
	}
	return bins
}

// MaxCount returns the largest bin count.
func MaxCount(bins []Bin) int {
	maxCount := 0
	for i := range bins {
		if bins[i].Count > maxCount {
			maxCount = bins[i].Count
		}
	}
	return maxCount
}

// NiceCeiling rounds a maximum bin count up to a readable y-axis ceiling, so
// gridlines stay stable as the data changes.
func NiceCeiling(maxCount int) int {
	switch {
	case maxCount > 300:
		return maxCount - maxCount%50 + 100
	case maxCount > 100:
		return maxCount - maxCount%50 + 50
	default:
		return maxCount - maxCount%10 + 10
	}
}

// Total returns the number of events across all bins.
func Total(bins []Bin) int {
	total := 0
	for i := range bins {
		total += bins[i].Count
	}
	return total
}
