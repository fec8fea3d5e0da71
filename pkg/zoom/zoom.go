// Package zoom owns the visible time window of an activity chart and the
// pan/zoom operations a viewer can apply to it.
package zoom

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
)

const (
	// MinWidth is the narrowest window zooming can reach.
	MinWidth = 30 * time.Minute
	// MaxWidth is the widest window zooming can reach.
	MaxWidth = 7 * 24 * time.Hour
)

// State is a snapshot of a Controller.
type State struct {
	Domain          timescale.Domain `json:"domain"`
	MinRangeReached bool             `json:"min_range_reached"`
	MaxRangeReached bool             `json:"max_range_reached"`
}

// Controller holds a mutable domain. One Controller belongs to one viewing
// session; the mutex only guards against overlapping handlers.
type Controller struct {
	defaultDomain timescale.Domain
	domain        timescale.Domain
	mu            sync.Mutex
	minReached    bool
	maxReached    bool
}

// DefaultDomain returns yesterday 12:00 to today 12:00 in loc, relative to now.
func DefaultDomain(now time.Time, loc *time.Location) timescale.Domain {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	y, m, d := now.Date()
	end := time.Date(y, m, d, 12, 0, 0, 0, loc)
	return timescale.Domain{Start: end.AddDate(0, 0, -1), End: end}
}

// New creates a controller whose reset target is the default domain at now.
func New(now time.Time, loc *time.Location) *Controller {
	return NewWithDomain(DefaultDomain(now, loc))
}

// NewWithDomain creates a controller that starts at, and resets to, d.
func NewWithDomain(d timescale.Domain) *Controller {
	return &Controller{defaultDomain: d, domain: d}
}

// Restore creates a controller from a previously captured state. Reset
// returns to the default domain for now. A domain already at MinWidth or
// MaxWidth keeps its flag even when the caller did not send it, so panning
// at a zoom limit does not clear it.
func Restore(s State, now time.Time, loc *time.Location) *Controller {
	c := New(now, loc)
	c.domain = s.Domain
	c.minReached = s.MinRangeReached || s.Domain.Width() <= MinWidth
	c.maxReached = s.MaxRangeReached || s.Domain.Width() >= MaxWidth
	return c
}

// State returns the current domain and range flags.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Domain: c.domain, MinRangeReached: c.minReached, MaxRangeReached: c.maxReached}
}

// Domain returns the current domain.
func (c *Controller) Domain() timescale.Domain {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domain
}

// PanLeft moves the window back by half its width.
func (c *Controller) PanLeft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domain = c.domain.Shift(-c.domain.Width() / 2)
}

// PanRight moves the window forward by half its width.
func (c *Controller) PanRight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domain = c.domain.Shift(c.domain.Width() / 2)
}

// ZoomIn halves the window around its center, stopping at MinWidth.
func (c *Controller) ZoomIn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	quarter := c.domain.Width() / 4
	next := timescale.Domain{Start: c.domain.Start.Add(quarter), End: c.domain.End.Add(-quarter)}
	c.maxReached = false
	c.minReached = false
	if next.Width() <= MinWidth {
		next = timescale.Centered(c.domain.Center(), MinWidth)
		c.minReached = true
	}
	c.domain = next
}

// ZoomOut doubles the window around its center, stopping at MaxWidth.
func (c *Controller) ZoomOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	half := c.domain.Width() / 2
	next := timescale.Domain{Start: c.domain.Start.Add(-half), End: c.domain.End.Add(half)}
	c.minReached = false
	c.maxReached = false
	if next.Width() >= MaxWidth {
		next = timescale.Centered(c.domain.Center(), MaxWidth)
		c.maxReached = true
	}
	c.domain = next
}

// SetDomainFromSelection sets the window to a brushed range. Selections
// narrower than MinWidth are widened to MinWidth around their center.
func (c *Controller) SetDomainFromSelection(x0, x1 time.Time) {
	if x1.Before(x0) {
		x0, x1 = x1, x0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := timescale.Domain{Start: x0, End: x1}
	c.maxReached = false
	c.minReached = false
	if next.Width() <= MinWidth {
		next = timescale.Centered(next.Center(), MinWidth)
		c.minReached = true
	}
	c.domain = next
}

// Reset restores the default window and clears both range flags.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domain = c.defaultDomain
	c.minReached = false
	c.maxReached = false
}

// Apply runs a named operation: in, out, left, right or reset.
func (c *Controller) Apply(op string) error {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "in", "zoom-in":
		c.ZoomIn()
	case "out", "zoom-out":
		c.ZoomOut()
	case "left", "pan-left":
		c.PanLeft()
	case "right", "pan-right":
		c.PanRight()
	case "reset":
		c.Reset()
	case "":
	default:
		return fmt.Errorf("unknown zoom operation %q", op)
	}
	return nil
}

// ApplyAll runs a comma separated list of operations in order.
func (c *Controller) ApplyAll(ops string) error {
	for op := range strings.SplitSeq(ops, ",") {
		if err := c.Apply(op); err != nil {
			return err
		}
	}
	return nil
}
