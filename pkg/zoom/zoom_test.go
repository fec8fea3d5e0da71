package zoom

import (
	"testing"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/timescale"
)

var now = time.Date(2024, time.June, 10, 15, 42, 7, 0, time.UTC)

func TestDefaultDomain(t *testing.T) {
	d := DefaultDomain(now, time.UTC)
	wantStart := time.Date(2024, time.June, 9, 12, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	if !d.Start.Equal(wantStart) || !d.End.Equal(wantEnd) {
		t.Errorf("DefaultDomain() = %v, want [%v, %v)", d, wantStart, wantEnd)
	}
}

func TestZoomInFloor(t *testing.T) {
	c := New(now, time.UTC)
	for i := range 20 {
		c.ZoomIn()
		s := c.State()
		if s.Domain.Width() < MinWidth {
			t.Fatalf("after %d zoom-ins width %v is below floor", i+1, s.Domain.Width())
		}
		if s.MaxRangeReached {
			t.Fatalf("MaxRangeReached set after zoom in")
		}
	}
	s := c.State()
	if s.Domain.Width() != MinWidth {
		t.Errorf("width = %v, want %v", s.Domain.Width(), MinWidth)
	}
	if !s.MinRangeReached {
		t.Error("MinRangeReached = false, want true")
	}

	held := s.Domain
	c.ZoomIn()
	if c.Domain() != held {
		t.Errorf("zoom in at floor drifted: %v -> %v", held, c.Domain())
	}
	if !c.State().MinRangeReached {
		t.Error("MinRangeReached cleared by zoom in at floor")
	}

	c.ZoomOut()
	if c.State().MinRangeReached {
		t.Error("MinRangeReached still set after zoom out")
	}
}

func TestZoomOutCeiling(t *testing.T) {
	c := New(now, time.UTC)
	for range 10 {
		c.ZoomOut()
	}
	s := c.State()
	if s.Domain.Width() < 518_400_000*time.Millisecond {
		t.Errorf("width = %v, want at least 6 days", s.Domain.Width())
	}
	if s.Domain.Width() != MaxWidth {
		t.Errorf("width = %v, want %v", s.Domain.Width(), MaxWidth)
	}
	if !s.MaxRangeReached {
		t.Error("MaxRangeReached = false, want true")
	}

	held := s.Domain
	c.ZoomOut()
	if c.Domain() != held {
		t.Errorf("zoom out at ceiling drifted: %v -> %v", held, c.Domain())
	}
}

func TestZoomInHalvesAroundCenter(t *testing.T) {
	c := New(now, time.UTC)
	before := c.Domain()
	c.ZoomIn()
	after := c.Domain()
	if after.Width() != before.Width()/2 {
		t.Errorf("width = %v, want %v", after.Width(), before.Width()/2)
	}
	if !after.Center().Equal(before.Center()) {
		t.Errorf("center moved from %v to %v", before.Center(), after.Center())
	}
}

func TestPanRoundTrip(t *testing.T) {
	domains := []timescale.Domain{
		DefaultDomain(now, time.UTC),
		{Start: now, End: now.Add(31*time.Minute + 7*time.Millisecond)},
		{Start: now, End: now.Add(5*24*time.Hour + 3)},
	}
	for _, d := range domains {
		c := NewWithDomain(d)
		c.PanLeft()
		if c.Domain().Width() != d.Width() {
			t.Errorf("PanLeft changed width %v -> %v", d.Width(), c.Domain().Width())
		}
		c.PanRight()
		if c.Domain() != d {
			t.Errorf("PanLeft+PanRight = %v, want %v", c.Domain(), d)
		}
	}
}

func TestSetDomainFromSelection(t *testing.T) {
	c := New(now, time.UTC)
	c.SetDomainFromSelection(now, now.Add(10*time.Minute))
	s := c.State()
	if s.Domain.Width() != MinWidth {
		t.Errorf("width = %v, want %v", s.Domain.Width(), MinWidth)
	}
	if !s.Domain.Center().Equal(now.Add(5 * time.Minute)) {
		t.Errorf("center = %v, want selection center", s.Domain.Center())
	}
	if !s.MinRangeReached {
		t.Error("MinRangeReached = false, want true")
	}

	c.SetDomainFromSelection(now, now.Add(2*time.Hour))
	s = c.State()
	if s.Domain.Width() != 2*time.Hour || s.MinRangeReached {
		t.Errorf("selection state = %+v, want 2h domain without min flag", s)
	}
}

func TestRestoreKeepsRangeFlags(t *testing.T) {
	c := NewWithDomain(timescale.Domain{Start: now, End: now.Add(time.Hour)})
	c.ZoomIn()
	s := c.State()
	if !s.MinRangeReached {
		t.Fatalf("ZoomIn() state = %+v, want min flag", s)
	}

	// A client that only echoes the domain back.
	r := Restore(State{Domain: s.Domain}, now, time.UTC)
	r.PanLeft()
	got := r.State()
	if !got.MinRangeReached {
		t.Errorf("PanLeft after Restore cleared min flag: %+v", got)
	}
	if got.Domain.Width() != MinWidth || !got.Domain.End.Equal(s.Domain.Center()) {
		t.Errorf("PanLeft after Restore domain = %v", got.Domain)
	}
	r.ZoomOut()
	if r.State().MinRangeReached {
		t.Error("ZoomOut did not clear min flag")
	}

	wide := Restore(State{Domain: timescale.Centered(now, MaxWidth)}, now, time.UTC)
	wide.PanRight()
	if !wide.State().MaxRangeReached {
		t.Error("PanRight at MaxWidth cleared max flag")
	}

	mid := Restore(State{Domain: timescale.Domain{Start: now, End: now.Add(2 * time.Hour)}, MinRangeReached: true}, now, time.UTC)
	if !mid.State().MinRangeReached {
		t.Error("Restore dropped an explicit min flag")
	}
}

func TestReset(t *testing.T) {
	c := New(now, time.UTC)
	for range 10 {
		c.ZoomIn()
	}
	c.PanRight()
	c.Reset()
	s := c.State()
	if s.Domain != DefaultDomain(now, time.UTC) || s.MinRangeReached || s.MaxRangeReached {
		t.Errorf("Reset() state = %+v", s)
	}
}

func TestApplyAll(t *testing.T) {
	c := New(now, time.UTC)
	if err := c.ApplyAll("in, in,left"); err != nil {
		t.Fatalf("ApplyAll() error = %v", err)
	}
	if got := c.Domain().Width(); got != 6*time.Hour {
		t.Errorf("width = %v, want 6h", got)
	}
	if err := c.Apply("sideways"); err == nil {
		t.Error("Apply(sideways) should fail")
	}
}
