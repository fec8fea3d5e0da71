package timescale

import (
	"math"
	"sort"
	"time"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

type unit int

const (
	unitMillisecond unit = iota
	unitSecond
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

// interval is a calendar step: every `step` units, aligned to multiples
// of step within the enclosing field.
type interval struct {
	unit   unit
	step   int
	approx time.Duration
}

var ladder = []interval{
	{unitSecond, 1, time.Second},
	{unitSecond, 5, 5 * time.Second},
	{unitSecond, 15, 15 * time.Second},
	{unitSecond, 30, 30 * time.Second},
	{unitMinute, 1, time.Minute},
	{unitMinute, 5, 5 * time.Minute},
	{unitMinute, 15, 15 * time.Minute},
	{unitMinute, 30, 30 * time.Minute},
	{unitHour, 1, time.Hour},
	{unitHour, 3, 3 * time.Hour},
	{unitHour, 6, 6 * time.Hour},
	{unitHour, 12, 12 * time.Hour},
	{unitDay, 1, day},
	{unitDay, 2, 2 * day},
	{unitWeek, 1, week},
	{unitMonth, 1, month},
	{unitMonth, 3, 3 * month},
	{unitYear, 1, year},
}

// Ticks returns calendar-aligned instants in [d.Start, d.End], spaced by the
// ladder interval whose width is nearest to d.Width()/n. Alignment is done
// in loc (UTC when nil).
func Ticks(d Domain, n int, loc *time.Location) []time.Time {
	if n <= 0 || !d.Start.Before(d.End) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	iv := chooseInterval(d.Width(), n)
	t := iv.floor(d.Start, loc)
	if t.Before(d.Start) {
		t = iv.next(t, loc)
	}

	var ticks []time.Time
	for !t.After(d.End) {
		ticks = append(ticks, t)
		t = iv.next(t, loc)
	}
	return ticks
}

func chooseInterval(width time.Duration, n int) interval {
	target := float64(width) / float64(n)
	i := sort.Search(len(ladder), func(i int) bool {
		return float64(ladder[i].approx) > target
	})

	switch i {
	case len(ladder):
		step := niceStep(target / float64(year))
		return interval{unit: unitYear, step: step, approx: time.Duration(step) * year}
	case 0:
		step := niceStep(target / float64(time.Millisecond))
		return interval{unit: unitMillisecond, step: step, approx: time.Duration(step) * time.Millisecond}
	}

	lo, hi := ladder[i-1], ladder[i]
	if target/float64(lo.approx) < float64(hi.approx)/target {
		return lo
	}
	return hi
}

// niceStep rounds x to 1, 2 or 5 times a power of ten, never below 1.
func niceStep(x float64) int {
	if x <= 1 {
		return 1
	}
	power := math.Floor(math.Log10(x))
	base := math.Pow(10, power)
	e := x / base
	var factor float64
	switch {
	case e >= math.Sqrt(50):
		factor = 10
	case e >= math.Sqrt(10):
		factor = 5
	case e >= math.Sqrt(2):
		factor = 2
	default:
		factor = 1
	}
	return int(factor * base)
}

func (iv interval) floor(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, mo, d := t.Date()
	h, mi, s := t.Clock()

	switch iv.unit {
	case unitMillisecond:
		step := int64(iv.step)
		ms := t.UnixMilli()
		f := ms / step * step
		if ms < 0 && ms%step != 0 {
			f -= step
		}
		return time.UnixMilli(f).In(loc)
	case unitSecond:
		return time.Date(y, mo, d, h, mi, s-s%iv.step, 0, loc)
	case unitMinute:
		return time.Date(y, mo, d, h, mi-mi%iv.step, 0, 0, loc)
	case unitHour:
		return time.Date(y, mo, d, h-h%iv.step, 0, 0, 0, loc)
	case unitDay:
		return time.Date(y, mo, d-(d-1)%iv.step, 0, 0, 0, 0, loc)
	case unitWeek:
		return time.Date(y, mo, d-int(t.Weekday()), 0, 0, 0, 0, loc)
	case unitMonth:
		m0 := int(mo) - 1
		return time.Date(y, time.Month(m0-m0%iv.step+1), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y-y%iv.step, time.January, 1, 0, 0, 0, 0, loc)
	}
}

func (iv interval) add(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	loc := t.Location()

	switch iv.unit {
	case unitMillisecond:
		return t.Add(time.Duration(iv.step) * time.Millisecond)
	case unitSecond:
		return time.Date(y, mo, d, h, mi, s+iv.step, 0, loc)
	case unitMinute:
		return time.Date(y, mo, d, h, mi+iv.step, 0, 0, loc)
	case unitHour:
		return time.Date(y, mo, d, h+iv.step, 0, 0, 0, loc)
	case unitDay:
		return time.Date(y, mo, d+iv.step, 0, 0, 0, 0, loc)
	case unitWeek:
		return time.Date(y, mo, d+7, 0, 0, 0, 0, loc)
	case unitMonth:
		return time.Date(y, mo+time.Month(iv.step), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y+iv.step, time.January, 1, 0, 0, 0, 0, loc)
	}
}

// next returns the first aligned instant strictly after t.
func (iv interval) next(t time.Time, loc *time.Location) time.Time {
	n := iv.floor(iv.add(t), loc)
	if !n.After(t) {
		// DST transitions can fold an hour back onto itself.
		n = iv.floor(t.Add(iv.approx), loc)
		if !n.After(t) {
			n = t.Add(iv.approx)
		}
	}
	return n
}
