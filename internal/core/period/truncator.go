package period

import (
	"fmt"
	"math"
	"time"
)

// maxSteps bounds the wall-clock stepping loops in Next and Prev. A single
// step always lands past a DST transition in practice; the bound only guards
// against malformed tzdata.
const maxSteps = 64

// UnsupportedOptionError is returned when an option has no meaning for the unit.
type UnsupportedOptionError struct {
	Option string
	Unit   Unit
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("%s is not supported with period %s", e.Option, e.Unit)
}

// Truncator maps instants to the start of their containing period.
// All arithmetic happens on the zone's wall clock; the result is converted
// back to an instant with ResolveWall.
type Truncator struct {
	unit      Unit
	loc       *time.Location
	weekStart time.Weekday
	dayStart  time.Duration
	n         int
}

// NewTruncator builds a truncator. dayStart is in fractional hours and only
// applies to day and longer units; n is a multiple for second, minute and hour
// (0 and 1 both mean a single unit).
func NewTruncator(unit Unit, loc *time.Location, weekStart time.Weekday, dayStart float64, n int) (*Truncator, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("unknown period %s", unit)
	}
	if loc == nil {
		loc = time.UTC
	}
	if weekStart < time.Sunday || weekStart > time.Saturday {
		return nil, fmt.Errorf("invalid week start %d", int(weekStart))
	}
	if math.IsNaN(dayStart) || dayStart < 0 || dayStart >= 24 {
		return nil, fmt.Errorf("day_start %v outside [0, 24)", dayStart)
	}
	if dayStart != 0 && unit.SubDay() {
		return nil, &UnsupportedOptionError{Option: "day_start", Unit: unit}
	}
	if n < 0 {
		return nil, fmt.Errorf("n must not be negative, got %d", n)
	}
	if n == 0 {
		n = 1
	}
	if n > 1 && !unit.SubDay() {
		return nil, &UnsupportedOptionError{Option: "n", Unit: unit}
	}
	return &Truncator{
		unit:      unit,
		loc:       loc,
		weekStart: weekStart,
		dayStart:  time.Duration(math.Round(dayStart*3600)) * time.Second,
		n:         n,
	}, nil
}

func (t *Truncator) Unit() Unit { return t.unit }
func (t *Truncator) Location() *time.Location { return t.loc }
func (t *Truncator) WeekStart() time.Weekday { return t.weekStart }
func (t *Truncator) DayStart() time.Duration { return t.dayStart }
func (t *Truncator) N() int { return t.n }

// Truncate returns the start of the period containing ts, expressed in the
// truncator's zone.
func (t *Truncator) Truncate(ts time.Time) time.Time {
	return ResolveWall(t.floor(Wall(ts, t.loc)), t.loc)
}

// Next returns the start of the period following the one that starts at b.
func (t *Truncator) Next(b time.Time) time.Time {
	w := t.floor(Wall(b, t.loc))
	var cand time.Time
	for step := 1; step <= maxSteps; step++ {
		cand = ResolveWall(t.floor(t.step(w, step*t.n)), t.loc)
		if cand.After(b) {
			return cand
		}
	}
	return cand
}

// Prev returns the start of the period preceding the one that starts at b.
func (t *Truncator) Prev(b time.Time) time.Time {
	w := t.floor(Wall(b, t.loc))
	var cand time.Time
	// Step back one base unit at a time so multiples of n land on the
	// previous bucket rather than skipping past it.
	for step := 1; step <= maxSteps*t.n; step++ {
		cand = ResolveWall(t.floor(t.step(w, -step)), t.loc)
		if cand.Before(b) {
			return cand
		}
	}
	return cand
}

// Shift moves k periods forward (k > 0) or backward (k < 0) from the period
// containing b.
func (t *Truncator) Shift(b time.Time, k int) time.Time {
	cur := t.Truncate(b)
	for ; k > 0; k-- {
		cur = t.Next(cur)
	}
	for ; k < 0; k++ {
		cur = t.Prev(cur)
	}
	return cur
}

// floor truncates a wall-clock value. The input and output carry UTC as a
// placeholder location; only their fields are meaningful.
func (t *Truncator) floor(w time.Time) time.Time {
	switch t.unit {
	case Second:
		s := w.Second() - w.Second()%t.n
		return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), s, 0, time.UTC)
	case Minute:
		m := w.Minute() - w.Minute()%t.n
		return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), m, 0, 0, time.UTC)
	case Hour:
		h := w.Hour() - w.Hour()%t.n
		return time.Date(w.Year(), w.Month(), w.Day(), h, 0, 0, 0, time.UTC)
	}

	shifted := w.Add(-t.dayStart)
	y, m, d := shifted.Date()
	switch t.unit {
	case Week:
		d -= (int(shifted.Weekday()) - int(t.weekStart) + 7) % 7
	case Month:
		d = 1
	case Quarter:
		m = ((m-1)/3)*3 + 1
		d = 1
	case Year:
		m, d = time.January, 1
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(t.dayStart)
}

func (t *Truncator) step(w time.Time, k int) time.Time {
	switch t.unit {
	case Second:
		return w.Add(time.Duration(k) * time.Second)
	case Minute:
		return w.Add(time.Duration(k) * time.Minute)
	case Hour:
		return w.Add(time.Duration(k) * time.Hour)
	case Day:
		return w.AddDate(0, 0, k)
	case Week:
		return w.AddDate(0, 0, 7*k)
	case Month:
		return w.AddDate(0, k, 0)
	case Quarter:
		return w.AddDate(0, 3*k, 0)
	default:
		return w.AddDate(k, 0, 0)
	}
}

// Wall returns the wall clock of ts in loc, carried on a UTC time value.
func Wall(ts time.Time, loc *time.Location) time.Time {
	l := ts.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// ResolveWall converts a wall-clock reading in loc to an instant. Only the
// date and clock fields of wall are used; its location is ignored.
//
// A reading that occurs twice (fall-back overlap) resolves to the earlier
// instant. A reading that never occurs (spring-forward gap) resolves to the
// transition instant, the first valid instant after the gap.
func ResolveWall(wall time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	naive := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)

	var best, earliest time.Time
	found := false
	for _, probe := range []time.Duration{-24 * time.Hour, 0, 24 * time.Hour} {
		_, offset := naive.Add(probe).In(loc).Zone()
		cand := naive.Add(-time.Duration(offset) * time.Second)
		if earliest.IsZero() || cand.Before(earliest) {
			earliest = cand
		}
		if Wall(cand, loc).Equal(naive) && (!found || cand.Before(best)) {
			best, found = cand, true
		}
	}
	if found {
		return best.In(loc)
	}

	_, end := earliest.In(loc).ZoneBounds()
	if end.IsZero() {
		return earliest.In(loc)
	}
	return end.In(loc)
}
