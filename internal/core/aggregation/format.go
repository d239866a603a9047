package aggregation

import (
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/aevon-lab/timebucket/internal/core/period"
)

// KeyFormatter turns truncated instants into bucket keys.
type KeyFormatter struct {
	loc      *time.Location
	dateOnly bool
	pattern  string
}

func NewKeyFormatter(loc *time.Location, dateOnly bool) KeyFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return KeyFormatter{loc: loc, dateOnly: dateOnly}
}

// Format returns the key for a bucket starting at truncated. Date keys use
// the calendar date in the formatter's zone; instant keys ignore the zone.
func (f KeyFormatter) Format(truncated time.Time) Key {
	if f.dateOnly {
		return DateKey(DateOf(truncated.In(f.loc)))
	}
	return InstantKey(truncated)
}

// Display re-expresses a bucket start in the formatter's zone.
func (f KeyFormatter) Display(truncated time.Time) time.Time {
	return truncated.In(f.loc)
}

// WithPattern returns a copy that also renders labels with a strftime
// pattern such as "%b %e, %Y".
func (f KeyFormatter) WithPattern(pattern string) KeyFormatter {
	f.pattern = pattern
	return f
}

// Label renders a bucket start through the pattern in the formatter's zone.
// It is empty when no pattern is set. Keys are not affected.
func (f KeyFormatter) Label(truncated time.Time) string {
	if f.pattern == "" {
		return ""
	}
	return strftime.Format(f.pattern, f.Display(truncated))
}

// keyStart maps a key back to the start of its bucket.
func keyStart(k Key, tr *period.Truncator) time.Time {
	if k.Kind() == KindDate {
		d := k.Date()
		wall := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(tr.DayStart())
		return tr.Truncate(period.ResolveWall(wall, tr.Location()))
	}
	return tr.Truncate(k.Instant())
}
