package period

import (
	"fmt"
	"strings"
	"time"
)

// Unit is a bucketing granularity.
type Unit int

const (
	Second Unit = iota + 1
	Minute
	Hour
	Day
	Week
	Month
	Quarter
	Year
)

var unitNames = map[Unit]string{
	Second:  "second",
	Minute:  "minute",
	Hour:    "hour",
	Day:     "day",
	Week:    "week",
	Month:   "month",
	Quarter: "quarter",
	Year:    "year",
}

// Units lists every supported unit from finest to coarsest.
var Units = []Unit{Second, Minute, Hour, Day, Week, Month, Quarter, Year}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Valid reports whether u is one of the known units.
func (u Unit) Valid() bool {
	_, ok := unitNames[u]
	return ok
}

// SubDay reports whether u is finer than a day (second, minute, hour).
func (u Unit) SubDay() bool {
	return u == Second || u == Minute || u == Hour
}

// ParseUnit parses a unit name, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for u, n := range unitNames {
		if n == name {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// ParseWeekday accepts full ("monday") or three-letter ("mon") weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if name == full || name == full[:3] {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
