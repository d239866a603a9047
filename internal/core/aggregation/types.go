package aggregation

import (
	"cmp"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aevon-lab/timebucket/internal/core/period"
)

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Compare(o Date) int {
	if c := cmp.Compare(d.Year, o.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Month, o.Month); c != 0 {
		return c
	}
	return cmp.Compare(d.Day, o.Day)
}

// KeyKind tells whether a Key holds an instant or a calendar date.
type KeyKind uint8

const (
	KindInstant KeyKind = iota + 1
	KindDate
)

// Key identifies a bucket. Instant keys compare by absolute time, whatever
// zone was used to compute them; date keys compare by calendar date.
// Key is comparable and safe to use as a map key.
type Key struct {
	kind KeyKind
	unix int64
	date Date
}

// InstantKey builds a key for the bucket starting at t. Bucket starts never
// carry sub-second precision.
func InstantKey(t time.Time) Key { return Key{kind: KindInstant, unix: t.Unix()} }

// DateKey builds a calendar-date key.
func DateKey(d Date) Key { return Key{kind: KindDate, date: d} }

func (k Key) Kind() KeyKind { return k.kind }

// Instant returns the key's instant in UTC. It is the zero time for date keys.
func (k Key) Instant() time.Time {
	if k.kind != KindInstant {
		return time.Time{}
	}
	return time.Unix(k.unix, 0).UTC()
}

// Date returns the key's calendar date. It is the zero Date for instant keys.
func (k Key) Date() Date { return k.date }

func (k Key) String() string {
	switch k.kind {
	case KindInstant:
		return k.Instant().Format(time.RFC3339)
	case KindDate:
		return k.date.String()
	}
	return ""
}

// Compare orders keys of the same kind chronologically.
func (k Key) Compare(o Key) int {
	if k.kind != o.kind {
		return cmp.Compare(k.kind, o.kind)
	}
	if k.kind == KindDate {
		return k.date.Compare(o.date)
	}
	return cmp.Compare(k.unix, o.unix)
}

// Partial is the running state of one bucket before assembly. Partials built
// on disjoint inputs combine with MergePartial.
type Partial struct {
	Start    time.Time // bucket start in the bucketing zone
	Value    decimal.Decimal
	Count    int64 // records seen, including those without a value
	HasValue bool
}

// add folds one record into p. A nil value counts the record without
// touching the aggregate, the way SQL aggregates skip NULL.
func (p Partial) add(red Reducer, v *decimal.Decimal) Partial {
	p.Count++
	if v == nil {
		return p
	}
	if !p.HasValue {
		p.Value = red.Initial(*v)
		p.HasValue = true
	} else {
		p.Value = red.Apply(p.Value, *v)
	}
	return p
}

// MergePartial combines two partials of the same bucket.
func MergePartial(red Reducer, a, b Partial) Partial {
	out := Partial{Start: a.Start, Count: a.Count + b.Count}
	if out.Start.IsZero() || (!b.Start.IsZero() && b.Start.Before(out.Start)) {
		out.Start = b.Start
	}
	switch {
	case a.HasValue && b.HasValue:
		out.Value, out.HasValue = red.Merge(a.Value, b.Value), true
	case a.HasValue:
		out.Value, out.HasValue = a.Value, true
	case b.HasValue:
		out.Value, out.HasValue = b.Value, true
	}
	return out
}

// MergePartials folds src into dst.
func MergePartials(red Reducer, dst, src map[Key]Partial) {
	for k, p := range src {
		if cur, ok := dst[k]; ok {
			dst[k] = MergePartial(red, cur, p)
			continue
		}
		dst[k] = p
	}
}

// Bucket is one row of a Result.
type Bucket struct {
	Key   Key
	Start time.Time // bucket start, expressed in the bucketing zone
	Value decimal.Decimal
	Count int64 // 0 marks an empty, zero-filled bucket
	// Label is Start rendered through Options.Format, empty without one.
	Label string
}

// Result is the ordered output of an aggregation.
type Result struct {
	Period   period.Unit
	Location *time.Location
	DateOnly bool
	Buckets  []Bucket

	index map[Key]int
}

func newResult(plan *Plan, buckets []Bucket) *Result {
	r := &Result{
		Period:   plan.Truncator.Unit(),
		Location: plan.Location,
		DateOnly: plan.Options.DateOnly,
		Buckets:  buckets,
		index:    make(map[Key]int, len(buckets)),
	}
	for i, b := range buckets {
		r.index[b.Key] = i
	}
	return r
}

func (r *Result) Len() int { return len(r.Buckets) }

// Get returns the bucket for k.
func (r *Result) Get(k Key) (Bucket, bool) {
	i, ok := r.index[k]
	if !ok {
		return Bucket{}, false
	}
	return r.Buckets[i], true
}

// Keys returns the keys in result order.
func (r *Result) Keys() []Key {
	keys := make([]Key, len(r.Buckets))
	for i, b := range r.Buckets {
		keys[i] = b.Key
	}
	return keys
}
