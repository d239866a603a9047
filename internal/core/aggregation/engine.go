package aggregation

import (
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Reduction pairs a Reducer with the value it folds for each record.
type Reduction[R any] struct {
	Reducer Reducer
	// Value extracts the value to fold. A nil Value folds every record with
	// a zero value, which is what count needs. Records for which Value
	// reports false are counted but not folded.
	Value func(R) (decimal.Decimal, bool)
}

// Count is the default reduction.
func Count[R any]() Reduction[R] {
	return Reduction[R]{Reducer: Operators[OpCount]}
}

func (r Reduction[R]) orDefault() Reduction[R] {
	if r.Reducer == nil {
		r.Reducer = Operators[OpCount]
	}
	return r
}

func (r Reduction[R]) value(rec R) *decimal.Decimal {
	if r.Value == nil {
		zero := decimal.Zero
		return &zero
	}
	v, ok := r.Value(rec)
	if !ok {
		return nil
	}
	return &v
}

// Aggregate buckets records and reduces each bucket. Options are validated
// before the first record is read. Records whose extractor reports no
// timestamp are skipped entirely.
func Aggregate[R any](records iter.Seq[R], extract func(R) (time.Time, bool), opts Options, red Reduction[R], env Env) (*Result, error) {
	plan, err := opts.Compile(env)
	if err != nil {
		return nil, err
	}
	red = red.orDefault()
	return Assemble(Accumulate(records, extract, plan, red), plan, red.Reducer)
}

// Accumulate runs the per-record part of an aggregation and returns the
// unfilled partials.
func Accumulate[R any](records iter.Seq[R], extract func(R) (time.Time, bool), plan *Plan, red Reduction[R]) map[Key]Partial {
	red = red.orDefault()
	partials := make(map[Key]Partial)
	for rec := range records {
		ts, ok := extract(rec)
		if !ok || !plan.Contains(ts) {
			continue
		}
		start := plan.Truncator.Truncate(ts)
		key := plan.Formatter.Format(start)
		p := partials[key]
		if p.Start.IsZero() {
			p.Start = start
		}
		partials[key] = p.add(red.Reducer, red.value(rec))
	}
	return partials
}

// Assemble turns partials into an ordered Result: it drops buckets outside
// the plan's range, zero-fills unless series is off, and applies reverse
// ordering. Pushdown backends hand their converted partials to it so both
// paths share one tail.
func Assemble(partials map[Key]Partial, plan *Plan, red Reducer) (*Result, error) {
	if red == nil {
		red = Operators[OpCount]
	}
	empty := red.Identity()
	if plan.Options.DefaultValue != nil {
		empty = *plan.Options.DefaultValue
	}

	inRange := make(map[Key]Partial, len(partials))
	for k, p := range partials {
		if plan.FillStart != nil && p.Start.Before(*plan.FillStart) {
			continue
		}
		if plan.FillLast != nil && p.Start.After(*plan.FillLast) {
			continue
		}
		inRange[k] = p
	}

	toBucket := func(k Key, start time.Time) Bucket {
		b := Bucket{
			Key:   k,
			Start: plan.Formatter.Display(start),
			Value: empty,
			Label: plan.Formatter.Label(start),
		}
		if p, ok := inRange[k]; ok {
			b.Count = p.Count
			if p.HasValue {
				b.Value = p.Value
			}
		}
		return b
	}

	var buckets []Bucket
	if plan.Series() {
		lo, hi, ok := fillBounds(inRange, plan)
		if ok {
			starts, err := fillStarts(lo, hi, plan.Truncator)
			if err != nil {
				return nil, err
			}
			buckets = make([]Bucket, 0, len(starts))
			for _, s := range starts {
				buckets = append(buckets, toBucket(plan.Formatter.Format(s), s))
			}
		}
	} else {
		keys := slices.SortedFunc(maps.Keys(inRange), Key.Compare)
		buckets = make([]Bucket, 0, len(keys))
		for _, k := range keys {
			buckets = append(buckets, toBucket(k, inRange[k].Start))
		}
	}

	if plan.Options.Reverse {
		slices.Reverse(buckets)
	}
	return newResult(plan, buckets), nil
}

func fillBounds(partials map[Key]Partial, plan *Plan) (lo, hi time.Time, ok bool) {
	var haveLo, haveHi bool
	if plan.FillStart != nil {
		lo, haveLo = *plan.FillStart, true
	}
	if plan.FillLast != nil {
		hi, haveHi = *plan.FillLast, true
	}
	for _, p := range partials {
		if plan.FillStart == nil && (!haveLo || p.Start.Before(lo)) {
			lo, haveLo = p.Start, true
		}
		if plan.FillLast == nil && (!haveHi || p.Start.After(hi)) {
			hi, haveHi = p.Start, true
		}
	}
	return lo, hi, haveLo && haveHi
}
