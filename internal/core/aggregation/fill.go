package aggregation

import (
	"time"

	"github.com/aevon-lab/timebucket/internal/core/period"
)

// Fill returns every key between the bounds at the truncator's step,
// ascending. Explicit start/last are truncated first; a missing bound falls
// back to the smallest or largest populated key. With nothing populated and
// a bound missing the result is empty.
func Fill(populated []Key, tr *period.Truncator, f KeyFormatter, start, last *time.Time) ([]Key, error) {
	var lo, hi *time.Time
	if start != nil {
		s := tr.Truncate(*start)
		lo = &s
	}
	if last != nil {
		l := tr.Truncate(*last)
		hi = &l
	}
	for _, k := range populated {
		ks := keyStart(k, tr)
		if start == nil && (lo == nil || ks.Before(*lo)) {
			lo = &ks
		}
		if last == nil && (hi == nil || ks.After(*hi)) {
			hi = &ks
		}
	}
	if lo == nil || hi == nil {
		return nil, nil
	}

	starts, err := fillStarts(*lo, *hi, tr)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, len(starts))
	for i, s := range starts {
		keys[i] = f.Format(s)
	}
	return keys, nil
}

// fillStarts lists bucket starts from lo through hi inclusive. Steps come
// from Truncator.Next so filled starts match truncated ones exactly.
func fillStarts(lo, hi time.Time, tr *period.Truncator) ([]time.Time, error) {
	var starts []time.Time
	for b := lo; !b.After(hi); b = tr.Next(b) {
		if len(starts) == MaxBuckets {
			return nil, ErrTooManyBuckets
		}
		starts = append(starts, b)
	}
	return starts, nil
}
