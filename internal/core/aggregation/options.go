package aggregation

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/zone"
)

// Options configures one bucketing call. Build it once and do not mutate it
// afterwards.
type Options struct {
	Period   period.Unit
	TimeZone zone.Spec
	// WeekStart overrides Env.WeekStart when set.
	WeekStart *time.Weekday
	// DayStart moves the day boundary, in fractional hours past midnight.
	DayStart float64
	// Start and Last bound the range, inclusive.
	Start, Last *time.Time
	DateOnly    bool

	// Series turns zero-fill off when set to false.
	Series  *bool
	Reverse bool
	// LastN selects the N periods ending with the current one. Current set
	// to false ends the range with the previous, complete period instead.
	LastN   int
	Current *bool
	// N groups second, minute and hour periods in multiples (15 minutes).
	N int
	// DefaultValue replaces the reducer identity in empty buckets.
	DefaultValue *decimal.Decimal
	// Format is a strftime pattern for bucket labels. Keys stay canonical.
	Format string
}

// Env carries the ambient settings an Options value is compiled against.
type Env struct {
	Zones     *zone.Resolver
	WeekStart time.Weekday
	Now       func() time.Time
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Plan is a validated Options value with its zone resolved and range bounds
// computed.
type Plan struct {
	Options   Options
	Location  *time.Location
	Truncator *period.Truncator
	Formatter KeyFormatter

	// From and Through filter raw timestamps, inclusive.
	From, Through *time.Time
	// FillStart and FillLast are the first and last bucket starts of the range.
	FillStart, FillLast *time.Time
}

// Contains reports whether ts falls inside the plan's range.
func (p *Plan) Contains(ts time.Time) bool {
	if p.From != nil && ts.Before(*p.From) {
		return false
	}
	if p.Through != nil && ts.After(*p.Through) {
		return false
	}
	return true
}

// Series reports whether empty buckets are filled.
func (p *Plan) Series() bool {
	return p.Options.Series == nil || *p.Options.Series
}

// Validate checks option consistency without returning the plan.
func (o Options) Validate(env Env) error {
	_, err := o.Compile(env)
	return err
}

// Compile validates o and resolves everything that is fixed for the call.
// All failures are *ConfigurationError.
func (o Options) Compile(env Env) (*Plan, error) {
	if o.Period == 0 {
		return nil, configErr("period is required", "period")
	}
	if !o.Period.Valid() {
		return nil, configErr(fmt.Sprintf("unknown period %s", o.Period), "period")
	}
	if o.DateOnly && o.Period.SubDay() {
		return nil, configErr("date_only requires a period of day or longer", "period", "date_only")
	}
	if math.IsNaN(o.DayStart) || o.DayStart < 0 || o.DayStart >= 24 {
		return nil, configErr("day_start must be within [0, 24) hours", "day_start")
	}
	if o.WeekStart != nil && (*o.WeekStart < time.Sunday || *o.WeekStart > time.Saturday) {
		return nil, configErr("week_start is not a weekday", "week_start")
	}
	if o.N < 0 {
		return nil, configErr("n must not be negative", "n")
	}
	if o.LastN < 0 {
		return nil, configErr("last_n must not be negative", "last_n")
	}
	if o.LastN > MaxBuckets {
		return nil, configErr("last_n exceeds the bucket limit", "last_n")
	}
	if o.LastN > 0 && (o.Start != nil || o.Last != nil) {
		return nil, configErr("last_n cannot be combined with an explicit range", "last_n", "range")
	}
	if o.Current != nil && o.LastN == 0 {
		return nil, configErr("current only applies together with last_n", "current", "last_n")
	}
	if o.Start != nil && o.Last != nil && o.Start.After(*o.Last) {
		return nil, configErr("start is after last", "start", "last")
	}

	zones := env.Zones
	if zones == nil {
		zones = zone.NewResolver(nil)
	}
	loc, err := zones.Resolve(o.TimeZone)
	if err != nil {
		return nil, wrapConfigErr(err, "time zone cannot be resolved", "time_zone")
	}

	weekStart := env.WeekStart
	if o.WeekStart != nil {
		weekStart = *o.WeekStart
	}
	tr, err := period.NewTruncator(o.Period, loc, weekStart, o.DayStart, o.N)
	if err != nil {
		var unsupported *period.UnsupportedOptionError
		if errors.As(err, &unsupported) {
			return nil, wrapConfigErr(err, "option does not apply to this period", unsupported.Option, "period")
		}
		return nil, wrapConfigErr(err, "invalid period options", "period")
	}

	plan := &Plan{
		Options:   o,
		Location:  loc,
		Truncator: tr,
		Formatter: NewKeyFormatter(loc, o.DateOnly).WithPattern(o.Format),
		From:      o.Start,
		Through:   o.Last,
	}

	switch {
	case o.LastN > 0:
		last := tr.Truncate(env.now())
		if o.Current != nil && !*o.Current {
			last = tr.Prev(last)
		}
		first := tr.Shift(last, -(o.LastN - 1))
		through := tr.Next(last).Add(-time.Nanosecond)
		plan.From, plan.Through = &first, &through
		plan.FillStart, plan.FillLast = &first, &last
	default:
		if o.Start != nil {
			s := tr.Truncate(*o.Start)
			plan.FillStart = &s
		}
		if o.Last != nil {
			l := tr.Truncate(*o.Last)
			plan.FillLast = &l
		}
	}
	return plan, nil
}

// ParseOptions reads options from query parameters. Parameters that are
// absent keep their zero value.
func ParseOptions(values url.Values) (Options, error) {
	var o Options
	var err error

	if s := values.Get("period"); s != "" {
		if o.Period, err = period.ParseUnit(s); err != nil {
			return o, wrapConfigErr(err, "unknown period", "period")
		}
	}
	o.TimeZone = zone.ParseSpec(values.Get("time_zone"))
	o.Format = values.Get("format")

	if s := values.Get("week_start"); s != "" {
		ws, err := period.ParseWeekday(s)
		if err != nil {
			return o, wrapConfigErr(err, "unknown week_start", "week_start")
		}
		o.WeekStart = &ws
	}
	if s := values.Get("day_start"); s != "" {
		if o.DayStart, err = strconv.ParseFloat(s, 64); err != nil {
			return o, wrapConfigErr(err, "day_start must be a number of hours", "day_start")
		}
	}
	if o.Start, err = parseTimeParam(values, "start"); err != nil {
		return o, err
	}
	if o.Last, err = parseTimeParam(values, "last"); err != nil {
		return o, err
	}
	if o.DateOnly, err = parseBoolParam(values, "date_only"); err != nil {
		return o, err
	}
	if o.Reverse, err = parseBoolParam(values, "reverse"); err != nil {
		return o, err
	}
	if o.Series, err = parseOptionalBool(values, "series"); err != nil {
		return o, err
	}
	if o.Current, err = parseOptionalBool(values, "current"); err != nil {
		return o, err
	}
	if o.LastN, err = parseIntParam(values, "last_n"); err != nil {
		return o, err
	}
	if o.N, err = parseIntParam(values, "n"); err != nil {
		return o, err
	}
	if s := values.Get("default_value"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return o, wrapConfigErr(err, "default_value must be a number", "default_value")
		}
		o.DefaultValue = &d
	}
	return o, nil
}

// ParseTime accepts RFC 3339 timestamps and bare dates, which are read as
// midnight UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func parseTimeParam(values url.Values, name string) (*time.Time, error) {
	s := values.Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, wrapConfigErr(err, name+" must be an RFC 3339 timestamp or a date", name)
	}
	return &t, nil
}

func parseBoolParam(values url.Values, name string) (bool, error) {
	v, err := parseOptionalBool(values, name)
	if err != nil || v == nil {
		return false, err
	}
	return *v, nil
}

func parseOptionalBool(values url.Values, name string) (*bool, error) {
	s := values.Get(name)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, wrapConfigErr(err, name+" must be a boolean", name)
	}
	return &b, nil
}

func parseIntParam(values url.Values, name string) (int, error) {
	s := values.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, wrapConfigErr(err, name+" must be an integer", name)
	}
	return n, nil
}
