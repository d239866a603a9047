package aggregation

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/zone"
)

type testRecord struct {
	id    string
	at    *time.Time
	value *decimal.Decimal
}

func at(s string) *time.Time {
	t := mustTime(s)
	return &t
}

func mustTime(s string) time.Time {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func extractAt(r testRecord) (time.Time, bool) {
	if r.at == nil {
		return time.Time{}, false
	}
	return *r.at, true
}

func valueReduction(op string) Reduction[testRecord] {
	return Reduction[testRecord]{
		Reducer: Operators[op],
		Value: func(r testRecord) (decimal.Decimal, bool) {
			if r.value == nil {
				return decimal.Zero, false
			}
			return *r.value, true
		},
	}
}

func counts(t *testing.T, res *Result) map[string]int64 {
	t.Helper()
	out := make(map[string]int64, res.Len())
	for _, b := range res.Buckets {
		out[b.Key.String()] = b.Value.IntPart()
	}
	return out
}

func keyStrings(res *Result) []string {
	out := make([]string, 0, res.Len())
	for _, k := range res.Keys() {
		out = append(out, k.String())
	}
	return out
}

func TestAggregate_DailyCountsWithGap(t *testing.T) {
	records := []testRecord{
		{at: at("2024-01-01T10:00:00Z")},
		{at: at("2024-01-03T23:59:59Z")},
	}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Day}, Count[testRecord](), Env{})
	require.NoError(t, err)

	require.Equal(t, []string{
		"2024-01-01T00:00:00Z",
		"2024-01-02T00:00:00Z",
		"2024-01-03T00:00:00Z",
	}, keyStrings(res))
	require.Equal(t, map[string]int64{
		"2024-01-01T00:00:00Z": 1,
		"2024-01-02T00:00:00Z": 0,
		"2024-01-03T00:00:00Z": 1,
	}, counts(t, res))

	gap, ok := res.Get(InstantKey(mustTime("2024-01-02T00:00:00Z")))
	require.True(t, ok)
	require.Zero(t, gap.Count)
}

func TestAggregate_NullTimestampsAreSkipped(t *testing.T) {
	records := []testRecord{
		{at: nil},
		{at: at("2024-01-05T10:00:00Z")},
		{at: nil},
	}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Day}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-05T00:00:00Z"}, keyStrings(res))
	require.Equal(t, int64(1), res.Buckets[0].Count)

	onlyNull := []testRecord{{at: nil}}
	res, err = Aggregate(slices.Values(onlyNull), extractAt, Options{Period: period.Day}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Zero(t, res.Len())
}

func TestAggregate_PacificSpringForwardDay(t *testing.T) {
	records := []testRecord{{at: at("2024-03-10T09:00:00Z")}}
	opts := Options{Period: period.Day, TimeZone: zone.Named("Pacific Time (US & Canada)")}

	res, err := Aggregate(slices.Values(records), extractAt, opts, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())

	b := res.Buckets[0]
	require.True(t, mustTime("2024-03-10T08:00:00Z").Equal(b.Start))
	require.Equal(t, "America/Los_Angeles", b.Start.Location().String())
	require.Equal(t, "America/Los_Angeles", res.Location.String())
}

func TestAggregate_QuarterUTC(t *testing.T) {
	records := []testRecord{{at: at("2024-05-15T00:00:00Z")}}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Quarter}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-04-01T00:00:00Z"}, keyStrings(res))
}

func TestAggregate_HourWithDateOnlyIsConfigurationError(t *testing.T) {
	read := 0
	records := func(yield func(testRecord) bool) {
		read++
		yield(testRecord{at: at("2024-01-01T00:00:00Z")})
	}

	_, err := Aggregate(records, extractAt, Options{Period: period.Hour, DateOnly: true}, Count[testRecord](), Env{})

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.ElementsMatch(t, []string{"period", "date_only"}, cfgErr.Options)
	require.Zero(t, read, "no record may be read when options are invalid")
}

func TestAggregate_DateOnlyKeys(t *testing.T) {
	records := []testRecord{
		{at: at("2024-01-01T07:00:00Z")},
		{at: at("2024-01-01T09:00:00Z")},
	}
	opts := Options{Period: period.Day, DateOnly: true, TimeZone: zone.Named("America/Los_Angeles")}

	res, err := Aggregate(slices.Values(records), extractAt, opts, Count[testRecord](), Env{})
	require.NoError(t, err)
	// 07:00Z is still Dec 31 in Los Angeles; 09:00Z is Jan 1.
	require.Equal(t, []string{"2023-12-31", "2024-01-01"}, keyStrings(res))
	for _, k := range res.Keys() {
		require.Equal(t, KindDate, k.Kind())
	}
	b, ok := res.Get(DateKey(Date{Year: 2024, Month: time.January, Day: 1}))
	require.True(t, ok)
	require.Equal(t, int64(1), b.Count)
}

func TestAggregate_SameInstantSameZoneCoBuckets(t *testing.T) {
	berlin := mustTime("2024-06-01T12:00:00+02:00")
	utcSame := mustTime("2024-06-01T10:00:00Z")
	records := []testRecord{{at: &berlin}, {at: &utcSame}}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Day, DateOnly: true, TimeZone: zone.Named("Asia/Tokyo")}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	require.Equal(t, int64(2), res.Buckets[0].Count)
}

func TestAggregate_DayStart(t *testing.T) {
	records := []testRecord{
		{at: at("2024-01-02T05:59:00Z")},
		{at: at("2024-01-02T06:00:00Z")},
	}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Day, DayStart: 6}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-01T06:00:00Z", "2024-01-02T06:00:00Z"}, keyStrings(res))
}

func TestAggregate_ExplicitRangeFillsAndFilters(t *testing.T) {
	records := []testRecord{
		{at: at("2023-12-31T12:00:00Z")},
		{at: at("2024-01-02T12:00:00Z")},
		{at: at("2024-01-09T12:00:00Z")},
	}
	opts := Options{
		Period: period.Day,
		Start:  at("2024-01-01T00:00:00Z"),
		Last:   at("2024-01-04T12:00:00Z"),
	}

	res, err := Aggregate(slices.Values(records), extractAt, opts, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{
		"2024-01-01T00:00:00Z",
		"2024-01-02T00:00:00Z",
		"2024-01-03T00:00:00Z",
		"2024-01-04T00:00:00Z",
	}, keyStrings(res))
	require.Equal(t, int64(1), res.Buckets[1].Value.IntPart())
}

func TestAggregate_EmptyWithExplicitRangeIsAllZero(t *testing.T) {
	opts := Options{
		Period: period.Month,
		Start:  at("2024-01-15T00:00:00Z"),
		Last:   at("2024-04-01T00:00:00Z"),
	}

	res, err := Aggregate(slices.Values([]testRecord(nil)), extractAt, opts, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, 4, res.Len())
	for i, b := range res.Buckets {
		require.True(t, b.Value.IsZero())
		require.Zero(t, b.Count)
		if i > 0 {
			require.True(t, b.Start.After(res.Buckets[i-1].Start))
		}
	}
}

func TestAggregate_Reducers(t *testing.T) {
	records := []testRecord{
		{at: at("2024-01-01T01:00:00Z"), value: dec("4")},
		{at: at("2024-01-01T02:00:00Z"), value: dec("-1.5")},
		{at: at("2024-01-01T03:00:00Z"), value: nil},
		{at: at("2024-01-03T01:00:00Z"), value: dec("10")},
	}

	tests := []struct {
		op       string
		wantJan1 string
	}{
		{op: OpSum, wantJan1: "2.5"},
		{op: OpMin, wantJan1: "-1.5"},
		{op: OpMax, wantJan1: "4"},
	}

	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Day}, valueReduction(tc.op), Env{})
			require.NoError(t, err)
			require.Equal(t, 3, res.Len())

			jan1 := res.Buckets[0]
			assert.True(t, decimal.RequireFromString(tc.wantJan1).Equal(jan1.Value), "got %s", jan1.Value)
			assert.Equal(t, int64(3), jan1.Count)

			jan2 := res.Buckets[1]
			assert.True(t, jan2.Value.IsZero())
			assert.Zero(t, jan2.Count)
		})
	}
}

func TestAggregate_DefaultValue(t *testing.T) {
	records := []testRecord{
		{at: at("2024-01-01T01:00:00Z"), value: dec("4")},
		{at: at("2024-01-03T01:00:00Z"), value: dec("5")},
	}
	opts := Options{Period: period.Day, DefaultValue: dec("-1")}

	res, err := Aggregate(slices.Values(records), extractAt, opts, valueReduction(OpMax), Env{})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(-1).Equal(res.Buckets[1].Value))
}

func TestAggregate_SeriesOffAndReverse(t *testing.T) {
	records := []testRecord{
		{at: at("2024-03-01T00:00:00Z")},
		{at: at("2024-01-01T00:00:00Z")},
	}
	noSeries := false

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Month, Series: &noSeries}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z"}, keyStrings(res))

	res, err = Aggregate(slices.Values(records), extractAt, Options{Period: period.Month, Reverse: true}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-03-01T00:00:00Z", "2024-02-01T00:00:00Z", "2024-01-01T00:00:00Z"}, keyStrings(res))
}

func TestAggregate_LastN(t *testing.T) {
	now := func() time.Time { return mustTime("2024-05-15T10:30:00Z") }
	records := []testRecord{
		{at: at("2024-02-20T00:00:00Z")},
		{at: at("2024-03-20T00:00:00Z")},
		{at: at("2024-05-15T09:00:00Z")},
	}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Month, LastN: 3}, Count[testRecord](), Env{Now: now})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-03-01T00:00:00Z", "2024-04-01T00:00:00Z", "2024-05-01T00:00:00Z"}, keyStrings(res))
	require.Equal(t, []int64{1, 0, 1}, []int64{res.Buckets[0].Count, res.Buckets[1].Count, res.Buckets[2].Count})

	notCurrent := false
	res, err = Aggregate(slices.Values(records), extractAt, Options{Period: period.Month, LastN: 3, Current: &notCurrent}, Count[testRecord](), Env{Now: now})
	require.NoError(t, err)
	require.Equal(t, []string{"2024-02-01T00:00:00Z", "2024-03-01T00:00:00Z", "2024-04-01T00:00:00Z"}, keyStrings(res))
}

func TestAggregate_MinuteMultiples(t *testing.T) {
	records := []testRecord{
		{at: at("2024-01-01T10:01:00Z")},
		{at: at("2024-01-01T10:14:59Z")},
		{at: at("2024-01-01T10:46:00Z")},
	}

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Minute, N: 15}, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{
		"2024-01-01T10:00:00Z",
		"2024-01-01T10:15:00Z",
		"2024-01-01T10:30:00Z",
		"2024-01-01T10:45:00Z",
	}, keyStrings(res))
	require.Equal(t, int64(2), res.Buckets[0].Count)
}

func TestAggregate_AmbientZoneAndWeekStart(t *testing.T) {
	tokyo, err := zone.Load("Asia/Tokyo")
	require.NoError(t, err)
	env := Env{Zones: zone.NewResolver(tokyo), WeekStart: time.Monday}
	records := []testRecord{{at: at("2024-05-12T16:00:00Z")}} // Monday 01:00 in Tokyo

	res, err := Aggregate(slices.Values(records), extractAt, Options{Period: period.Week}, Count[testRecord](), env)
	require.NoError(t, err)
	require.Equal(t, time.Monday, res.Buckets[0].Start.Weekday())
	require.True(t, mustTime("2024-05-12T15:00:00Z").Equal(res.Buckets[0].Start))

	sunday := time.Sunday
	res, err = Aggregate(slices.Values(records), extractAt, Options{Period: period.Week, WeekStart: &sunday, TimeZone: zone.Flag(false)}, Count[testRecord](), env)
	require.NoError(t, err)
	require.True(t, mustTime("2024-05-12T00:00:00Z").Equal(res.Buckets[0].Start))
}

func TestAggregate_DSTDaysFillWithoutDrift(t *testing.T) {
	records := []testRecord{
		{at: at("2024-03-08T20:00:00Z")},
		{at: at("2024-03-12T20:00:00Z")},
		{at: at("2024-11-05T20:00:00Z")},
	}
	opts := Options{Period: period.Day, TimeZone: zone.Named("America/Los_Angeles"), DayStart: 2.5, Start: at("2024-03-08T00:00:00Z"), Last: at("2024-03-13T00:00:00Z")}

	res, err := Aggregate(slices.Values(records), extractAt, opts, Count[testRecord](), Env{})
	require.NoError(t, err)
	require.Equal(t, []string{
		"2024-03-07T10:30:00Z",
		"2024-03-08T10:30:00Z",
		"2024-03-09T10:30:00Z",
		"2024-03-10T10:00:00Z",
		"2024-03-11T09:30:00Z",
		"2024-03-12T09:30:00Z",
	}, keyStrings(res))
	require.Equal(t, int64(1), res.Buckets[1].Count)
	require.Equal(t, int64(1), res.Buckets[5].Count)
}

func TestAggregate_TooManyBuckets(t *testing.T) {
	opts := Options{Period: period.Second, Start: at("2024-01-01T00:00:00Z"), Last: at("2024-01-31T00:00:00Z")}

	_, err := Aggregate(slices.Values([]testRecord(nil)), extractAt, opts, Count[testRecord](), Env{})
	require.ErrorIs(t, err, ErrTooManyBuckets)
}
