package aggregation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/zone"
)

func recordID(r testRecord) string { return r.id }

func generateRecords(n int) []testRecord {
	base := mustTime("2024-03-01T00:00:00Z")
	records := make([]testRecord, 0, n)
	for i := 0; i < n; i++ {
		r := testRecord{id: fmt.Sprintf("rec-%d", i)}
		if i%17 != 0 {
			ts := base.Add(time.Duration(i*37) * time.Minute)
			r.at = &ts
		}
		if i%5 != 0 {
			v := decimal.NewFromInt(int64(i%23 - 11))
			r.value = &v
		}
		records = append(records, r)
	}
	return records
}

func TestAggregateParallel_MatchesSequential(t *testing.T) {
	records := generateRecords(2000)
	opts := Options{Period: period.Day, TimeZone: zone.Named("America/Los_Angeles"), DayStart: 2.5}

	for _, op := range []string{OpCount, OpSum, OpMin, OpMax} {
		t.Run(op, func(t *testing.T) {
			red := valueReduction(op)
			want, err := Aggregate(slices.Values(records), extractAt, opts, red, Env{})
			require.NoError(t, err)

			for _, workers := range []int{1, 3, 8} {
				got, err := AggregateParallel(context.Background(), slices.Values(records), extractAt, recordID, opts, red, Env{}, workers)
				require.NoError(t, err)
				require.Equal(t, want.Keys(), got.Keys(), "workers=%d", workers)
				for i := range want.Buckets {
					require.True(t, want.Buckets[i].Value.Equal(got.Buckets[i].Value), "workers=%d bucket %s", workers, want.Buckets[i].Key)
					require.Equal(t, want.Buckets[i].Count, got.Buckets[i].Count)
					require.True(t, want.Buckets[i].Start.Equal(got.Buckets[i].Start))
				}
			}
		})
	}
}

func TestAggregateParallel_ValidatesFirst(t *testing.T) {
	_, err := AggregateParallel(context.Background(), slices.Values(generateRecords(10)), extractAt, recordID, Options{}, Count[testRecord](), Env{}, 4)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAggregateParallel_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AggregateParallel(ctx, slices.Values(generateRecords(100)), extractAt, recordID, Options{Period: period.Day}, Count[testRecord](), Env{}, 4)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMergePartial(t *testing.T) {
	red := Operators[OpMin]
	early := mustTime("2024-01-01T00:00:00Z")

	got := MergePartial(red,
		Partial{Count: 2},
		Partial{Start: early, Count: 1, Value: decimal.NewFromInt(4), HasValue: true},
	)
	require.Equal(t, int64(3), got.Count)
	require.True(t, got.HasValue)
	require.True(t, decimal.NewFromInt(4).Equal(got.Value))
	require.True(t, early.Equal(got.Start))

	got = MergePartial(red,
		Partial{Count: 1, Value: decimal.NewFromInt(7), HasValue: true},
		Partial{Count: 1, Value: decimal.NewFromInt(-2), HasValue: true},
	)
	require.True(t, decimal.NewFromInt(-2).Equal(got.Value))
}

func TestWorkerFor(t *testing.T) {
	const workers = 8

	require.Equal(t, workerFor("record-abc", workers), workerFor("record-abc", workers))

	seen := make(map[int]struct{})
	for i := 0; i < 1000; i++ {
		w := workerFor("record-"+strconv.Itoa(i), workers)
		require.GreaterOrEqual(t, w, 0)
		require.Less(t, w, workers)
		seen[w] = struct{}{}
	}
	require.Len(t, seen, workers)
}
