package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/storage"
)

// BackendName identifies PostgreSQL in unsupported-operation errors.
const BackendName = "postgresql"

var capabilities = storage.Capabilities{
	Units:    period.Units,
	Zones:    true,
	DayStart: true,
}

func (a *Adapter) Backend() string { return BackendName }

// Capabilities reports that PostgreSQL handles every unit, named zones and
// day_start. Fixed-offset zones and multiples are left to in-memory grouping.
func (a *Adapter) Capabilities() storage.Capabilities { return capabilities }

// GroupByPeriod buckets one series with date_trunc on the zone's wall clock.
func (a *Adapter) GroupByPeriod(ctx context.Context, q storage.GroupQuery) ([]storage.WallBucket, error) {
	if err := capabilities.Check(BackendName, q); err != nil {
		return nil, err
	}

	zoneName := "UTC"
	if !storage.IsUTC(q.Location) {
		zoneName, _ = storage.ZoneName(q.Location)
	}

	rows, err := a.stmtGroupByPeriod.QueryContext(ctx,
		q.Unit.String(),
		zoneName,
		int64(q.DayStart/time.Second),
		weekShift(q.Unit, q.WeekStart),
		q.Series,
		nullTime(q.From),
		nullTime(q.Through),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group records: %w", err)
	}
	defer rows.Close()

	var buckets []storage.WallBucket
	for rows.Next() {
		var b storage.WallBucket
		if err := rows.Scan(&b.Wall, &b.Count, &b.Sum, &b.Min, &b.Max); err != nil {
			return nil, fmt.Errorf("failed to scan bucket row: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buckets: %w", err)
	}

	slog.Debug("[Postgres] Grouped records",
		"series", q.Series,
		"period", q.Unit.String(),
		"time_zone", zoneName,
		"buckets", len(buckets))
	return buckets, nil
}

// weekShift is the number of days that moves weekStart onto Monday, where
// date_trunc('week') lands.
func weekShift(unit period.Unit, weekStart time.Weekday) int {
	if unit != period.Week {
		return 0
	}
	return (int(time.Monday) - int(weekStart) + 7) % 7
}
