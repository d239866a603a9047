package sqlite

import (
	"fmt"

	"github.com/aevon-lab/timebucket/internal/core/period"
)

// Timestamps are stored as fixed-width UTC text so that string comparison
// orders them and strftime can read them.
const timeLayout = "2006-01-02 15:04:05.000000000"

// bucketLayout is what the strftime expressions below produce.
const bucketLayout = "2006-01-02 15:04:05"

const (
	schema = `
		CREATE TABLE IF NOT EXISTS records (
			ingest_seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			series TEXT NOT NULL,
			occurred_at TEXT,
			value REAL,
			data TEXT,
			ingested_at TEXT NOT NULL,
			UNIQUE (series, id)
		);
		CREATE INDEX IF NOT EXISTS idx_records_series_occurred ON records(series, occurred_at);
	`

	querySaveRecord = `
		INSERT INTO records (id, series, occurred_at, value, data, ingested_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6)
		ON CONFLICT (series, id) DO NOTHING
		RETURNING ingest_seq
	`

	queryScanRecords = `
		SELECT id, series, occurred_at, value, data, ingested_at, ingest_seq
		FROM records
		WHERE ingest_seq > ?1
		  AND series = ?2
		  AND (?3 IS NULL OR occurred_at >= ?3)
		  AND (?4 IS NULL OR occurred_at <= ?4)
		ORDER BY ingest_seq ASC
		LIMIT ?5
	`

	// queryGroupTemplate takes the bucket expression. ?4 is only bound for
	// weeks, where it carries the week start (0 = Sunday).
	queryGroupTemplate = `
		SELECT
			%s AS bucket,
			COUNT(*) AS record_count,
			SUM(value) AS value_sum,
			MIN(value) AS value_min,
			MAX(value) AS value_max
		FROM records
		WHERE series = ?1
		  AND occurred_at IS NOT NULL
		  AND (?2 IS NULL OR occurred_at >= ?2)
		  AND (?3 IS NULL OR occurred_at <= ?3)
		GROUP BY 1
		ORDER BY 1
	`
)

// bucketExprs truncates occurred_at per unit. Quarters have no strftime form.
var bucketExprs = map[period.Unit]string{
	period.Second: `strftime('%Y-%m-%d %H:%M:%S', occurred_at)`,
	period.Minute: `strftime('%Y-%m-%d %H:%M:00', occurred_at)`,
	period.Hour:   `strftime('%Y-%m-%d %H:00:00', occurred_at)`,
	period.Day:    `strftime('%Y-%m-%d 00:00:00', occurred_at)`,
	// "weekday N" moves forward to the next day N, so step back six days first.
	period.Week:  `strftime('%Y-%m-%d 00:00:00', occurred_at, '-6 days', 'weekday ' || ?4)`,
	period.Month: `strftime('%Y-%m-01 00:00:00', occurred_at)`,
	period.Year:  `strftime('%Y-01-01 00:00:00', occurred_at)`,
}

func groupQuery(unit period.Unit) string {
	return fmt.Sprintf(queryGroupTemplate, bucketExprs[unit])
}
