package postgres

// SQL queries for record storage and pushdown grouping.

const (
	// querySaveRecord inserts a record with per-series idempotency.
	// RETURNING retrieves the generated ingest_seq for cursor tracking.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicates.
	querySaveRecord = `
		INSERT INTO records (
			id, series, occurred_at, value, data, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (series, id) DO NOTHING
		RETURNING ingest_seq
	`

	// queryScanRecords pages through one series in strict ingest_seq order.
	// A NULL bound disables that side of the occurred_at range.
	queryScanRecords = `
		SELECT
			id, series, occurred_at, value, data, ingested_at, ingest_seq
		FROM records
		WHERE ingest_seq > $1
		  AND series = $2
		  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
		  AND ($4::timestamptz IS NULL OR occurred_at <= $4)
		ORDER BY ingest_seq ASC
		LIMIT $5
	`

	// queryGroupByPeriod buckets one series on the wall clock of zone $2.
	// $3 is the day start in seconds and is subtracted before truncation and
	// added back after. $4 shifts week truncation (date_trunc weeks start on
	// Monday) to the requested week start; it is 0 for other units.
	// The bucket column is a wall-clock timestamp without time zone.
	queryGroupByPeriod = `
		SELECT
			date_trunc($1::text,
				(occurred_at AT TIME ZONE $2::text)
				- ($3::integer * INTERVAL '1 second')
				+ ($4::integer * INTERVAL '1 day')
			) - ($4::integer * INTERVAL '1 day') + ($3::integer * INTERVAL '1 second') AS bucket,
			COUNT(*) AS record_count,
			SUM(value) AS value_sum,
			MIN(value) AS value_min,
			MAX(value) AS value_max
		FROM records
		WHERE series = $5
		  AND occurred_at IS NOT NULL
		  AND ($6::timestamptz IS NULL OR occurred_at >= $6)
		  AND ($7::timestamptz IS NULL OR occurred_at <= $7)
		GROUP BY 1
		ORDER BY 1
	`
)
