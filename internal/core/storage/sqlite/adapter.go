// Package sqlite stores records in a single SQLite file. It backs local
// deployments and groups UTC day-aligned periods inside the database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Register sqlite driver

	v1 "github.com/aevon-lab/timebucket/internal/api/v1"
	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/storage"
)

// BackendName identifies SQLite in unsupported-operation errors.
const BackendName = "sqlite"

var capabilities = storage.Capabilities{
	Units: slices.DeleteFunc(slices.Clone(period.Units), func(u period.Unit) bool { return u == period.Quarter }),
}

// Adapter implements storage.RecordStore and storage.PushdownStore for SQLite.
type Adapter struct {
	db              *sql.DB
	path            string
	stmtSaveRecord  *sql.Stmt
	stmtScanRecords *sql.Stmt
	stmtGroup       map[period.Unit]*sql.Stmt
}

// NewAdapter opens (or creates) the database file at path and ensures the
// schema exists.
func NewAdapter(path string) (*Adapter, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	a := &Adapter{db: db, path: path, stmtGroup: make(map[period.Unit]*sql.Stmt)}
	if err := a.init(); err != nil {
		_ = a.Close()
		return nil, err
	}

	slog.Info("[SQLite] Adapter initialized", "path", path)
	return a, nil
}

func (a *Adapter) init() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := a.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var err error
	if a.stmtSaveRecord, err = a.db.Prepare(querySaveRecord); err != nil {
		return fmt.Errorf("failed to prepare saveRecord statement: %w", err)
	}
	if a.stmtScanRecords, err = a.db.Prepare(queryScanRecords); err != nil {
		return fmt.Errorf("failed to prepare scanRecords statement: %w", err)
	}
	for _, unit := range capabilities.Units {
		stmt, err := a.db.Prepare(groupQuery(unit))
		if err != nil {
			return fmt.Errorf("failed to prepare group statement for %s: %w", unit, err)
		}
		a.stmtGroup[unit] = stmt
	}
	return nil
}

// Path returns the database file path.
func (a *Adapter) Path() string { return a.path }

// DB returns the underlying *sql.DB for health checks.
func (a *Adapter) DB() *sql.DB { return a.db }

// SaveRecord persists a record and populates IngestSeq.
// Returns storage.ErrDuplicate if (series, id) already exists.
func (a *Adapter) SaveRecord(ctx context.Context, record *v1.Record) error {
	var data interface{}
	if len(record.Data) > 0 {
		raw, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}
		data = string(raw)
	}
	var value interface{}
	if record.Value != nil {
		value = record.Value.InexactFloat64()
	}

	var ingestSeq int64
	err := a.stmtSaveRecord.QueryRowContext(ctx,
		record.ID,
		record.Series,
		formatTime(record.OccurredAt),
		value,
		data,
		record.IngestedAt.UTC().Format(timeLayout),
	).Scan(&ingestSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	record.IngestSeq = ingestSeq
	slog.Debug("[SQLite] Saved record",
		"series", record.Series,
		"record_id", record.ID,
		"ingest_seq", ingestSeq)
	return nil
}

// ScanRecords pages through one series in ingest_seq order.
func (a *Adapter) ScanRecords(ctx context.Context, q storage.ScanQuery, cursor int64, limit int) ([]*v1.Record, error) {
	rows, err := a.stmtScanRecords.QueryContext(ctx, cursor, q.Series, formatTime(q.From), formatTime(q.Through), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records by cursor: %w", err)
	}
	defer rows.Close()

	var records []*v1.Record
	for rows.Next() {
		var (
			rec        v1.Record
			occurredAt sql.NullString
			value      decimal.NullDecimal
			data       sql.NullString
			ingestedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Series, &occurredAt, &value, &data, &ingestedAt, &rec.IngestSeq); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		if occurredAt.Valid {
			ts, err := parseTime(occurredAt.String)
			if err != nil {
				return nil, err
			}
			rec.OccurredAt = &ts
		}
		if value.Valid {
			v := value.Decimal
			rec.Value = &v
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &rec.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal data: %w", err)
			}
		}
		if rec.IngestedAt, err = parseTime(ingestedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func (a *Adapter) Backend() string { return BackendName }

// Capabilities reports UTC-only grouping without quarters, day_start or multiples.
func (a *Adapter) Capabilities() storage.Capabilities { return capabilities }

// GroupByPeriod buckets one series with strftime on the UTC clock.
func (a *Adapter) GroupByPeriod(ctx context.Context, q storage.GroupQuery) ([]storage.WallBucket, error) {
	if err := capabilities.Check(BackendName, q); err != nil {
		return nil, err
	}

	args := []interface{}{q.Series, formatTime(q.From), formatTime(q.Through)}
	if q.Unit == period.Week {
		args = append(args, int(q.WeekStart))
	}

	rows, err := a.stmtGroup[q.Unit].QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group records: %w", err)
	}
	defer rows.Close()

	var buckets []storage.WallBucket
	for rows.Next() {
		var (
			b    storage.WallBucket
			wall string
		)
		if err := rows.Scan(&wall, &b.Count, &b.Sum, &b.Min, &b.Max); err != nil {
			return nil, fmt.Errorf("failed to scan bucket row: %w", err)
		}
		if b.Wall, err = time.ParseInLocation(bucketLayout, wall, time.UTC); err != nil {
			return nil, fmt.Errorf("failed to parse bucket %q: %w", wall, err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buckets: %w", err)
	}

	slog.Debug("[SQLite] Grouped records",
		"series", q.Series,
		"period", q.Unit.String(),
		"buckets", len(buckets))
	return buckets, nil
}

// Close closes the prepared statements and the database, keeping the first error.
func (a *Adapter) Close() error {
	var firstErr error
	keep := func(err error, what string) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", what, err)
		}
	}

	if a.stmtSaveRecord != nil {
		keep(a.stmtSaveRecord.Close(), "saveRecord statement")
	}
	if a.stmtScanRecords != nil {
		keep(a.stmtScanRecords.Close(), "scanRecords statement")
	}
	for unit, stmt := range a.stmtGroup {
		keep(stmt.Close(), "group statement for "+unit.String())
	}
	keep(a.db.Close(), "database")

	if firstErr != nil {
		return firstErr
	}
	slog.Info("[SQLite] Adapter closed gracefully")
	return nil
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return ts, nil
}

var (
	_ storage.RecordStore   = (*Adapter)(nil)
	_ storage.PushdownStore = (*Adapter)(nil)
)
