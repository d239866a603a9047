package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	v1 "github.com/aevon-lab/timebucket/internal/api/v1"
	"github.com/aevon-lab/timebucket/internal/core/period"
)

// ErrDuplicate is returned when a record with the same (series, id) already exists.
var ErrDuplicate = errors.New("record already exists")

// ScanQuery scopes a record scan to one series and an optional inclusive
// occurred_at range.
type ScanQuery struct {
	Series        string
	From, Through *time.Time
}

// RecordStore defines the interface for storing and scanning records.
type RecordStore interface {
	// SaveRecord persists a record and populates its IngestSeq.
	// Returns ErrDuplicate when (series, id) is taken.
	SaveRecord(ctx context.Context, record *v1.Record) error

	// ScanRecords fetches up to limit records of the scoped series with
	// ingest_seq > cursor, in ingest_seq order. cursor=0 means "from the beginning".
	ScanRecords(ctx context.Context, q ScanQuery, cursor int64, limit int) ([]*v1.Record, error)
}

// GroupQuery asks a backend to bucket one series by wall-clock period.
type GroupQuery struct {
	Series    string
	Unit      period.Unit
	Location  *time.Location
	WeekStart time.Weekday
	DayStart  time.Duration
	N         int
	// Field names the reduced value; "" and "value" both mean the record value column.
	Field         string
	From, Through *time.Time
}

// WallBucket is one row of a pushdown grouping. Wall holds the bucket start
// as a wall-clock reading in the query's zone; its location is meaningless.
type WallBucket struct {
	Wall  time.Time
	Count int64
	Sum   decimal.NullDecimal
	Min   decimal.NullDecimal
	Max   decimal.NullDecimal
}

// PushdownStore groups records inside the backend.
type PushdownStore interface {
	Backend() string
	Capabilities() Capabilities
	GroupByPeriod(ctx context.Context, q GroupQuery) ([]WallBucket, error)
}

// Capabilities describes which GroupQuery shapes a backend can express.
type Capabilities struct {
	Units []period.Unit
	// Zones allows zones other than UTC; FixedOffsets additionally allows
	// zones that are bare UTC offsets rather than IANA names.
	Zones        bool
	FixedOffsets bool
	DayStart     bool
	Multiples    bool
}

// Check returns an *UnsupportedBackendOperationError for the first feature
// of q the backend cannot express.
func (c Capabilities) Check(backend string, q GroupQuery) error {
	unsupported := func(feature string) error {
		return &UnsupportedBackendOperationError{Backend: backend, Feature: feature}
	}

	supported := false
	for _, u := range c.Units {
		if u == q.Unit {
			supported = true
			break
		}
	}
	if !supported {
		return unsupported(fmt.Sprintf("period %s", q.Unit))
	}
	if !IsUTC(q.Location) {
		if !c.Zones {
			return unsupported("time_zone")
		}
		if _, ok := ZoneName(q.Location); !ok && !c.FixedOffsets {
			return unsupported(fmt.Sprintf("fixed-offset time_zone %s", q.Location))
		}
	}
	if q.DayStart != 0 && !c.DayStart {
		return unsupported("day_start")
	}
	if q.N > 1 && !c.Multiples {
		return unsupported(fmt.Sprintf("n=%d", q.N))
	}
	if q.Field != "" && q.Field != "value" {
		return unsupported(fmt.Sprintf("field %q", q.Field))
	}
	return nil
}

// UnsupportedBackendOperationError is returned when a pushdown backend cannot
// express a request. Callers may fall back to in-memory grouping.
type UnsupportedBackendOperationError struct {
	Backend string
	Feature string
}

func (e *UnsupportedBackendOperationError) Error() string {
	return fmt.Sprintf("%s is not supported for %s", e.Feature, e.Backend)
}

// IsUTC reports whether loc is UTC or nil.
func IsUTC(loc *time.Location) bool {
	if loc == nil || loc == time.UTC {
		return true
	}
	name := loc.String()
	return name == "UTC" || name == "Etc/UTC"
}

// ZoneName returns the IANA name of loc. ok is false for fixed offsets and
// the host zone, which have no portable name.
func ZoneName(loc *time.Location) (string, bool) {
	name := loc.String()
	if name == "" || name == "Local" || strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-") {
		return name, false
	}
	return name, true
}
