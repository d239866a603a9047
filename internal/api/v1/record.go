package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxSeriesLength bounds Series; it is part of the storage key.
const MaxSeriesLength = 255

// Record is the unit that gets bucketed.
// The envelope carries the series, the timestamp and an optional numeric
// value; Data holds any further payload.
type Record struct {
	// ID is unique per Series and makes ingestion idempotent.
	// The ingestion service assigns a UUID when the client leaves it empty.
	ID string `json:"id"`

	// Series names the stream the record belongs to (e.g. "signups", "orders").
	Series string `json:"series"`

	// OccurredAt is when the record happened (client-side clock). A record
	// without it is stored but never bucketed.
	OccurredAt *time.Time `json:"occurred_at,omitempty"`

	// Value is the number sum/min/max reduce when no field is named.
	Value *decimal.Decimal `json:"value,omitempty"`

	// Data is the free-form payload. Numeric fields can be reduced by name.
	Data map[string]interface{} `json:"data,omitempty"`

	// IngestedAt is set by the ingestion service, not the client.
	IngestedAt time.Time `json:"ingested_at"`

	// IngestSeq is a monotonic sequence number assigned by the store.
	// It is the pagination cursor for scans and is not exposed in the API.
	IngestSeq int64 `json:"-"`
}

// Validate ensures the record has all required envelope attributes.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Series == "" {
		return fmt.Errorf("series is required")
	}
	if len(r.Series) > MaxSeriesLength {
		return fmt.Errorf("series must be at most %d bytes", MaxSeriesLength)
	}
	if r.OccurredAt != nil && r.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at must not be the zero time")
	}
	return nil
}

// Timestamp returns OccurredAt and whether it is set.
func (r *Record) Timestamp() (time.Time, bool) {
	if r.OccurredAt == nil {
		return time.Time{}, false
	}
	return *r.OccurredAt, true
}
