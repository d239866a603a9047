package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	v1 "github.com/aevon-lab/timebucket/internal/api/v1"
)

// marshalRecordData marshals a record's data payload to JSON.
// Empty data produces nil (SQL NULL) rather than the JSON "null" string.
func marshalRecordData(record *v1.Record) ([]byte, error) {
	if len(record.Data) == 0 {
		return nil, nil
	}
	dataJSON, err := json.Marshal(record.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return dataJSON, nil
}

// nullTime maps a nil timestamp to SQL NULL.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecordRow scans a database row into a Record.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanRecordRow(row scanner) (*v1.Record, error) {
	var rec v1.Record
	var occurredAt sql.NullTime
	var value decimal.NullDecimal
	var dataJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.Series,
		&occurredAt,
		&value,
		&dataJSON,
		&rec.IngestedAt,
		&rec.IngestSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record row: %w", err)
	}

	if occurredAt.Valid {
		ts := occurredAt.Time
		rec.OccurredAt = &ts
	}
	if value.Valid {
		v := value.Decimal
		rec.Value = &v
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	return &rec, nil
}
