package aggregation

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LookupDecimal pulls a numeric value from a record's data map by field name.
// ok is false when the field is missing, null, or not a recognized numeric type.
// JSON numbers unmarshal to float64 unless the decoder was told to keep
// json.Number; both are accepted.
func LookupDecimal(data map[string]interface{}, field string) (decimal.Decimal, bool) {
	if field == "" {
		return decimal.Zero, false
	}
	v, ok := data[field]
	if !ok {
		return decimal.Zero, false
	}
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt32(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err == nil {
			return d, true
		}
	case string:
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d, true
		}
	case decimal.Decimal:
		return val, true
	}
	return decimal.Zero, false
}
