package grouping

import (
	"time"

	"github.com/shopspring/decimal"
)

// BucketValue is one bucket in a grouping response.
type BucketValue struct {
	// Key is the canonical bucket key: an RFC 3339 UTC instant, or a
	// YYYY-MM-DD date when date_only is set.
	Key   string          `json:"key"`
	Start time.Time       `json:"start"`
	Value decimal.Decimal `json:"value"`
	Count int64           `json:"count"`
	// Label is the key rendered through the format option.
	Label string `json:"label,omitempty"`
}

// BucketsResponse is the body of a successful grouping query.
type BucketsResponse struct {
	Series   string        `json:"series"`
	Rule     string        `json:"rule,omitempty"`
	Operator string        `json:"operator"`
	Field    string        `json:"field,omitempty"`
	Period   string        `json:"period"`
	TimeZone string        `json:"time_zone"`
	DateOnly bool          `json:"date_only"`
	Buckets  []BucketValue `json:"buckets"`
}

// RuleSummary describes a loaded rule.
type RuleSummary struct {
	Name        string `json:"name"`
	Series      string `json:"series"`
	Operator    string `json:"operator"`
	Field       string `json:"field,omitempty"`
	Period      string `json:"period"`
	Fingerprint string `json:"fingerprint"`
}
