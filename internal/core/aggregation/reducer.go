package aggregation

import (
	"github.com/shopspring/decimal"
)

// Supported operators.
const (
	OpCount = "count"
	OpSum   = "sum"
	OpMin   = "min"
	OpMax   = "max"
)

// Reducer defines the fold semantics of an aggregation operator.
// Apply and Merge must be associative and commutative so that partials
// reduced on separate partitions can be combined in any order.
// To add a new operator: implement this interface and register it in Operators.
type Reducer interface {
	// Initial returns the aggregate value after the first value for a bucket.
	// count → 1; sum/min/max → the incoming value itself.
	Initial(incoming decimal.Decimal) decimal.Decimal

	// Apply folds an incoming value into an existing aggregate.
	Apply(current, incoming decimal.Decimal) decimal.Decimal

	// Merge combines two aggregates built from disjoint inputs.
	Merge(a, b decimal.Decimal) decimal.Decimal

	// Identity is the value reported for a bucket that saw no values.
	Identity() decimal.Decimal
}

// Operators is the registry of all supported operators.
var Operators = map[string]Reducer{
	OpCount: countReducer{},
	OpSum:   sumReducer{},
	OpMin:   minReducer{},
	OpMax:   maxReducer{},
}

// ValidOperator reports whether op is a registered operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// countReducer increments by 1 per record. The incoming value is ignored.
type countReducer struct{}

func (countReducer) Initial(_ decimal.Decimal) decimal.Decimal    { return decimal.NewFromInt(1) }
func (countReducer) Apply(cur, _ decimal.Decimal) decimal.Decimal { return cur.Add(decimal.NewFromInt(1)) }
func (countReducer) Merge(a, b decimal.Decimal) decimal.Decimal   { return a.Add(b) }
func (countReducer) Identity() decimal.Decimal                    { return decimal.Zero }

// sumReducer accumulates the sum of incoming values.
type sumReducer struct{}

func (sumReducer) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (sumReducer) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }
func (sumReducer) Merge(a, b decimal.Decimal) decimal.Decimal     { return a.Add(b) }
func (sumReducer) Identity() decimal.Decimal                      { return decimal.Zero }

// minReducer tracks the minimum value seen.
type minReducer struct{}

func (minReducer) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (minReducer) Apply(cur, inc decimal.Decimal) decimal.Decimal { return decimal.Min(cur, inc) }
func (minReducer) Merge(a, b decimal.Decimal) decimal.Decimal     { return decimal.Min(a, b) }
func (minReducer) Identity() decimal.Decimal                      { return decimal.Zero }

// maxReducer tracks the maximum value seen.
type maxReducer struct{}

func (maxReducer) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (maxReducer) Apply(cur, inc decimal.Decimal) decimal.Decimal { return decimal.Max(cur, inc) }
func (maxReducer) Merge(a, b decimal.Decimal) decimal.Decimal     { return decimal.Max(a, b) }
func (maxReducer) Identity() decimal.Decimal                      { return decimal.Zero }
