package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	v1 "github.com/aevon-lab/timebucket/internal/api/v1"
	coreagg "github.com/aevon-lab/timebucket/internal/core/aggregation"
	"github.com/aevon-lab/timebucket/internal/core/period"
	"github.com/aevon-lab/timebucket/internal/core/storage"
)

const (
	defaultScanBatchSize = 5000
	// maxScanIterations bounds one in-memory query to
	// maxScanIterations*batchSize records.
	maxScanIterations = 200
)

// ErrScanLimit is returned when a series holds more records in range than an
// in-memory query is allowed to read.
var ErrScanLimit = errors.New("scan limit exceeded")

// Query is one grouping request over a series.
type Query struct {
	Series   string
	Operator string // count, sum, min, max; empty means count
	// Field names the value to reduce: "" or "value" for the record value,
	// anything else for a numeric field of the record's data.
	Field   string
	Options coreagg.Options
}

func (q Query) operator() string {
	if q.Operator == "" {
		return coreagg.OpCount
	}
	return q.Operator
}

func (q Query) validate() error {
	if q.Series == "" {
		return &coreagg.ConfigurationError{Options: []string{"series"}, Reason: "series is required"}
	}
	if !coreagg.ValidOperator(q.operator()) {
		return &coreagg.ConfigurationError{
			Options: []string{"operator"},
			Reason:  fmt.Sprintf("unknown operator %q (must be count, sum, min or max)", q.Operator),
		}
	}
	return nil
}

// Aggregator groups the records of one series by period.
type Aggregator interface {
	Aggregate(ctx context.Context, q Query) (*coreagg.Result, error)
}

// InMemoryAggregator pages through a RecordStore and runs the engine over
// the records. It handles every option combination.
type InMemoryAggregator struct {
	store     storage.RecordStore
	env       coreagg.Env
	batchSize int
	workers   int
}

// NewInMemoryAggregator creates an aggregator reading batchSize records per
// page and spreading each page over workers.
func NewInMemoryAggregator(store storage.RecordStore, env coreagg.Env, batchSize, workers int) *InMemoryAggregator {
	if batchSize <= 0 {
		batchSize = defaultScanBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &InMemoryAggregator{store: store, env: env, batchSize: batchSize, workers: workers}
}

func (a *InMemoryAggregator) Aggregate(ctx context.Context, q Query) (*coreagg.Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	plan, err := q.Options.Compile(a.env)
	if err != nil {
		return nil, err
	}
	red := recordReduction(q.operator(), q.Field)

	scan := storage.ScanQuery{Series: q.Series, From: plan.From, Through: plan.Through}
	total := make(map[coreagg.Key]coreagg.Partial)
	var cursor int64
	scanned := 0

	for i := 0; ; i++ {
		if i == maxScanIterations {
			return nil, fmt.Errorf("%w: series %q has more than %d records in range", ErrScanLimit, q.Series, scanned)
		}

		page, err := a.store.ScanRecords(ctx, scan, cursor, a.batchSize)
		if err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}

		partials, err := coreagg.AccumulateParallel(ctx, slices.Values(page), recordTimestamp, recordID, plan, red, a.workers)
		if err != nil {
			return nil, err
		}
		coreagg.MergePartials(red.Reducer, total, partials)
		scanned += len(page)

		if len(page) < a.batchSize {
			break
		}
		cursor = page[len(page)-1].IngestSeq
	}

	slog.Debug("[Grouping] In-memory aggregation complete",
		"series", q.Series,
		"period", plan.Truncator.Unit().String(),
		"records", scanned,
		"buckets", len(total))

	return coreagg.Assemble(total, plan, red.Reducer)
}

func recordTimestamp(r *v1.Record) (time.Time, bool) { return r.Timestamp() }

func recordID(r *v1.Record) string { return r.ID }

// recordReduction builds the reduction for op over field of a record.
func recordReduction(op, field string) coreagg.Reduction[*v1.Record] {
	red := coreagg.Reduction[*v1.Record]{Reducer: coreagg.Operators[op]}
	if op == coreagg.OpCount {
		return red
	}
	if field == "" || field == "value" {
		red.Value = func(r *v1.Record) (decimal.Decimal, bool) {
			if r.Value == nil {
				return decimal.Decimal{}, false
			}
			return *r.Value, true
		}
		return red
	}
	red.Value = func(r *v1.Record) (decimal.Decimal, bool) {
		return coreagg.LookupDecimal(r.Data, field)
	}
	return red
}

// PushdownAggregator lets the store group records and assembles the result.
type PushdownAggregator struct {
	store storage.PushdownStore
	env   coreagg.Env
}

func NewPushdownAggregator(store storage.PushdownStore, env coreagg.Env) *PushdownAggregator {
	return &PushdownAggregator{store: store, env: env}
}

// Aggregate returns *storage.UnsupportedBackendOperationError when the store
// cannot express q.
func (a *PushdownAggregator) Aggregate(ctx context.Context, q Query) (*coreagg.Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	plan, err := q.Options.Compile(a.env)
	if err != nil {
		return nil, err
	}

	op := q.operator()
	gq := storage.GroupQuery{
		Series:    q.Series,
		Unit:      plan.Truncator.Unit(),
		Location:  plan.Location,
		WeekStart: plan.Truncator.WeekStart(),
		DayStart:  plan.Truncator.DayStart(),
		N:         plan.Truncator.N(),
		From:      plan.From,
		Through:   plan.Through,
	}
	if op != coreagg.OpCount {
		gq.Field = q.Field
	}
	if err := a.store.Capabilities().Check(a.store.Backend(), gq); err != nil {
		return nil, err
	}

	rows, err := a.store.GroupByPeriod(ctx, gq)
	if err != nil {
		return nil, err
	}

	red := coreagg.Operators[op]
	partials := make(map[coreagg.Key]coreagg.Partial, len(rows))
	for _, row := range rows {
		start := plan.Truncator.Truncate(period.ResolveWall(row.Wall, plan.Location))
		key := plan.Formatter.Format(start)
		p := wallPartial(op, start, row)
		if cur, ok := partials[key]; ok {
			p = coreagg.MergePartial(red, cur, p)
		}
		partials[key] = p
	}

	return coreagg.Assemble(partials, plan, red)
}

// wallPartial picks the column of row that op reduces to.
func wallPartial(op string, start time.Time, row storage.WallBucket) coreagg.Partial {
	p := coreagg.Partial{Start: start, Count: row.Count}
	var v decimal.NullDecimal
	switch op {
	case coreagg.OpCount:
		v = decimal.NullDecimal{Decimal: decimal.NewFromInt(row.Count), Valid: true}
	case coreagg.OpSum:
		v = row.Sum
	case coreagg.OpMin:
		v = row.Min
	case coreagg.OpMax:
		v = row.Max
	}
	p.Value, p.HasValue = v.Decimal, v.Valid
	return p
}

// FallbackAggregator tries primary and retries with fallback when primary
// reports an unsupported backend operation.
type FallbackAggregator struct {
	primary  Aggregator
	fallback Aggregator
}

func NewFallbackAggregator(primary, fallback Aggregator) *FallbackAggregator {
	return &FallbackAggregator{primary: primary, fallback: fallback}
}

func (a *FallbackAggregator) Aggregate(ctx context.Context, q Query) (*coreagg.Result, error) {
	res, err := a.primary.Aggregate(ctx, q)
	var unsupported *storage.UnsupportedBackendOperationError
	if !errors.As(err, &unsupported) {
		return res, err
	}
	slog.Info("[Grouping] Falling back to in-memory grouping",
		"series", q.Series,
		"backend", unsupported.Backend,
		"feature", unsupported.Feature)
	return a.fallback.Aggregate(ctx, q)
}

var (
	_ Aggregator = (*InMemoryAggregator)(nil)
	_ Aggregator = (*PushdownAggregator)(nil)
	_ Aggregator = (*FallbackAggregator)(nil)
)
