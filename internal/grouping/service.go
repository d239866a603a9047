// Package grouping serves period-bucketed views of stored series.
package grouping

import (
	"context"
	"fmt"
	"net/url"

	coreagg "github.com/aevon-lab/timebucket/internal/core/aggregation"
)

// ruleFixedParams are fixed by a rule and rejected on rule queries.
var ruleFixedParams = []string{"period", "time_zone", "week_start", "day_start", "date_only", "n", "operator", "field"}

// Service implements the grouping query layer.
type Service struct {
	aggregator Aggregator
	rules      coreagg.RuleRepository
}

// NewService creates a grouping service. rules may be nil when no rule
// directory is configured.
func NewService(aggregator Aggregator, rules coreagg.RuleRepository) *Service {
	return &Service{aggregator: aggregator, rules: rules}
}

// QuerySeries groups a series with options taken from query parameters.
func (s *Service) QuerySeries(ctx context.Context, series string, values url.Values) (*BucketsResponse, error) {
	opts, err := coreagg.ParseOptions(values)
	if err != nil {
		return nil, err
	}
	q := Query{
		Series:   series,
		Operator: values.Get("operator"),
		Field:    values.Get("field"),
		Options:  opts,
	}
	return s.run(ctx, q, "")
}

// QueryRule groups a rule's series. The request may narrow the range and
// shape the output but not change how records are bucketed.
func (s *Service) QueryRule(ctx context.Context, name string, values url.Values) (*BucketsResponse, error) {
	if s.rules == nil {
		return nil, fmt.Errorf("%w: %q", coreagg.ErrRuleNotFound, name)
	}
	rule, err := s.rules.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, param := range ruleFixedParams {
		if values.Has(param) {
			return nil, &coreagg.ConfigurationError{
				Options: []string{param},
				Reason:  fmt.Sprintf("fixed by rule %q", rule.Name),
			}
		}
	}

	req, err := coreagg.ParseOptions(values)
	if err != nil {
		return nil, err
	}
	opts := rule.WithRange(req.Start, req.Last)
	opts.LastN = req.LastN
	opts.Current = req.Current
	opts.Reverse = req.Reverse
	opts.Series = req.Series
	opts.DefaultValue = req.DefaultValue
	if req.Format != "" {
		opts.Format = req.Format
	}

	q := Query{
		Series:   rule.Series,
		Operator: rule.Operator,
		Field:    rule.Field,
		Options:  opts,
	}
	return s.run(ctx, q, rule.Name)
}

// ListRules returns the loaded rules, optionally for one series.
func (s *Service) ListRules(ctx context.Context, series string) ([]RuleSummary, error) {
	if s.rules == nil {
		return []RuleSummary{}, nil
	}
	rules, err := s.rules.List(ctx, series)
	if err != nil {
		return nil, err
	}
	out := make([]RuleSummary, 0, len(rules))
	for _, r := range rules {
		out = append(out, RuleSummary{
			Name:        r.Name,
			Series:      r.Series,
			Operator:    r.Operator,
			Field:       r.Field,
			Period:      r.Options.Period.String(),
			Fingerprint: r.Fingerprint,
		})
	}
	return out, nil
}

func (s *Service) run(ctx context.Context, q Query, ruleName string) (*BucketsResponse, error) {
	res, err := s.aggregator.Aggregate(ctx, q)
	if err != nil {
		return nil, err
	}

	buckets := make([]BucketValue, 0, res.Len())
	for _, b := range res.Buckets {
		buckets = append(buckets, BucketValue{
			Key:   b.Key.String(),
			Start: b.Start,
			Value: b.Value,
			Count: b.Count,
			Label: b.Label,
		})
	}

	return &BucketsResponse{
		Series:   q.Series,
		Rule:     ruleName,
		Operator: q.operator(),
		Field:    q.Field,
		Period:   res.Period.String(),
		TimeZone: res.Location.String(),
		DateOnly: res.DateOnly,
		Buckets:  buckets,
	}, nil
}
