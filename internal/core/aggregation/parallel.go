package aggregation

import (
	"context"
	"hash/fnv"
	"iter"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregateParallel is Aggregate with the per-record work spread over
// workers. Records are grouped by workerFor(id(record)), each group is
// reduced into its own partial map, and the partial maps are merged with the
// reducer before fill. The result equals Aggregate on the same input.
func AggregateParallel[R any](
	ctx context.Context,
	records iter.Seq[R],
	extract func(R) (time.Time, bool),
	id func(R) string,
	opts Options,
	red Reduction[R],
	env Env,
	workers int,
) (*Result, error) {
	plan, err := opts.Compile(env)
	if err != nil {
		return nil, err
	}
	partials, err := AccumulateParallel(ctx, records, extract, id, plan, red, workers)
	if err != nil {
		return nil, err
	}
	return Assemble(partials, plan, red.orDefault().Reducer)
}

// AccumulateParallel is Accumulate spread over workers. Callers that page
// through a store merge the returned partials across pages with MergePartials.
func AccumulateParallel[R any](
	ctx context.Context,
	records iter.Seq[R],
	extract func(R) (time.Time, bool),
	id func(R) string,
	plan *Plan,
	red Reduction[R],
	workers int,
) (map[Key]Partial, error) {
	red = red.orDefault()
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Accumulate(records, extract, plan, red), nil
	}

	groups := make([][]R, workers)
	for rec := range records {
		w := workerFor(id(rec), workers)
		groups[w] = append(groups[w], rec)
	}

	locals := make([]map[Key]Partial, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			locals[i] = Accumulate(slices.Values(group), extract, plan, red)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[Key]Partial)
	for _, local := range locals {
		MergePartials(red.Reducer, merged, local)
	}
	return merged, nil
}

// workerFor maps a record id to a worker with FNV-32a, so the same id always
// lands on the same worker for a given pool size.
func workerFor(id string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(workers))
}
