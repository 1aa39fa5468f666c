// Package sweep provides the periodic maintenance passes: dispatching due
// scan schedules and downgrading expired organizations. Items are processed
// with bounded parallelism and per-item timeouts; one bad item never aborts
// the pass.
package sweep

import (
	"context"
	"time"

	"a11yscan/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// Outcome classifies what happened to one swept item.
type Outcome int

const (
	// OutcomeProcessed means the item was acted on.
	OutcomeProcessed Outcome = iota
	// OutcomeSkipped means the item was examined and deliberately left alone.
	OutcomeSkipped
)

// ItemError records the failure of a single item.
type ItemError struct {
	// ID identifies the failed item.
	ID string `json:"id"`
	// Err is the failure message.
	Err string `json:"error"`
}

// Summary is the result of one sweep pass.
type Summary struct {
	// Processed counts items that were acted on.
	Processed int `json:"processed"`
	// Skipped counts items that were examined and left alone.
	Skipped int `json:"skipped"`
	// Errors lists per-item failures.
	Errors []ItemError `json:"errors,omitempty"`
}

// Options bound how a sweep pass runs.
type Options struct {
	// Parallelism is the maximum number of items processed concurrently.
	Parallelism int
	// ItemTimeout bounds the processing of a single item.
	ItemTimeout time.Duration
}

// forEach runs fn over all items with bounded parallelism and a per-item
// timeout, isolating failures into the summary. id labels items in error
// reports.
func forEach[T any](ctx context.Context,
	items []T,
	opts Options,
	id func(T) string,
	fn func(ctx context.Context, item T) (Outcome, error)) Summary {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	type itemResult struct {
		outcome Outcome
		err     *ItemError
	}
	results := make([]itemResult, len(items))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for i, item := range items {
		group.Go(func() error {
			itemCtx := groupCtx
			if opts.ItemTimeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(groupCtx, opts.ItemTimeout)
				defer cancel()
			}

			outcome, err := fn(itemCtx, item)
			if err != nil {
				results[i] = itemResult{err: &ItemError{ID: id(item), Err: err.Error()}}

				return nil // item failures never abort the pass
			}
			results[i] = itemResult{outcome: outcome}

			return nil
		})
	}
	_ = group.Wait()

	var summary Summary
	for _, res := range results {
		switch {
		case res.err != nil:
			summary.Errors = append(summary.Errors, *res.err)
		case res.outcome == OutcomeProcessed:
			summary.Processed++
		default:
			summary.Skipped++
		}
	}

	return summary
}

// observe records the summary of one sweep pass on the sweep counters.
func observe(sweep string, summary Summary) {
	metrics.SweepItems.WithLabelValues(sweep, "processed").Add(float64(summary.Processed))
	metrics.SweepItems.WithLabelValues(sweep, "skipped").Add(float64(summary.Skipped))
	metrics.SweepItems.WithLabelValues(sweep, "error").Add(float64(len(summary.Errors)))
}

