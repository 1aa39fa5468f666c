package storage

import (
	"context"

	"github.com/riverqueue/river"
)

// JobStorage defines the minimal interface for enqueueing background jobs.
// Implementations are responsible for persisting the job into the underlying
// queue backend. The args parameter contains the job payload and opts can be
// used to customize insertion behavior (e.g., queue name, delay, priority).
//
// Implementations must make the insert atomic with respect to any
// surrounding transaction when supported by the backend, so that a scan row
// and its job commit or roll back together. A failure to reach the queue is
// a terminal failure for that call; callers react by marking the associated
// scan FAILED rather than leaving it QUEUED without a job.
type JobStorage interface {
	// AddJob enqueues a new job with the given arguments. The boolean result
	// is false when the backend skipped the insert as a duplicate of an
	// existing unique job.
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}
