package scheduler

import "context"

// Job represents a unit of work that can be executed by the worker pool.
type Job interface {
	// Execute runs the job. The context carries the per-job timeout.
	Execute(ctx context.Context) error

	// Subject identifies what the job works on (a link id for sync jobs)
	// for logs and spans.
	Subject() string

	Description() string
}
