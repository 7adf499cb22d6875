// Package task defines the unit of schedulable work.
//
// A Task pairs a Body with the bookkeeping the scheduler needs: priority,
// retry budget, optional timeout and an optional post-processing stage
// executed in batches after a successful attempt.
//
// # Bodies
//
// Body is a single-method interface. Closures adapt through Func:
//
//	t := task.New(task.Func(func(ctx context.Context) (any, error) {
//	    return fetchMetadata(ctx, url)
//	}), task.WithPriority(task.PriorityHigh), task.WithMaxRetries(5))
//
// Arguments are captured by the closure; the scheduler never inspects them.
//
// # Errors
//
// Body failures are wrapped in TransientTaskError. A task that spends its
// whole retry budget ends with RetryExhaustedError, and a task still queued
// when the scheduler shuts down is dropped with ShutdownError. None of these
// are returned to the producer synchronously; they surface through outcomes
// and statistics.
package task
