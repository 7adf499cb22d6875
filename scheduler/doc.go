// Package scheduler coordinates task execution under adaptive rate control,
// circuit breaking, bounded retries and batched completion.
//
// Tasks wait in a priority queue, strict across tiers and FIFO within one.
// Dispatch workers pop a task, wait for a rate permit, and run the body
// through the circuit breaker bounded by the task timeout. Successful tasks
// hand a completion unit to a batch executor. Failed tasks are requeued at the
// back of their tier until their retry budget is spent. Tasks rejected by an
// open circuit are requeued after a backoff without spending budget.
//
// Every submitted task is accounted for at every observation:
//
//	Submitted == Completed + Failed + Pending + Dropped
//
// where Pending counts queued, running and deferred tasks.
//
// Usage:
//
//	s := scheduler.New(scheduler.DefaultConfig(),
//		scheduler.WithLogger(logger),
//		scheduler.WithCompletionHandler(saveHistory),
//	)
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	defer s.Shutdown(context.Background())
//
//	err := s.Submit(task.New(task.Func(download), task.WithPriority(task.PriorityHigh)))
package scheduler
