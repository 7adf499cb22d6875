package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/taskops/batch"
	"github.com/jonwraymond/taskops/observe"
	"github.com/jonwraymond/taskops/resilience"
	"github.com/jonwraymond/taskops/results"
	"github.com/jonwraymond/taskops/task"
)

type lifecycle int

const (
	stateIdle lifecycle = iota
	stateRunning
	stateStopping
	stateStopped
)

type deferral struct {
	task  *task.Task
	timer *time.Timer
}

type counters struct {
	submitted int64
	completed int64
	failed    int64
	retried   int64
	deferred  int64
	dropped   int64
}

// Scheduler runs submitted tasks by priority under rate control and circuit
// breaking.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Submit never blocks on execution.
//   - Task errors never escape the dispatch loop; they surface through Stats,
//     Outcome and the failure handler.
type Scheduler struct {
	config Config

	logger     observe.Logger
	sink       observe.Sink
	tracer     observe.TaskTracer
	store      results.Store
	onComplete CompletionHandler
	onFailure  FailureHandler
	onDrop     DropHandler

	rate      *resilience.RateController
	circuit   *resilience.CircuitBreaker
	admission *resilience.Executor
	mw        *observe.Middleware
	batch     *batch.Executor

	wake chan struct{}
	done chan struct{}

	// mu guards everything below. Counters and gauges move together so the
	// conservation equation holds for every Stats snapshot.
	mu        sync.Mutex
	state     lifecycle
	cancel    context.CancelFunc
	startedAt time.Time
	queue     *queue
	live      map[string]struct{}
	deferred  map[string]*deferral
	backoffs  map[string]*resilience.Backoff
	seq       uint64
	running   int
	drained   bool
	count     counters
}

// New creates a Scheduler. Tasks may be submitted before Start.
func New(config Config, opts ...Option) *Scheduler {
	// Apply defaults
	if config.DispatchWorkers <= 0 {
		config.DispatchWorkers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	s := &Scheduler{
		config:   config,
		logger:   observe.NopLogger(),
		sink:     observe.NopSink(),
		tracer:   observe.NopTaskTracer(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		queue:    newQueue(),
		live:     make(map[string]struct{}),
		deferred: make(map[string]*deferral),
		backoffs: make(map[string]*resilience.Backoff),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = results.NewMemoryStore(config.Retention)
	}

	rateConfig := config.Rate
	onRate := rateConfig.OnRateChange
	rateConfig.OnRateChange = func(old, cur float64) {
		ctx := context.Background()
		s.sink.RecordRate(ctx, cur)
		s.logger.Info(ctx, "dispatch rate adjusted",
			observe.F("rate.old", old),
			observe.F("rate.new", cur),
		)
		if onRate != nil {
			onRate(old, cur)
		}
	}
	s.rate = resilience.NewRateController(rateConfig)

	circuitConfig := config.Circuit
	onState := circuitConfig.OnStateChange
	circuitConfig.OnStateChange = func(from, to resilience.State) {
		ctx := context.Background()
		s.sink.RecordCircuitTransition(ctx, from.String(), to.String())
		s.logger.Warn(ctx, "circuit state changed",
			observe.F("circuit.from", from.String()),
			observe.F("circuit.to", to.String()),
		)
		if onState != nil {
			onState(from, to)
		}
	}
	s.circuit = resilience.NewCircuitBreaker(circuitConfig)

	s.admission = resilience.NewExecutor(
		resilience.WithRateController(s.rate),
		resilience.WithCircuitBreaker(s.circuit),
		resilience.WithDetachedExecution(),
	)
	s.mw = observe.NewMiddleware(s.tracer, s.sink, s.logger)
	s.batch = batch.New(config.Batch,
		batch.WithLogger(s.logger),
		batch.WithSink(s.sink),
		batch.WithResultHandler(s.onBatch),
	)

	s.sink.RecordRate(context.Background(), s.rate.CurrentRate())
	return s
}

// Start launches the dispatch workers. Cancelling ctx stops dispatch the same
// way Shutdown does, but queued tasks stay queued until Shutdown drops them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateRunning:
		s.mu.Unlock()
		return ErrAlreadyStarted
	case stateStopping, stateStopped:
		s.mu.Unlock()
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = stateRunning
	s.startedAt = time.Now()
	queued := s.queue.len()
	s.mu.Unlock()

	var g errgroup.Group
	for i := range s.config.DispatchWorkers {
		g.Go(func() error {
			s.work(runCtx, i)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(s.done)
	}()

	s.logger.Info(ctx, "scheduler started",
		observe.F("dispatch_workers", s.config.DispatchWorkers),
		observe.F("queued", queued),
	)
	return nil
}

// Submit queues t. It fails with task.ErrNilBody for a nil task or body,
// with ErrTaskFinished for a task that already ran to a terminal state, with
// ErrDuplicateTask while a task with the same ID is pending, and with
// ErrClosed after Shutdown.
func (s *Scheduler) Submit(t *task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state >= stateStopping {
		s.mu.Unlock()
		return ErrClosed
	}
	if t.State().Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s (%s)", ErrTaskFinished, t.ID, t.State())
	}
	t.Normalize()
	if _, ok := s.live[t.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	s.live[t.ID] = struct{}{}
	s.count.submitted++
	s.seq++
	s.queue.push(t, s.seq)
	t.SetState(task.StatePending)
	s.mu.Unlock()

	ctx := context.Background()
	s.sink.RecordTask(ctx, observe.EventSubmitted, t.Priority.String())
	s.sink.RecordQueueDepth(ctx, 1)
	s.logger.Debug(ctx, "task submitted", metaOf(t).Fields()...)
	s.signal()
	return nil
}

// Cancel removes a queued or deferred task and reports whether it did. A
// running task cannot be cancelled.
func (s *Scheduler) Cancel(ctx context.Context, id string) bool {
	s.mu.Lock()
	t, ok := s.queue.remove(id)
	fromQueue := ok
	if !ok {
		if d, found := s.deferred[id]; found {
			d.timer.Stop()
			delete(s.deferred, id)
			t, ok = d.task, true
		}
	}
	if ok {
		s.dropLocked(t)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if fromQueue {
		s.sink.RecordQueueDepth(ctx, -1)
	}
	s.notifyDrop(ctx, t, ErrCanceled)
	return true
}

// Outcome returns the terminal outcome of a task while the result store
// retains it.
func (s *Scheduler) Outcome(ctx context.Context, id string) (results.Outcome, bool) {
	return s.store.Get(ctx, id)
}

// Shutdown stops dispatch, waits for the workers, drops every task that is
// still queued or deferred, and closes the batch executor.
//
// Running tasks finish or time out on their own. When ctx has no deadline,
// Config.ShutdownTimeout bounds the wait. ErrShutdownTimeout is returned if
// workers are still busy at the deadline. Shutdown is idempotent.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state >= stateStopping {
		s.mu.Unlock()
		return nil
	}
	started := s.state == stateRunning
	s.state = stateStopping
	cancel := s.cancel
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancelTimeout()
	}
	s.logger.Info(ctx, "scheduler shutting down")

	var errs []error
	if started {
		cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			errs = append(errs, ErrShutdownTimeout)
		}
	}

	dropped := s.drain(context.WithoutCancel(ctx))

	if err := s.batch.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: close batch executor: %w", err))
	}

	s.mu.Lock()
	s.state = stateStopped
	s.mu.Unlock()

	s.logger.Info(ctx, "scheduler stopped", observe.F("dropped", dropped))
	return errors.Join(errs...)
}

func (s *Scheduler) work(ctx context.Context, worker int) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Debug(ctx, "dispatch worker started", observe.F("worker", worker))
	for {
		if ctx.Err() != nil {
			return
		}
		if it, ok := s.pop(ctx); ok {
			s.dispatch(ctx, it)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

func (s *Scheduler) pop(ctx context.Context) (*item, bool) {
	s.mu.Lock()
	it, ok := s.queue.pop()
	if ok {
		s.running++
		it.task.SetState(task.StateRunning)
	}
	more := s.queue.len() > 0
	s.mu.Unlock()

	if !ok {
		return nil, false
	}
	s.sink.RecordQueueDepth(ctx, -1)
	if more {
		s.signal()
	}
	return it, true
}

func (s *Scheduler) dispatch(ctx context.Context, it *item) {
	t := it.task
	meta := metaOf(t)
	attempt := s.mw.Wrap(func(ctx context.Context, _ observe.TaskMeta) (any, error) {
		return t.Body.Execute(ctx)
	})

	var ran atomic.Bool
	value, err := s.admission.Call(ctx, t.Timeout, func(ctx context.Context) (any, error) {
		ran.Store(true)
		return attempt(ctx, meta)
	})

	hctx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		s.complete(hctx, t, value)
	case errors.Is(err, resilience.ErrNotAdmitted):
		// shutdown ended the wait for a permit; the task keeps its place
		s.requeue(hctx, t, it.seq)
	case errors.Is(err, resilience.ErrCircuitOpen) && !ran.Load():
		s.postpone(hctx, t)
	default:
		s.retryOrFail(hctx, t, err)
	}
}

func (s *Scheduler) complete(ctx context.Context, t *task.Task, value any) {
	s.record(ctx, t, task.StateCompleted, value, nil, t.Attempt())

	unit := task.New(
		task.Func(func(ctx context.Context) (any, error) {
			return s.finish(ctx, t, value)
		}),
		task.WithID(t.ID),
		task.WithName(t.Name),
		task.WithPriority(t.Priority),
		task.WithTimeout(t.Timeout),
		task.WithMaxRetries(0),
	)
	if err := s.batch.Submit(unit); err != nil {
		s.logger.Warn(ctx, "completion unit not submitted", append(metaOf(t).Fields(), observe.F("error", err))...)
	}

	s.mu.Lock()
	s.running--
	s.count.completed++
	s.forgetLocked(t)
	t.SetState(task.StateCompleted)
	s.mu.Unlock()

	s.sink.RecordTask(ctx, observe.EventCompleted, t.Priority.String())
	s.logger.Info(ctx, "task completed", metaOf(t).Fields()...)
}

// finish runs inside the batch executor: the task's PostProcess stage, then
// the completion handler.
func (s *Scheduler) finish(ctx context.Context, t *task.Task, value any) (any, error) {
	if t.PostProcess != nil {
		processed, err := t.PostProcess(ctx, value)
		if err != nil {
			err = fmt.Errorf("post-process: %w", err)
			s.record(ctx, t, task.StateCompleted, value, err, t.Attempt())
			return nil, err
		}
		value = processed
		s.record(ctx, t, task.StateCompleted, value, nil, t.Attempt())
	}

	if s.onComplete != nil {
		if err := s.onComplete(ctx, t, value); err != nil {
			return value, fmt.Errorf("completion handler: %w", err)
		}
	}
	return value, nil
}

func (s *Scheduler) onBatch(res batch.Result) {
	ctx := context.Background()
	for _, o := range res.Outcomes {
		if !o.OK() {
			s.logger.Warn(ctx, "completion unit failed",
				observe.F("task.id", o.TaskID),
				observe.F("batch.id", res.ID),
				observe.F("error", o.Err),
			)
		}
	}
}

func (s *Scheduler) retryOrFail(ctx context.Context, t *task.Task, err error) {
	attempt := t.Attempt()
	transient := &task.TransientTaskError{TaskID: t.ID, Attempt: attempt, Err: err}

	if t.ConsumeRetry() {
		t.SetState(task.StateRetrying)
		s.logger.Info(ctx, "task requeued for retry",
			append(metaOf(t).Fields(),
				observe.F("retry_count", t.RetryCount()),
				observe.F("error", transient),
			)...,
		)

		s.mu.Lock()
		s.running--
		s.count.retried++
		s.seq++
		queued := s.enqueueLocked(t, s.seq)
		s.mu.Unlock()

		s.sink.RecordTask(ctx, observe.EventRetried, t.Priority.String())
		s.afterEnqueue(ctx, t, queued)
		return
	}

	exhausted := &task.RetryExhaustedError{TaskID: t.ID, Attempts: attempt, Err: err}
	s.record(ctx, t, task.StateFailed, nil, exhausted, attempt)

	s.mu.Lock()
	s.running--
	s.count.failed++
	s.forgetLocked(t)
	t.SetState(task.StateFailed)
	s.mu.Unlock()

	s.sink.RecordTask(ctx, observe.EventFailed, t.Priority.String())
	s.logger.Error(ctx, "task failed", append(metaOf(t).Fields(), observe.F("error", exhausted))...)
	if s.onFailure != nil {
		s.onFailure(ctx, t, exhausted)
	}
}

// requeue returns a task that was never attempted to the queue under seq.
func (s *Scheduler) requeue(ctx context.Context, t *task.Task, seq uint64) {
	s.mu.Lock()
	s.running--
	queued := s.enqueueLocked(t, seq)
	s.mu.Unlock()

	s.afterEnqueue(ctx, t, queued)
}

// postpone parks a task rejected by the open circuit and requeues it after
// its next backoff delay. The retry budget is untouched.
func (s *Scheduler) postpone(ctx context.Context, t *task.Task) {
	s.mu.Lock()
	s.running--
	if s.drained {
		s.dropLocked(t)
		s.mu.Unlock()
		s.notifyDrop(ctx, t, &task.ShutdownError{TaskID: t.ID})
		return
	}

	b, ok := s.backoffs[t.ID]
	if !ok {
		b = resilience.NewBackoff(s.config.Deferral)
		s.backoffs[t.ID] = b
	}
	delay := b.Next()
	if delay <= 0 {
		delay = s.config.PollInterval
	}

	d := &deferral{task: t}
	d.timer = time.AfterFunc(delay, func() { s.resume(t.ID) })
	s.deferred[t.ID] = d
	s.count.deferred++
	t.SetState(task.StatePending)
	s.mu.Unlock()

	s.sink.RecordTask(ctx, observe.EventDeferred, t.Priority.String())
	s.logger.Debug(ctx, "task deferred while circuit is open",
		append(metaOf(t).Fields(), observe.F("delay_ms", delay.Milliseconds()))...,
	)
}

func (s *Scheduler) resume(id string) {
	s.mu.Lock()
	d, ok := s.deferred[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.deferred, id)
	s.seq++
	queued := s.enqueueLocked(d.task, s.seq)
	s.mu.Unlock()

	s.afterEnqueue(context.Background(), d.task, queued)
}

// enqueueLocked pushes t unless the queue has been drained, in which case
// t is dropped and false is returned.
func (s *Scheduler) enqueueLocked(t *task.Task, seq uint64) bool {
	if s.drained {
		s.dropLocked(t)
		return false
	}
	s.queue.push(t, seq)
	t.SetState(task.StatePending)
	return true
}

func (s *Scheduler) afterEnqueue(ctx context.Context, t *task.Task, queued bool) {
	if !queued {
		s.notifyDrop(ctx, t, &task.ShutdownError{TaskID: t.ID})
		return
	}
	s.sink.RecordQueueDepth(ctx, 1)
	s.signal()
}

// drain drops every queued and deferred task and returns how many it dropped.
func (s *Scheduler) drain(ctx context.Context) int {
	s.mu.Lock()
	queued := s.queue.drain()
	dropped := queued
	for id, d := range s.deferred {
		d.timer.Stop()
		delete(s.deferred, id)
		dropped = append(dropped, d.task)
	}
	for _, t := range dropped {
		s.dropLocked(t)
	}
	s.drained = true
	s.mu.Unlock()

	if len(queued) > 0 {
		s.sink.RecordQueueDepth(ctx, -int64(len(queued)))
	}
	for _, t := range dropped {
		s.notifyDrop(ctx, t, &task.ShutdownError{TaskID: t.ID})
	}
	return len(dropped)
}

func (s *Scheduler) dropLocked(t *task.Task) {
	s.count.dropped++
	s.forgetLocked(t)
	t.SetState(task.StateDropped)
}

func (s *Scheduler) forgetLocked(t *task.Task) {
	delete(s.live, t.ID)
	delete(s.backoffs, t.ID)
}

func (s *Scheduler) notifyDrop(ctx context.Context, t *task.Task, err error) {
	s.record(ctx, t, task.StateDropped, nil, err, t.RetryCount())
	s.sink.RecordTask(ctx, observe.EventDropped, t.Priority.String())
	s.logger.Warn(ctx, "task dropped", append(metaOf(t).Fields(), observe.F("error", err))...)
	if s.onDrop != nil {
		s.onDrop(ctx, t, err)
	}
}

func (s *Scheduler) record(ctx context.Context, t *task.Task, state task.State, value any, err error, attempts int) {
	o := results.Outcome{
		TaskID:     t.ID,
		State:      state,
		Value:      value,
		Err:        err,
		Attempts:   attempts,
		FinishedAt: time.Now(),
	}
	if perr := s.store.Put(ctx, o); perr != nil {
		s.logger.Warn(ctx, "failed to store outcome", observe.F("task.id", t.ID), observe.F("error", perr))
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	p, ok := s.store.(interface{ Purge() int })
	if !ok {
		return
	}
	if n := p.Purge(); n > 0 {
		s.logger.Debug(ctx, "expired outcomes purged", observe.F("count", n))
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func metaOf(t *task.Task) observe.TaskMeta {
	return observe.TaskMeta{
		ID:       t.ID,
		Name:     t.Name,
		Priority: t.Priority.String(),
		Attempt:  t.Attempt(),
	}
}
