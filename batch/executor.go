package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/taskops/observe"
	"github.com/jonwraymond/taskops/resilience"
	"github.com/jonwraymond/taskops/task"
)

// Config configures an Executor.
type Config struct {
	// BatchSize is the buffer length that triggers a dispatch.
	// Default: 50
	BatchSize int

	// MaxWorkers bounds how many units run at once across all batches.
	// Default: 10
	MaxWorkers int
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{BatchSize: 50, MaxWorkers: 10}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSink sets the metrics sink. Default: observe.NopSink().
func WithSink(s observe.Sink) Option {
	return func(e *Executor) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithResultHandler registers fn to receive every finished batch. fn runs on
// the goroutine that ran the batch.
func WithResultHandler(fn func(Result)) Option {
	return func(e *Executor) {
		e.onResult = fn
	}
}

// Executor buffers tasks and runs them in batches.
//
// The pool is owned by the Executor and shared by every batch it dispatches.
type Executor struct {
	config   Config
	pool     *resilience.Bulkhead
	logger   observe.Logger
	sink     observe.Sink
	onResult func(Result)

	// units run on ctx; Close cancels it once waiting is over
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	buffer []*task.Task
	closed bool
	wg     sync.WaitGroup

	seq       atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	batches   atomic.Int64
	inflight  atomic.Int64
	busy      atomic.Int64 // cumulative batch time in nanoseconds
}

// New creates an Executor.
func New(config Config, opts ...Option) *Executor {
	// Apply defaults
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		config: config,
		pool:   resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: config.MaxWorkers}),
		logger: observe.NopLogger(),
		sink:   observe.NopSink(),
		ctx:    ctx,
		cancel: cancel,
		buffer: make([]*task.Task, 0, config.BatchSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit appends t to the buffer, dispatching the buffer as a batch once it
// holds BatchSize tasks. It never blocks on execution.
func (e *Executor) Submit(t *task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.buffer = append(e.buffer, t)
	if len(e.buffer) >= e.config.BatchSize {
		e.dispatchLocked()
	}
	return nil
}

// Flush dispatches the buffered tasks as a partial batch and returns how many
// were dispatched.
func (e *Executor) Flush() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatchLocked()
}

// Close flushes the buffer, refuses further submissions, and waits for
// in-flight batches until ctx ends. Units still waiting for a pool slot when
// ctx ends finish with the context error. Close is idempotent.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.dispatchLocked()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	defer e.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) dispatchLocked() int {
	n := len(e.buffer)
	if n == 0 {
		return 0
	}
	units := e.buffer
	e.buffer = make([]*task.Task, 0, e.config.BatchSize)

	e.wg.Add(1)
	go e.run(e.seq.Add(1), units)
	return n
}

func (e *Executor) run(seq int64, units []*task.Task) {
	defer e.wg.Done()
	e.inflight.Add(1)

	start := time.Now()
	outcomes := make([]Outcome, len(units))

	var wg sync.WaitGroup
	for i, t := range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = e.runUnit(t)
		}()
	}
	wg.Wait()

	res := Result{
		ID:       uuid.NewString(),
		Seq:      seq,
		Outcomes: outcomes,
		Duration: time.Since(start),
	}
	for _, o := range outcomes {
		if o.OK() {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	e.processed.Add(int64(res.Succeeded))
	e.failed.Add(int64(res.Failed))
	e.batches.Add(1)
	e.busy.Add(int64(res.Duration))
	e.inflight.Add(-1)

	e.sink.RecordBatch(e.ctx, res.Size(), res.Failed, res.Duration)
	e.logger.Debug(e.ctx, "batch completed",
		observe.F("batch.id", res.ID),
		observe.F("batch.seq", res.Seq),
		observe.F("batch.size", res.Size()),
		observe.F("batch.failed", res.Failed),
		observe.F("duration_ms", float64(res.Duration.Microseconds())/1000),
	)

	if e.onResult != nil {
		e.onResult(res)
	}
}

func (e *Executor) runUnit(t *task.Task) Outcome {
	start := time.Now()
	out := Outcome{TaskID: t.ID}

	if err := e.pool.Acquire(e.ctx); err != nil {
		out.Err = err
		return out
	}
	defer e.pool.Release()

	out.Value, out.Err = resilience.WithTimeout(e.ctx, t.Timeout, t.Body.Execute)
	out.Duration = time.Since(start)
	return out
}

// Stats returns a snapshot of executor statistics.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	buffered := len(e.buffer)
	e.mu.Unlock()

	s := Stats{
		Processed: e.processed.Load(),
		Failed:    e.failed.Load(),
		Batches:   e.batches.Load(),
		Buffered:  buffered,
		InFlight:  e.inflight.Load(),
		Pool:      e.pool.Metrics(),
	}
	if s.Batches > 0 {
		s.AvgBatchTime = time.Duration(e.busy.Load() / s.Batches)
	}
	return s
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Stats contains batch executor statistics.
type Stats struct {
	Processed    int64 // units that succeeded
	Failed       int64 // units that errored, panicked or timed out
	Batches      int64 // finished batches
	Buffered     int
	InFlight     int64
	AvgBatchTime time.Duration
	Pool         resilience.BulkheadMetrics
}

// Utilization returns the share of pool slots in use, as a percentage.
func (s Stats) Utilization() float64 {
	return s.Pool.Utilization()
}
