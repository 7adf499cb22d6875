// Package batch groups submitted tasks into fixed-size batches and runs each
// batch on a bounded worker pool.
//
// A batch is dispatched when the buffer reaches Config.BatchSize or on Flush.
// Units of every in-flight batch share one pool of Config.MaxWorkers slots, so
// the number of bodies running at once never exceeds MaxWorkers. A failing or
// panicking unit yields an error Outcome and does not stop the rest of its
// batch.
package batch
