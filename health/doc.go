// Package health reports component health for probes and dashboards.
//
// A Checker returns a Result with a Status of Healthy, Degraded or Unhealthy.
// The scheduler exposes one through Scheduler.HealthChecker; an Aggregator
// runs several checkers concurrently under a shared timeout and the HTTP
// handlers turn the combined view into probe responses:
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register(sched.HealthChecker())
//	health.RegisterHandlers(mux, agg)
//
// Degraded answers 200 so that a throttled scheduler keeps receiving work;
// Unhealthy answers 503.
package health
