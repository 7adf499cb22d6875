// Package observe provides the telemetry primitives used by the scheduler.
//
// An Observer owns the OpenTelemetry tracer and meter providers built from a
// Config, a JSON Logger on log/slog, and a Sink that turns scheduler events into
// metric instruments. With the "prometheus" metrics exporter, MetricsHandler
// serves the scrape endpoint for the embedding process to mount.
//
// Middleware wraps a single task attempt with a span, a duration sample and a
// log line. Nothing here installs OpenTelemetry globals.
package observe
