package config

import (
	"fmt"
	"time"

	"github.com/jonwraymond/taskops/batch"
	"github.com/jonwraymond/taskops/observe"
	"github.com/jonwraymond/taskops/resilience"
	"github.com/jonwraymond/taskops/results"
	"github.com/jonwraymond/taskops/scheduler"
)

// Keys recognized by the loaders.
const (
	KeyBatchSize        = "batch_size"
	KeyMaxWorkers       = "max_workers"
	KeyInitialRate      = "initial_rate"
	KeyMinRate          = "min_rate"
	KeyMaxRate          = "max_rate"
	KeyFailureThreshold = "failure_threshold"
	KeyRecoveryTimeout  = "recovery_timeout"
	KeyDispatchWorkers  = "dispatch_workers"
	KeyPollInterval     = "poll_interval"
	KeyShutdownTimeout  = "shutdown_timeout"
	KeyAdjustmentWindow = "adjustment_window"
	KeyResultTTL        = "result_ttl"
	KeyServiceName      = "service_name"
	KeyLogLevel         = "log_level"
	KeyMetricsExporter  = "metrics_exporter"
	KeyTracingExporter  = "tracing_exporter"
	KeyTraceSamplePct   = "trace_sample_pct"
)

// Config is the complete scheduler configuration.
type Config struct {
	// BatchSize is the number of completion units per batch.
	// Default: 50
	BatchSize int

	// MaxWorkers is the batch executor pool size.
	// Default: 10
	MaxWorkers int

	// InitialRate is the starting dispatch rate in tasks per second.
	// Default: 10
	InitialRate float64

	// MinRate is the rate floor.
	// Default: 1
	MinRate float64

	// MaxRate is the rate ceiling.
	// Default: 100
	MaxRate float64

	// FailureThreshold is the consecutive failures that open the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open.
	// Default: 60s
	RecoveryTimeout time.Duration

	// DispatchWorkers is the number of goroutines popping the queue.
	// Default: 1
	DispatchWorkers int

	// PollInterval bounds an idle dispatch worker's wait.
	// Default: 1s
	PollInterval time.Duration

	// ShutdownTimeout bounds Shutdown when the caller's context has no deadline.
	// Default: 30s
	ShutdownTimeout time.Duration

	// AdjustmentWindow is the number of outcomes per rate adjustment.
	// Default: 10
	AdjustmentWindow int

	// ResultTTL is how long terminal outcomes stay pollable. Zero keeps none.
	// Default: 10m
	ResultTTL time.Duration

	// ServiceName labels telemetry.
	// Default: "taskops"
	ServiceName string

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string

	// MetricsExporter is one of otlp, prometheus, stdout, none.
	// Default: "none"
	MetricsExporter string

	// TracingExporter is one of otlp, jaeger, stdout, none.
	// Default: "none"
	TracingExporter string

	// TraceSamplePct is the sampled share of traces in [0, 1].
	// Default: 1.0
	TraceSamplePct float64
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		BatchSize:        50,
		MaxWorkers:       10,
		InitialRate:      10,
		MinRate:          1,
		MaxRate:          100,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		DispatchWorkers:  1,
		PollInterval:     time.Second,
		ShutdownTimeout:  30 * time.Second,
		AdjustmentWindow: 10,
		ResultTTL:        10 * time.Minute,
		ServiceName:      "taskops",
		LogLevel:         "info",
		MetricsExporter:  "none",
		TracingExporter:  "none",
		TraceSamplePct:   1.0,
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	positive := []struct {
		key string
		v   int
	}{
		{KeyBatchSize, c.BatchSize},
		{KeyMaxWorkers, c.MaxWorkers},
		{KeyFailureThreshold, c.FailureThreshold},
		{KeyDispatchWorkers, c.DispatchWorkers},
		{KeyAdjustmentWindow, c.AdjustmentWindow},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, p.key, p.v)
		}
	}

	if c.MinRate <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalid, KeyMinRate, c.MinRate)
	}
	if c.MaxRate < c.MinRate {
		return fmt.Errorf("%w: %s %g is below %s %g", ErrInvalid, KeyMaxRate, c.MaxRate, KeyMinRate, c.MinRate)
	}
	if c.InitialRate <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalid, KeyInitialRate, c.InitialRate)
	}

	durations := []struct {
		key string
		v   time.Duration
	}{
		{KeyRecoveryTimeout, c.RecoveryTimeout},
		{KeyPollInterval, c.PollInterval},
		{KeyShutdownTimeout, c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalid, d.key, d.v)
		}
	}
	if c.ResultTTL < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalid, KeyResultTTL, c.ResultTTL)
	}

	oc := c.Observe()
	if err := oc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Observe maps the telemetry settings to an observe.Config. An exporter of
// "none" disables its subsystem.
func (c Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(c.TracingExporter),
			Exporter:  c.TracingExporter,
			SamplePct: c.TraceSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(c.MetricsExporter),
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}

// RateControllerConfig derives the adaptive rate controller settings.
func (c Config) RateControllerConfig() resilience.RateControllerConfig {
	return resilience.RateControllerConfig{
		InitialRate: c.InitialRate,
		MinRate:     c.MinRate,
		MaxRate:     c.MaxRate,
		Window:      c.AdjustmentWindow,
	}
}

// CircuitBreakerConfig derives the circuit breaker settings.
func (c Config) CircuitBreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.FailureThreshold,
		RecoveryTimeout:  c.RecoveryTimeout,
	}
}

// BatchConfig derives the batch executor settings.
func (c Config) BatchConfig() batch.Config {
	return batch.Config{
		BatchSize:  c.BatchSize,
		MaxWorkers: c.MaxWorkers,
	}
}

// ResultPolicy derives the outcome retention policy.
func (c Config) ResultPolicy() results.Policy {
	return results.Policy{DefaultTTL: c.ResultTTL}
}

// SchedulerConfig derives the complete scheduler settings.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		DispatchWorkers: c.DispatchWorkers,
		PollInterval:    c.PollInterval,
		ShutdownTimeout: c.ShutdownTimeout,
		Rate:            c.RateControllerConfig(),
		Circuit:         c.CircuitBreakerConfig(),
		Batch:           c.BatchConfig(),
		Retention:       c.ResultPolicy(),
	}
}
