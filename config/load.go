package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyBatchSize, d.BatchSize)
	v.SetDefault(KeyMaxWorkers, d.MaxWorkers)
	v.SetDefault(KeyInitialRate, d.InitialRate)
	v.SetDefault(KeyMinRate, d.MinRate)
	v.SetDefault(KeyMaxRate, d.MaxRate)
	v.SetDefault(KeyFailureThreshold, d.FailureThreshold)
	v.SetDefault(KeyRecoveryTimeout, d.RecoveryTimeout.String())
	v.SetDefault(KeyDispatchWorkers, d.DispatchWorkers)
	v.SetDefault(KeyPollInterval, d.PollInterval.String())
	v.SetDefault(KeyShutdownTimeout, d.ShutdownTimeout.String())
	v.SetDefault(KeyAdjustmentWindow, d.AdjustmentWindow)
	v.SetDefault(KeyResultTTL, d.ResultTTL.String())
	v.SetDefault(KeyServiceName, d.ServiceName)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyMetricsExporter, d.MetricsExporter)
	v.SetDefault(KeyTracingExporter, d.TracingExporter)
	v.SetDefault(KeyTraceSamplePct, d.TraceSamplePct)
}

// Load reads a Config from v. Keys v does not hold take their defaults.
// The result is validated.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	r := reader{v: v}

	cfg := Config{
		BatchSize:        r.int(KeyBatchSize),
		MaxWorkers:       r.int(KeyMaxWorkers),
		InitialRate:      r.float(KeyInitialRate),
		MinRate:          r.float(KeyMinRate),
		MaxRate:          r.float(KeyMaxRate),
		FailureThreshold: r.int(KeyFailureThreshold),
		RecoveryTimeout:  r.duration(KeyRecoveryTimeout),
		DispatchWorkers:  r.int(KeyDispatchWorkers),
		PollInterval:     r.duration(KeyPollInterval),
		ShutdownTimeout:  r.duration(KeyShutdownTimeout),
		AdjustmentWindow: r.int(KeyAdjustmentWindow),
		ResultTTL:        r.duration(KeyResultTTL),
		ServiceName:      v.GetString(KeyServiceName),
		LogLevel:         strings.ToLower(v.GetString(KeyLogLevel)),
		MetricsExporter:  strings.ToLower(v.GetString(KeyMetricsExporter)),
		TracingExporter:  strings.ToLower(v.GetString(KeyTracingExporter)),
		TraceSamplePct:   r.float(KeyTraceSamplePct),
	}
	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromMap builds a Config from a flat map. Unknown keys are ignored.
func FromMap(m map[string]any) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	if err := v.MergeConfigMap(m); err != nil {
		return Config{}, fmt.Errorf("config: merge map: %w", err)
	}
	return Load(v)
}

// LoadFile reads a yaml, json or toml file. ${VAR} references are expanded
// from the environment before parsing and an unset one is an error.
func LoadFile(path string) (Config, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "yml":
		format = "yaml"
	case "yaml", "json", "toml":
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return Load(v)
}

// FromEnv reads keys from environment variables named PREFIX_KEY, for
// example TASKOPS_BATCH_SIZE for prefix "taskops".
func FromEnv(prefix string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return Load(v)
}

// reader converts raw viper values and keeps the first conversion error.
type reader struct {
	v   *viper.Viper
	err error
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
	}
}

func (r *reader) int(key string) int {
	n, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return n
}

func (r *reader) float(key string) float64 {
	f, err := cast.ToFloat64E(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return f
}

// duration accepts a Go duration string or a number of seconds.
func (r *reader) duration(key string) time.Duration {
	d, err := parseSeconds(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return d
}

func parseSeconds(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		secs, err := cast.ToFloat64E(s)
		if err != nil {
			return 0, fmt.Errorf("not a duration or number of seconds: %q", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	default:
		secs, err := cast.ToFloat64E(raw)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}
