// Package config holds the flat configuration of a taskops scheduler and
// loads it through viper from maps, files or the environment.
//
// Unknown keys are ignored and missing keys take their defaults. Durations
// accept either a Go duration string ("90s", "1m30s") or a number of seconds.
package config
