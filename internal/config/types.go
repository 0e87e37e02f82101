// Package config loads lineal configuration. Settings layer in order:
// built-in defaults, the lineal.yaml project file, LINEAL_* environment
// variables, then command-line flags.
package config

// Config holds the full lineal configuration.
type Config struct {
	// StatePath is the path to the SQLite lineage database
	StatePath string `koanf:"state_path"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `koanf:"log_level"`
	// Workers bounds parallel extraction during sync
	Workers int `koanf:"workers"`
	// Strict makes ambiguous column references fail their object
	Strict bool `koanf:"strict"`
	// RetryAttempts bounds store transaction retries
	RetryAttempts int `koanf:"retry_attempts"`
	// DefaultSource names the data source used when a command omits one
	DefaultSource string `koanf:"default_source"`
}
