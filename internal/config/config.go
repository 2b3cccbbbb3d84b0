// Package config provides a JSON-file-backed configuration struct for
// an embedding binary, with nested sub-configs and field defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds every knob an embedder can tune without recompiling.
// Unlike a network-facing SQL server's config, there is no listen
// address, connection pool, or session-expiry section here: cynos has
// no socket of its own (see cmd/cynosd and cmd/cynosmcp for that layer)
// and no multi-client session concept, so those sub-configs have no
// engine-side consumer and are left out rather than carried unwired.
type Config struct {
	Log       LogConfig       `json:"log"`
	Monitor   MonitorConfig   `json:"monitor"`
	Optimizer OptimizerConfig `json:"optimizer"`
}

// LogConfig holds a log level and format. LoadConfig validates Format;
// engine.Database reads neither field (its *log.Logger is set with
// SetLogger).
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
}

// MonitorConfig controls slow-query detection.
type MonitorConfig struct {
	SlowQuery SlowQueryConfig `json:"slow_query"`
}

// SlowQueryConfig sets the duration threshold past which a Select or
// Transaction.Commit is recorded as a slow query by internal/metrics.
// A zero Threshold turns slow-query recording off.
type SlowQueryConfig struct {
	Threshold time.Duration `json:"threshold"`
}

// OptimizerConfig toggles the planner's rewrite passes.
type OptimizerConfig struct {
	// Enabled runs planner.Optimize/OptimizeForDataflow before
	// execution. Disabling it runs the unoptimized logical plan
	// directly, useful for isolating a planner bug from an executor
	// bug during development.
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns the configuration an embedder gets with no
// config file: info-level text logs, a one-second slow-query
// threshold, and the optimizer turned on.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Monitor: MonitorConfig{
			SlowQuery: SlowQueryConfig{
				Threshold: 1 * time.Second,
			},
		},
		Optimizer: OptimizerConfig{
			Enabled: true,
		},
	}
}

// LoadConfig reads and parses a JSON config file, applying its fields
// on top of DefaultConfig so a config file only needs to mention what
// it overrides. An empty path returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Monitor.SlowQuery.Threshold < 0 {
		return fmt.Errorf("config: monitor.slow_query.threshold must not be negative")
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be \"text\" or \"json\", got %q", cfg.Log.Format)
	}
	return nil
}
