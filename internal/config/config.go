// Package config provides configuration management for the condor engine:
// the YAML application config and the per-run TOML strategy parameter sets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Market      MarketConfig      `yaml:"market"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Runner      RunnerConfig      `yaml:"runner"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // sim | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	LogFile  string `yaml:"log_file"`  // empty = stdout only
}

// MarketConfig defines market-data provider settings.
type MarketConfig struct {
	PolygonAPIKey string `yaml:"polygon_api_key"`
	// SettleWait is the pause after order submission under live execution,
	// allowing fills to settle before the next mark is read. Ignored in sim.
	SettleWait string `yaml:"settle_wait"`
}

// LedgerConfig defines where run results and fingerprints are stored.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// RunnerConfig defines the parameter-sweep runner settings.
type RunnerConfig struct {
	StrategiesDir string `yaml:"strategies_dir"`
	Concurrency   int    `yaml:"concurrency"`
}

// Load reads and parses the application configuration from the given path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "sim" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'sim' or 'live'")
	}

	switch c.Environment.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be debug|info|warn|error")
	}

	if c.Market.SettleWait != "" {
		if _, err := time.ParseDuration(c.Market.SettleWait); err != nil {
			return fmt.Errorf("market.settle_wait invalid: %w", err)
		}
	}

	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if c.Runner.StrategiesDir == "" {
		return fmt.Errorf("runner.strategies_dir is required")
	}
	if c.Runner.Concurrency < 0 {
		return fmt.Errorf("runner.concurrency must be >= 0")
	}

	return nil
}

// IsSim returns true when running against the simulated provider.
func (c *Config) IsSim() bool {
	return c.Environment.Mode == "sim"
}

// GetSettleWait returns the configured post-submit settle pause.
func (c *Config) GetSettleWait() time.Duration {
	d, err := time.ParseDuration(c.Market.SettleWait)
	if err != nil {
		return 5 * time.Second // default
	}
	return d
}
