// Package config loads the optional ddbaudit.yaml scan configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is absent from the file (or no file exists).
const (
	// DefaultThreshold is the low-utilization cutoff ratio: a table whose
	// average read and write utilization both sit at or below this value
	// is flagged.
	DefaultThreshold = 0.45

	// DefaultDaysBack is the telemetry lookback window in days.
	DefaultDaysBack = 7

	// DefaultPeriodSeconds is the CloudWatch sample granularity.
	DefaultPeriodSeconds = 3600

	// DefaultMaxConcurrentRegions bounds in-flight region pipelines.
	DefaultMaxConcurrentRegions = 10

	// DefaultMaxConcurrentTableChecks bounds in-flight table-level API
	// calls (DescribeTable and metric gathering) across all regions.
	DefaultMaxConcurrentTableChecks = 1000
)

// Config is the scan configuration, read from ./ddbaudit.yaml when present.
// Flag values override anything loaded from the file.
type Config struct {
	Version int `yaml:"version"`

	// Threshold is the low-utilization cutoff ratio in [0, 1].
	Threshold float64 `yaml:"threshold"`

	// DaysBack is the telemetry lookback window in days.
	DaysBack int `yaml:"days_back"`

	// PeriodSeconds is the CloudWatch sample period in seconds.
	PeriodSeconds int `yaml:"period_seconds"`

	// MaxConcurrentRegions caps simultaneously active region pipelines.
	MaxConcurrentRegions int `yaml:"max_concurrent_regions"`

	// MaxConcurrentTableChecks caps simultaneous table-level API calls.
	MaxConcurrentTableChecks int `yaml:"max_concurrent_table_checks"`
}

// Default returns a Config populated with all default values.
func Default() *Config {
	return &Config{
		Version:                  1,
		Threshold:                DefaultThreshold,
		DaysBack:                 DefaultDaysBack,
		PeriodSeconds:            DefaultPeriodSeconds,
		MaxConcurrentRegions:     DefaultMaxConcurrentRegions,
		MaxConcurrentTableChecks: DefaultMaxConcurrentTableChecks,
	}
}

// Load reads and validates the configuration file at path. A missing file is
// not an error: the defaults are returned. Unset numeric fields are filled
// with their defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{Version: 1}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills zero-valued numeric fields with their defaults so a
// partial file only overrides what it names. A threshold of exactly 0 is
// treated as unset; it would flag only tables with no valid samples at all.
func (c *Config) applyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.DaysBack == 0 {
		c.DaysBack = DefaultDaysBack
	}
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = DefaultPeriodSeconds
	}
	if c.MaxConcurrentRegions == 0 {
		c.MaxConcurrentRegions = DefaultMaxConcurrentRegions
	}
	if c.MaxConcurrentTableChecks == 0 {
		c.MaxConcurrentTableChecks = DefaultMaxConcurrentTableChecks
	}
}

// Validate checks field ranges. It is called by Load and again by the CLI
// after flag overrides are applied.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v out of range [0, 1]", c.Threshold)
	}
	if c.DaysBack < 1 {
		return fmt.Errorf("days_back must be at least 1, got %d", c.DaysBack)
	}
	if c.PeriodSeconds < 60 {
		return fmt.Errorf("period_seconds must be at least 60, got %d", c.PeriodSeconds)
	}
	if c.MaxConcurrentRegions < 1 {
		return fmt.Errorf("max_concurrent_regions must be at least 1, got %d", c.MaxConcurrentRegions)
	}
	if c.MaxConcurrentTableChecks < 1 {
		return fmt.Errorf("max_concurrent_table_checks must be at least 1, got %d", c.MaxConcurrentTableChecks)
	}
	return nil
}
