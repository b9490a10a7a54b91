// Package detect orchestrates the detection pipeline: it loads the
// tunable configuration, runs every stage in declared order and hands
// the findings to the ledger.
package detect

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/outlier"
	"github.com/claimsight-ai/platform/pkg/rules"
)

// ConfigError reports a rejected configuration value. A run never
// starts with an invalid config.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid detection config: %s: %s", e.Field, e.Message)
}

// ForestSettings tunes the isolation forest detector.
type ForestSettings struct {
	Trees          int     `yaml:"trees"`
	SampleSize     int     `yaml:"sample_size"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	Seed           int64   `yaml:"seed"`
}

// Config carries every pipeline tunable. Dates are ISO strings in the
// YAML file and parsed during validation.
type Config struct {
	ChargeMultiplier  float64 `yaml:"charge_multiplier"`
	ZMADThreshold     float64 `yaml:"zmad_threshold"`
	MonthlyZThreshold float64 `yaml:"monthly_z_threshold"`
	IQRMultiplier     float64 `yaml:"iqr_multiplier"`
	MinCohortSize     int     `yaml:"min_cohort_size"`

	InactivityGapDays int `yaml:"inactivity_gap_days"`
	BurstWindowDays   int `yaml:"burst_window_days"`
	BurstCount        int `yaml:"burst_count"`

	DateWindowStart string `yaml:"date_window_start"`
	DateWindowEnd   string `yaml:"date_window_end"`

	RevisionMinAbsoluteDelta float64 `yaml:"revision_min_absolute_delta"`
	RevisionMinPercentDelta  float64 `yaml:"revision_min_percent_delta"`

	Forest ForestSettings `yaml:"isolation_forest"`

	windowStart time.Time
	windowEnd   time.Time
}

// Default returns the shipped tuning.
func Default() *Config {
	return &Config{
		ChargeMultiplier:  10,
		ZMADThreshold:     4.5,
		MonthlyZThreshold: 3,
		IQRMultiplier:     3,
		MinCohortSize:     5,

		InactivityGapDays: 120,
		BurstWindowDays:   7,
		BurstCount:        4,

		DateWindowStart: "2020-01-01",
		DateWindowEnd:   "2023-12-31",

		RevisionMinAbsoluteDelta: 1000,
		RevisionMinPercentDelta:  20,

		Forest: ForestSettings{
			Trees:          100,
			SampleSize:     256,
			ScoreThreshold: 0.65,
			Seed:           1,
		},
	}
}

// LoadConfig reads the YAML tuning file, falling back to the defaults
// when no path is configured or the file cannot be read.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		logger.WithField("path", path).Warn("detection config not readable, using defaults")
		return cfg, cfg.Validate()
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse detection config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every tunable and parses the date window. It returns
// a ConfigError on the first rejected field.
func (c *Config) Validate() error {
	if c.ChargeMultiplier <= 1 {
		return &ConfigError{Field: "charge_multiplier", Message: "must be greater than 1"}
	}
	if c.ZMADThreshold <= 0 {
		return &ConfigError{Field: "zmad_threshold", Message: "must be positive"}
	}
	if c.MonthlyZThreshold <= 0 {
		return &ConfigError{Field: "monthly_z_threshold", Message: "must be positive"}
	}
	if c.IQRMultiplier <= 0 {
		return &ConfigError{Field: "iqr_multiplier", Message: "must be positive"}
	}
	if c.MinCohortSize < 2 {
		return &ConfigError{Field: "min_cohort_size", Message: "must be at least 2"}
	}
	if c.InactivityGapDays <= 0 {
		return &ConfigError{Field: "inactivity_gap_days", Message: "must be positive"}
	}
	if c.BurstWindowDays <= 0 {
		return &ConfigError{Field: "burst_window_days", Message: "must be positive"}
	}
	if c.BurstCount < 2 {
		return &ConfigError{Field: "burst_count", Message: "must be at least 2"}
	}
	if c.RevisionMinAbsoluteDelta < 0 {
		return &ConfigError{Field: "revision_min_absolute_delta", Message: "must not be negative"}
	}
	if c.RevisionMinPercentDelta < 0 {
		return &ConfigError{Field: "revision_min_percent_delta", Message: "must not be negative"}
	}
	if c.Forest.Trees <= 0 {
		return &ConfigError{Field: "isolation_forest.trees", Message: "must be positive"}
	}
	if c.Forest.SampleSize <= 1 {
		return &ConfigError{Field: "isolation_forest.sample_size", Message: "must be at least 2"}
	}
	if c.Forest.ScoreThreshold <= 0 || c.Forest.ScoreThreshold >= 1 {
		return &ConfigError{Field: "isolation_forest.score_threshold", Message: "must be in (0, 1)"}
	}

	start, err := time.Parse("2006-01-02", c.DateWindowStart)
	if err != nil {
		return &ConfigError{Field: "date_window_start", Message: "must be a YYYY-MM-DD date"}
	}
	end, err := time.Parse("2006-01-02", c.DateWindowEnd)
	if err != nil {
		return &ConfigError{Field: "date_window_end", Message: "must be a YYYY-MM-DD date"}
	}
	if end.Before(start) {
		return &ConfigError{Field: "date_window_end", Message: "must not precede date_window_start"}
	}
	c.windowStart = start
	c.windowEnd = end
	return nil
}

// Thresholds projects the config onto the row-rule tunables.
func (c *Config) Thresholds() rules.Thresholds {
	return rules.Thresholds{
		ChargeMultiplier: c.ChargeMultiplier,
		DateWindowStart:  c.windowStart,
		DateWindowEnd:    c.windowEnd,
	}
}

// ForestConfig projects the config onto the isolation forest options.
func (c *Config) ForestConfig() outlier.ForestConfig {
	return outlier.ForestConfig{
		Trees:          c.Forest.Trees,
		SampleSize:     c.Forest.SampleSize,
		ScoreThreshold: c.Forest.ScoreThreshold,
		Seed:           c.Forest.Seed,
	}
}

// ActivityOptions projects the config onto the temporal detectors.
func (c *Config) ActivityOptions() outlier.ActivityOptions {
	return outlier.ActivityOptions{
		GapDays:         c.InactivityGapDays,
		BurstWindowDays: c.BurstWindowDays,
		BurstCount:      c.BurstCount,
	}
}

// RevisionOptions projects the config onto the revision diff.
func (c *Config) RevisionOptions() outlier.RevisionOptions {
	return outlier.RevisionOptions{
		MinAbsoluteDelta: c.RevisionMinAbsoluteDelta,
		MinPercentDelta:  c.RevisionMinPercentDelta,
	}
}
