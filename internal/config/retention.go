package config

import (
	"fmt"
	"time"
)

// JournalRetentionConfig holds configuration for journal event cleanup
type JournalRetentionConfig struct {
	// RetentionDays is how long journal events are kept (in days)
	// Events older than this are eligible for deletion
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// PerLoopLimitEvents is the maximum number of events to keep per
	// loop. When the limit is reached, oldest events are deleted first.
	// Set to 0 for unlimited.
	// Default: 2000, Range: 0 or 100-100000
	PerLoopLimitEvents int `yaml:"per_loop_limit_events"`

	// GlobalLimitEvents caps the total number of events in the journal
	// as a safety limit against database bloat
	// Default: 100000, Range: 1000-1000000
	GlobalLimitEvents int `yaml:"global_limit_events"`

	// CleanupEnabled controls whether pruning runs at all
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// DefaultJournalRetentionConfig returns the default retention configuration
//
// These defaults are chosen to:
// - Keep a month of loop history for debugging (30 days)
// - Prevent a runaway loop from flooding the feed (2000 events per loop)
// - Cap total journal size (100k events is a few tens of MB)
func DefaultJournalRetentionConfig() JournalRetentionConfig {
	return JournalRetentionConfig{
		RetentionDays:      30,
		PerLoopLimitEvents: 2000,
		GlobalLimitEvents:  100000,
		CleanupEnabled:     true,
	}
}

// Validate checks if the configuration has valid values
func (c JournalRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}

	if c.PerLoopLimitEvents < 0 {
		return fmt.Errorf("per_loop_limit_events cannot be negative (got %d)", c.PerLoopLimitEvents)
	}
	if c.PerLoopLimitEvents > 0 && c.PerLoopLimitEvents < 100 {
		return fmt.Errorf("per_loop_limit_events must be 0 (unlimited) or >= 100 (got %d)",
			c.PerLoopLimitEvents)
	}
	if c.PerLoopLimitEvents > 100000 {
		return fmt.Errorf("per_loop_limit_events too large (got %d, max 100000)",
			c.PerLoopLimitEvents)
	}

	if c.GlobalLimitEvents < 1000 {
		return fmt.Errorf("global_limit_events must be at least 1000 (got %d)", c.GlobalLimitEvents)
	}
	if c.GlobalLimitEvents > 1000000 {
		return fmt.Errorf("global_limit_events too large (got %d, max 1000000)", c.GlobalLimitEvents)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c JournalRetentionConfig) String() string {
	return fmt.Sprintf(
		"JournalRetentionConfig{RetentionDays: %d, PerLoopLimit: %d, GlobalLimit: %d, Enabled: %t}",
		c.RetentionDays, c.PerLoopLimitEvents, c.GlobalLimitEvents, c.CleanupEnabled,
	)
}

// RetentionAge returns the age threshold as a time.Duration
func (c JournalRetentionConfig) RetentionAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// JournalRetentionFromEnv creates a JournalRetentionConfig from
// environment variables, falling back to defaults
//
// Environment variables:
//   - CHURN_JOURNAL_RETENTION_DAYS: Retention period in days (default: 30)
//   - CHURN_JOURNAL_PER_LOOP_LIMIT: Maximum events per loop, 0 for unlimited (default: 2000)
//   - CHURN_JOURNAL_GLOBAL_LIMIT: Maximum total events (default: 100000)
//   - CHURN_JOURNAL_CLEANUP_ENABLED: Enable pruning (default: true)
//
// Returns an error if any environment variable has an invalid value.
func JournalRetentionFromEnv() (JournalRetentionConfig, error) {
	cfg := DefaultJournalRetentionConfig()

	if err := parseEnvInt("CHURN_JOURNAL_RETENTION_DAYS", &cfg.RetentionDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CHURN_JOURNAL_PER_LOOP_LIMIT", &cfg.PerLoopLimitEvents); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CHURN_JOURNAL_GLOBAL_LIMIT", &cfg.GlobalLimitEvents); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CHURN_JOURNAL_CLEANUP_ENABLED", &cfg.CleanupEnabled); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid journal retention configuration from environment: %w", err)
	}

	return cfg, nil
}
