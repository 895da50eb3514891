// Package config resolves runner configuration from defaults, an
// optional YAML config file, and CHURN_* environment variables, in
// that order. Command-line flags are layered on top by the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/churn-dev/churn/internal/types"
)

// DefaultFileName is the config file looked up inside the state directory
const DefaultFileName = "config.yml"

// Config holds the runner-level defaults applied to new loops
type Config struct {
	// MaxIterations is the iteration budget for new loops
	// Default: 10, Range: 1-10000
	MaxIterations int `yaml:"max_iterations"`

	// CompletionKeyword exits the loop when it appears as a whole word
	// in worker output. Empty disables keyword detection.
	// Default: "" (disabled)
	CompletionKeyword string `yaml:"completion_keyword"`

	// AutoRecover enables the recovery escalator on failures. When
	// false the loop pauses on the first failure for manual triage.
	// Default: true
	AutoRecover bool `yaml:"auto_recover"`

	// ExitSeverityThreshold is the qa_cycle exit bar: a review pass with
	// zero issues at or above this severity completes the loop
	// Options: "info", "minor", "major", "critical"
	// Default: "major"
	ExitSeverityThreshold string `yaml:"exit_severity_threshold"`

	// WorkerCommand is the argv of the worker subprocess. Required to
	// start a loop; resumable loops carry their own copy in state.
	// Default: none
	WorkerCommand []string `yaml:"worker_command"`

	// WorkerTimeoutSeconds bounds one worker invocation (in seconds)
	// Default: 600, Range: 1-86400
	WorkerTimeoutSeconds int `yaml:"worker_timeout_seconds"`

	// StateDir is where loop state, the journal, and lock files live
	// Default: ".churn"
	StateDir string `yaml:"state_dir"`
}

// Default returns the default runner configuration
func Default() Config {
	return Config{
		MaxIterations:         10,
		CompletionKeyword:     "",
		AutoRecover:           true,
		ExitSeverityThreshold: string(types.SeverityMajor),
		WorkerTimeoutSeconds:  600,
		StateDir:              ".churn",
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MaxIterations < 1 || c.MaxIterations > 10000 {
		return fmt.Errorf("max_iterations must be between 1 and 10000 (got %d)", c.MaxIterations)
	}

	if c.ExitSeverityThreshold != "" {
		if sev := types.Severity(c.ExitSeverityThreshold); !sev.IsValid() {
			return fmt.Errorf("exit_severity_threshold must be one of info, minor, major, critical (got %q)",
				c.ExitSeverityThreshold)
		}
	}

	if c.WorkerTimeoutSeconds < 1 || c.WorkerTimeoutSeconds > 86400 {
		return fmt.Errorf("worker_timeout_seconds must be between 1 and 86400 (got %d)",
			c.WorkerTimeoutSeconds)
	}

	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}

	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{MaxIterations: %d, Keyword: %q, AutoRecover: %t, "+
			"SeverityThreshold: %s, WorkerCommand: %v, WorkerTimeout: %ds, StateDir: %s}",
		c.MaxIterations, c.CompletionKeyword, c.AutoRecover,
		c.ExitSeverityThreshold, c.WorkerCommand, c.WorkerTimeoutSeconds, c.StateDir,
	)
}

// WorkerTimeout returns the invocation timeout as a time.Duration
func (c Config) WorkerTimeout() time.Duration {
	return time.Duration(c.WorkerTimeoutSeconds) * time.Second
}

// LoopConfig converts the runner defaults into the immutable per-loop
// config captured at loop creation
func (c Config) LoopConfig() types.LoopConfig {
	return types.LoopConfig{
		MaxIterations:         c.MaxIterations,
		CompletionKeyword:     c.CompletionKeyword,
		AutoRecover:           c.AutoRecover,
		ExitSeverityThreshold: types.Severity(c.ExitSeverityThreshold),
		WorkerCommand:         c.WorkerCommand,
		WorkerTimeout:         c.WorkerTimeout(),
	}
}

// Load resolves the effective configuration: defaults, then the YAML
// file at path if it exists, then environment variables.
//
// Environment variables:
//   - CHURN_MAX_ITERATIONS: Iteration budget for new loops (default: 10)
//   - CHURN_COMPLETION_KEYWORD: Completion keyword, empty disables (default: "")
//   - CHURN_AUTO_RECOVER: Enable the recovery escalator (default: true)
//   - CHURN_SEVERITY_THRESHOLD: qa_cycle exit severity bar (default: major)
//   - CHURN_WORKER_CMD: Worker argv, whitespace-separated (default: none)
//   - CHURN_WORKER_TIMEOUT_SECONDS: Worker invocation timeout (default: 600)
//   - CHURN_STATE_DIR: State directory (default: .churn)
//
// Returns an error if the file is unreadable, the YAML is malformed,
// or any resolved value is invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No config file is fine; defaults and env apply.
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv resolves the configuration from defaults and environment
// variables only, skipping any config file.
func FromEnv() (Config, error) {
	return Load("")
}

func applyEnv(cfg *Config) error {
	if err := parseEnvInt("CHURN_MAX_ITERATIONS", &cfg.MaxIterations); err != nil {
		return err
	}
	if err := parseEnvString("CHURN_COMPLETION_KEYWORD", &cfg.CompletionKeyword); err != nil {
		return err
	}
	if err := parseEnvBool("CHURN_AUTO_RECOVER", &cfg.AutoRecover); err != nil {
		return err
	}
	if err := parseEnvString("CHURN_SEVERITY_THRESHOLD", &cfg.ExitSeverityThreshold); err != nil {
		return err
	}
	if err := parseEnvStrings("CHURN_WORKER_CMD", &cfg.WorkerCommand); err != nil {
		return err
	}
	if err := parseEnvInt("CHURN_WORKER_TIMEOUT_SECONDS", &cfg.WorkerTimeoutSeconds); err != nil {
		return err
	}
	if err := parseEnvString("CHURN_STATE_DIR", &cfg.StateDir); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}

// parseEnvStrings parses a whitespace-separated list from an
// environment variable
func parseEnvStrings(key string, dest *[]string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = strings.Fields(value)
	return nil
}
