package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/ratelimit"
)

// Config represents the application configuration
type Config struct {
	// OnlineMode selects the remote model; offline uses the local one
	OnlineMode bool             `yaml:"online_mode" toml:"online_mode"`
	Classifier ClassifierConfig `yaml:"classifier" toml:"classifier"`
	Usage      UsageConfig      `yaml:"usage" toml:"usage"`
	Scan       ScanConfig       `yaml:"scan" toml:"scan"`
	Output     OutputConfig     `yaml:"output" toml:"output"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ClassifierConfig describes how the classifier process is started
type ClassifierConfig struct {
	Interpreter    string `yaml:"interpreter" toml:"interpreter"`         // Empty = discover from venv or PATH
	Venv           string `yaml:"venv" toml:"venv"`                       // Virtual environment to search first
	OrganizeScript string `yaml:"organize_script" toml:"organize_script"` // Script for the organize action
	RenameScript   string `yaml:"rename_script" toml:"rename_script"`     // Script for generate and rename
	Timeout        string `yaml:"timeout" toml:"timeout"`                 // Per-invocation limit, e.g. "5m"; empty = none
	RequireMarker  bool   `yaml:"require_marker" toml:"require_marker"`   // Only accept payloads after the marker line
	CredentialEnv  string `yaml:"credential_env" toml:"credential_env"`   // Variable holding the online key
	EnvFile        string `yaml:"env_file" toml:"env_file"`               // .env file loaded before online requests
}

// UsageConfig holds the online usage limits
type UsageConfig struct {
	TokenLimit int64  `yaml:"token_limit" toml:"token_limit"`
	CallLimit  int64  `yaml:"call_limit" toml:"call_limit"`
	OnLimit    string `yaml:"on_limit" toml:"on_limit"` // "fail-fast" or "fallback-offline"
	Persist    bool   `yaml:"persist" toml:"persist"`   // Keep counters across runs
}

// ScanConfig controls directory listings
type ScanConfig struct {
	Exclude []string `yaml:"exclude" toml:"exclude"`
	// ReadLimit caps hashing throughput, e.g. "20M"; empty for no limit
	ReadLimit string `yaml:"read_limit" toml:"read_limit"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format" toml:"format"`     // "human" or "json"
	Progress bool   `yaml:"progress" toml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet" toml:"quiet"`       // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Format     string `yaml:"format" toml:"format"`           // "json" or "text"
	Level      string `yaml:"level" toml:"level"`             // "debug", "info", "warn", "error"
	File       string `yaml:"file" toml:"file"`               // Log file path (empty = stderr)
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"` // Rotate after this size (0 = never)
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		OnlineMode: false,
		Classifier: ClassifierConfig{
			OrganizeScript: "backend/initial_organize_electron.py",
			RenameScript:   "backend/rename_files.py",
			CredentialEnv:  "OPENAI_API_KEY",
			EnvFile:        ".env",
		},
		Usage: UsageConfig{
			TokenLimit: 30000,
			CallLimit:  10,
			OnLimit:    string(models.PolicyFallbackOffline),
			Persist:    true,
		},
		Scan: ScanConfig{
			Exclude: []string{
				"*.tmp",
				"*.part",
				".git/",
				"node_modules/",
			},
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Mode returns the configured execution mode
func (c *Config) Mode() models.Mode {
	return models.ModeFromOnline(c.OnlineMode)
}

// Policy returns the configured limit policy
func (c *Config) Policy() models.LimitPolicy {
	return models.LimitPolicy(c.Usage.OnLimit)
}

// Timeout parses classifier.timeout; empty means no limit
func (c *Config) Timeout() (time.Duration, error) {
	if strings.TrimSpace(c.Classifier.Timeout) == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Classifier.Timeout)
}

// ReadLimit returns the hashing read limit in bytes per second, 0 for none
func (c *Config) ReadLimit() int64 {
	n, _ := ratelimit.ParseRate(c.Scan.ReadLimit)
	return n
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Classifier.OrganizeScript == "" {
		return &models.ValidationError{
			Field:   "classifier.organize_script",
			Message: "is required",
		}
	}

	if c.Classifier.RenameScript == "" {
		return &models.ValidationError{
			Field:   "classifier.rename_script",
			Message: "is required",
		}
	}

	if d, err := c.Timeout(); err != nil || d < 0 {
		return &models.ValidationError{
			Field:   "classifier.timeout",
			Message: fmt.Sprintf("must be a non-negative duration such as 90s or 5m, got %q", c.Classifier.Timeout),
		}
	}

	if c.Usage.TokenLimit < 1 {
		return &models.ValidationError{
			Field:   "usage.token_limit",
			Message: "must be at least 1",
		}
	}

	if c.Usage.CallLimit < 1 {
		return &models.ValidationError{
			Field:   "usage.call_limit",
			Message: "must be at least 1",
		}
	}

	if !c.Policy().Valid() {
		return &models.ValidationError{
			Field:   "usage.on_limit",
			Message: "must be 'fail-fast' or 'fallback-offline'",
		}
	}

	if _, err := ratelimit.ParseRate(c.Scan.ReadLimit); err != nil {
		return &models.ValidationError{
			Field:   "scan.read_limit",
			Message: fmt.Sprintf("must be a byte rate such as 20M or 512KiB, got %q", c.Scan.ReadLimit),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return &models.ValidationError{
			Field:   "logging.max_size_mb",
			Message: "rotation settings must not be negative",
		}
	}

	return nil
}
