package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdejongh/fylr/pkg/classifier"
	"github.com/sdejongh/fylr/pkg/config"
	"github.com/sdejongh/fylr/pkg/models"
)

// validateDirectory resolves dir to an absolute path of an existing directory
func validateDirectory(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: no directory given", models.ErrInvalidDirectory)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrInvalidDirectory, dir, err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s does not exist", models.ErrInvalidDirectory, dir)
	} else if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrInvalidDirectory, dir, err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", models.ErrInvalidDirectory, dir)
	}
	return abs, nil
}

// validateSpecificity accepts 0 (classifier default) or a level in range
func validateSpecificity(level int) error {
	if level == 0 {
		return nil
	}
	if level < classifier.MinSpecificity || level > classifier.MaxSpecificity {
		return fmt.Errorf("invalid specificity: %d (valid: %d-%d)", level, classifier.MinSpecificity, classifier.MaxSpecificity)
	}
	return nil
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// applyFlagsToConfig overrides config values with command-line flags
func applyFlagsToConfig(cfg *config.Config) error {
	// Execution mode
	if globalFlags.Online {
		cfg.OnlineMode = true
	}
	if globalFlags.Offline {
		cfg.OnlineMode = false
	}

	// Limit policy
	if globalFlags.OnLimit != "" {
		cfg.Usage.OnLimit = globalFlags.OnLimit
	}

	// Output format
	if globalFlags.Output != "" {
		cfg.Output.Format = globalFlags.Output
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Enable progress in verbose mode
	if globalFlags.Verbose {
		cfg.Output.Progress = true
		if globalFlags.LogLevel == "" {
			cfg.Logging.Level = "debug"
		}
	}

	// A log file enables logging
	if globalFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = globalFlags.LogFile
	}
	if globalFlags.LogFormat != "" {
		cfg.Logging.Format = globalFlags.LogFormat
	}
	if globalFlags.LogLevel != "" {
		cfg.Logging.Level = globalFlags.LogLevel
	}

	return cfg.Validate()
}
