// Package state stores fylr's small JSON state files (usage counters, plan
// sessions) under the user config directory and guards mutating commands with
// a process lock.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnvStateDir overrides the state directory when set
const EnvStateDir = "FYLR_STATE_DIR"

// Dir returns the directory holding fylr state files.
// State is stored in the user's config directory.
func Dir() string {
	if dir := os.Getenv(EnvStateDir); dir != "" {
		return dir
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		configDir, _ = os.UserHomeDir()
		configDir = filepath.Join(configDir, ".config")
	}

	return filepath.Join(configDir, "fylr", "state")
}

// WriteJSON persists v as indented JSON at path, atomically
func WriteJSON(path string, v any) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically using temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to finalize state file: %w", err)
	}

	return nil
}

// ReadJSON loads path into v.
// It reports false without error when the file does not exist.
func ReadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}

	return true, nil
}

// Remove deletes a state file; a missing file is not an error
func Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil // Already doesn't exist
	}
	return err
}
