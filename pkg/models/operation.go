package models

import (
	"fmt"
	"strings"
)

// Mode selects where classification runs
type Mode string

const (
	// ModeOnline uses the remote, billed model
	ModeOnline Mode = "online"
	// ModeOffline uses the local, unmetered model
	ModeOffline Mode = "offline"
)

// ModeFromOnline maps the online_mode flag to a Mode
func ModeFromOnline(online bool) Mode {
	if online {
		return ModeOnline
	}
	return ModeOffline
}

// IsOnline reports whether the mode is billed
func (m Mode) IsOnline() bool {
	return m == ModeOnline
}

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online":
		return ModeOnline, nil
	case "offline":
		return ModeOffline, nil
	default:
		return "", fmt.Errorf("invalid mode: %s (valid: online, offline)", s)
	}
}

// LimitPolicy defines what happens when an online call is attempted past the usage limits
type LimitPolicy string

const (
	// PolicyFailFast rejects the operation with ErrRateLimited
	PolicyFailFast LimitPolicy = "fail-fast"
	// PolicyFallbackOffline switches to offline mode and continues
	PolicyFallbackOffline LimitPolicy = "fallback-offline"
)

// Valid reports whether the policy is known
func (p LimitPolicy) Valid() bool {
	return p == PolicyFailFast || p == PolicyFallbackOffline
}

// UsageState holds cumulative consumption of the online classifier
type UsageState struct {
	TokenCount int64 `json:"token_count"`
	CallCount  int64 `json:"call_count"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Is lets validation failures match ErrInvalidRequest
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
