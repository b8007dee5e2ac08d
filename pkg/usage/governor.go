// Package usage tracks online classifier consumption against configured limits.
package usage

import (
	"math"
	"sync"

	"github.com/sdejongh/fylr/pkg/models"
)

const (
	DefaultTokenLimit int64 = 30000
	DefaultCallLimit  int64 = 10
)

// Limits is a point-in-time view of usage against the configured limits
type Limits struct {
	TokenUsage int64 `json:"token_usage"`
	CallUsage  int64 `json:"call_usage"`
	TokenLimit int64 `json:"token_limit"`
	CallLimit  int64 `json:"call_limit"`
	CanProceed bool  `json:"can_proceed"`
}

// Governor counts tokens and calls while the mode is online.
// It never blocks a caller; limit checks are advisory.
type Governor struct {
	mu         sync.Mutex
	mode       models.Mode
	state      models.UsageState
	tokenLimit int64
	callLimit  int64
}

// NewGovernor creates a governor starting in mode with the given limits.
// Non-positive limits fall back to the defaults.
func NewGovernor(mode models.Mode, tokenLimit, callLimit int64) *Governor {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	if callLimit <= 0 {
		callLimit = DefaultCallLimit
	}
	return &Governor{
		mode:       mode,
		tokenLimit: tokenLimit,
		callLimit:  callLimit,
	}
}

// Mode returns the current execution mode
func (g *Governor) Mode() models.Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetMode changes the execution mode
func (g *Governor) SetMode(mode models.Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = mode
}

// RecordTokens adds n tokens when online, or always when force is set.
// Negative counts are ignored.
func (g *Governor) RecordTokens(n int64, force bool) {
	if n < 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode.IsOnline() || force {
		g.state.TokenCount = addSaturating(g.state.TokenCount, n)
	}
}

// RecordCall counts one call when online, or always when force is set
func (g *Governor) RecordCall(force bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode.IsOnline() || force {
		g.state.CallCount++
	}
}

// RecordCalls counts n calls at once, with the same mode rule as RecordCall.
// Non-positive counts are ignored.
func (g *Governor) RecordCalls(n int64, force bool) {
	if n <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode.IsOnline() || force {
		g.state.CallCount = addSaturating(g.state.CallCount, n)
	}
}

// addSaturating adds two non-negative counts, stopping at math.MaxInt64
func addSaturating(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// CheckLimits reports current usage; CanProceed is false once either limit is reached
func (g *Governor) CheckLimits() Limits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Limits{
		TokenUsage: g.state.TokenCount,
		CallUsage:  g.state.CallCount,
		TokenLimit: g.tokenLimit,
		CallLimit:  g.callLimit,
		CanProceed: g.state.TokenCount < g.tokenLimit && g.state.CallCount < g.callLimit,
	}
}

// Reset zeroes both counters
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = models.UsageState{}
}

// Snapshot returns a copy of the counters
func (g *Governor) Snapshot() models.UsageState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Restore replaces the counters, clamping negative values to zero
func (g *Governor) Restore(s models.UsageState) {
	if s.TokenCount < 0 {
		s.TokenCount = 0
	}
	if s.CallCount < 0 {
		s.CallCount = 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}
