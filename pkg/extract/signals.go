package extract

import (
	"strconv"
	"strings"

	"github.com/sdejongh/fylr/pkg/models"
)

// SignalKind identifies a side-channel line emitted by the classifier
type SignalKind string

const (
	SignalTokenUsage        SignalKind = "TOKEN_USAGE"
	SignalCallUsage         SignalKind = "CALL_USAGE"
	SignalTokenLimitReached SignalKind = "TOKEN_LIMIT_REACHED"
	SignalCallLimitReached  SignalKind = "CALL_LIMIT_REACHED"
	SignalModeSwitch        SignalKind = "MODE_SWITCH"
)

var signalKinds = []SignalKind{
	SignalTokenUsage,
	SignalCallUsage,
	SignalTokenLimitReached,
	SignalCallLimitReached,
	SignalModeSwitch,
}

// Signal is one parsed side-channel line
type Signal struct {
	Kind SignalKind
	// Value is set for the usage and limit kinds
	Value int64
	// Mode is set for SignalModeSwitch
	Mode models.Mode
}

// SignalSink receives signals in the order they appear
type SignalSink interface {
	HandleSignal(Signal)
}

// SinkFunc adapts a function to SignalSink
type SinkFunc func(Signal)

// HandleSignal calls f(s)
func (f SinkFunc) HandleSignal(s Signal) {
	f(s)
}

// parseSignal recognizes a signal line.
// isSignal reports whether the line carries a signal prefix at all; ok is false
// when the prefix is known but the value is malformed.
func parseSignal(line string) (sig Signal, isSignal, ok bool) {
	trimmed := strings.TrimSpace(line)
	for _, kind := range signalKinds {
		prefix := string(kind) + ":"
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		sig.Kind = kind

		if kind == SignalModeSwitch {
			mode, err := models.ParseMode(value)
			if err != nil {
				return sig, true, false
			}
			sig.Mode = mode
			return sig, true, true
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return sig, true, false
		}
		sig.Value = n
		return sig, true, true
	}
	return sig, false, false
}
