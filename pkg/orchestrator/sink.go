package orchestrator

import (
	"context"
	"fmt"

	"github.com/sdejongh/fylr/pkg/extract"
	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/models"
)

// governorSink routes classifier signals for one invocation.
// One call is recorded before an online invocation starts; the first call the
// classifier reports is counted against it.
type governorSink struct {
	o        *Orchestrator
	ctx      context.Context
	reserved int64
}

func (o *Orchestrator) newSink(ctx context.Context, online bool) *governorSink {
	s := &governorSink{o: o, ctx: ctx}
	if online {
		s.reserved = 1
	}
	return s
}

func (s *governorSink) HandleSignal(sig extract.Signal) {
	g := s.o.governor

	switch sig.Kind {
	case extract.SignalTokenUsage:
		g.RecordTokens(sig.Value, false)

	case extract.SignalCallUsage:
		n := sig.Value
		if s.reserved > 0 {
			used := min(n, s.reserved)
			s.reserved -= used
			n -= used
		}
		g.RecordCalls(n, false)

	case extract.SignalTokenLimitReached, extract.SignalCallLimitReached:
		what := "token"
		if sig.Kind == extract.SignalCallLimitReached {
			what = "call"
		}
		msg := fmt.Sprintf("%s limit reached (%d)", what, sig.Value)
		s.o.logger.Warn(s.ctx, msg, nil)
		s.o.emit(Event{Type: EventLimitReached, Mode: g.Mode(), Message: msg, Limits: g.CheckLimits()})

	case extract.SignalModeSwitch:
		if g.Mode() == sig.Mode {
			return
		}
		g.SetMode(sig.Mode)
		s.o.logger.Info(s.ctx, "classifier switched mode", logging.Fields{"mode": string(sig.Mode)})
		msg := "classifier switched to " + string(sig.Mode) + " mode"
		if sig.Mode == models.ModeOffline {
			msg = "usage limits reached; classifier continued in offline mode"
		}
		s.o.emit(Event{Type: EventModeSwitched, Mode: sig.Mode, Message: msg, Limits: g.CheckLimits()})
	}
}
