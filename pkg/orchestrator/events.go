package orchestrator

import (
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/usage"
)

// EventType identifies a notification sent to observers
type EventType string

const (
	// EventModeSwitched is sent when the execution mode changes during an operation
	EventModeSwitched EventType = "mode_switched"
	// EventLimitReached is sent when the classifier reports a usage limit
	EventLimitReached EventType = "limit_reached"
	// EventWarning is sent for recoverable problems, such as dropped plan entries
	EventWarning EventType = "warning"
)

// Event is a notification about an in-progress operation; it is never an error
type Event struct {
	Type    EventType
	Mode    models.Mode
	Message string
	Limits  usage.Limits
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it. Events are delivered synchronously, in order.
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, id)
	}
}

func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	fns := make([]func(Event), 0, len(o.subscribers))
	// Deliver in registration order
	for i := 0; i < o.nextSub; i++ {
		if fn, ok := o.subscribers[i]; ok {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
