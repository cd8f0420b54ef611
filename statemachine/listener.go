package statemachine

import (
	"context"
	"fmt"

	"github.com/amp-labs/amp-fsm/logger"
)

// Listener observes dispatch outcomes. Listeners run after the machine lock is
// released, on the goroutine that dispatched the event.
type Listener interface {
	Observe(ctx context.Context, o Outcome)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, o Outcome)

func (f ListenerFunc) Observe(ctx context.Context, o Outcome) {
	f(ctx, o)
}

// listeners fans an outcome out to several listeners. A panicking listener is
// logged and does not stop the others.
type listeners []Listener

func (ls listeners) Observe(ctx context.Context, o Outcome) {
	for _, l := range ls {
		observeSafely(ctx, l, o)
	}
}

func observeSafely(ctx context.Context, l Listener, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get(ctx).Error("listener panicked",
				"machine", o.Machine,
				"event", string(o.Event.Name),
				"listener", fmt.Sprintf("%T", l),
				"panic", r)
		}
	}()

	l.Observe(ctx, o)
}
