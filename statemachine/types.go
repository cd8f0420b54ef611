// Package statemachine is an event-driven finite-state-machine engine.
//
// A Definition declares states, events and guarded transitions with actions.
// Compile turns it into an immutable Table shared by every Machine of that type.
// A Machine holds one current State and one caller-defined context value C and
// processes one Event at a time. A Coordinator queues events per machine so that
// many machines can be driven concurrently while each one sees its events in
// submission order.
package statemachine

import (
	"context"
	"fmt"
)

// State identifies a state of a machine type.
type State string

// EventName identifies an event of a machine type.
type EventName string

// Event is an event name plus an optional payload carried for a single dispatch.
type Event struct {
	Name    EventName
	Payload any
}

// NewEvent builds an Event.
func NewEvent(name EventName, payload any) Event {
	return Event{Name: name, Payload: payload}
}

// PayloadAs returns the event payload as T.
func PayloadAs[T any](ev Event) (T, bool) {
	v, ok := ev.Payload.(T)

	return v, ok
}

func (e Event) String() string {
	return string(e.Name)
}

// GuardFunc decides whether a transition may fire. It must not mutate c.
type GuardFunc[C any] func(ctx context.Context, c C, ev Event) (bool, error)

// ActionFunc performs a side effect while a transition fires. It may mutate c.
type ActionFunc[C any] func(ctx context.Context, c C, ev Event) error

// Guard is a named reference to a guard function.
type Guard[C any] struct {
	Name string
	Fn   GuardFunc[C]
}

// NewGuard creates a named guard.
func NewGuard[C any](name string, fn GuardFunc[C]) *Guard[C] {
	return &Guard[C]{Name: name, Fn: fn}
}

func (g *Guard[C]) clone() *Guard[C] {
	if g == nil {
		return nil
	}

	c := *g

	return &c
}

// Predicate creates a named guard from a function that cannot fail.
func Predicate[C any](name string, fn func(c C, ev Event) bool) *Guard[C] {
	return NewGuard(name, func(_ context.Context, c C, ev Event) (bool, error) {
		return fn(c, ev), nil
	})
}

// Action is a named reference to an action function.
type Action[C any] struct {
	Name string
	Fn   ActionFunc[C]
}

// NewAction creates a named action.
func NewAction[C any](name string, fn ActionFunc[C]) Action[C] {
	return Action[C]{Name: name, Fn: fn}
}

// Effect creates a named action from a function that cannot fail.
func Effect[C any](name string, fn func(c C, ev Event)) Action[C] {
	return NewAction(name, func(_ context.Context, c C, ev Event) error {
		fn(c, ev)

		return nil
	})
}

// Transition is one compiled edge of a Table.
type Transition[C any] struct {
	From    State
	Event   EventName
	To      State
	Guard   *Guard[C]
	Actions []Action[C]

	// Order is the transition's position in the definition.
	Order int
}

// Guarded reports whether the transition carries a guard.
func (t Transition[C]) Guarded() bool {
	return t.Guard != nil
}

func (t Transition[C]) String() string {
	if t.Guard != nil {
		return fmt.Sprintf("%s --%s [%s]--> %s", t.From, t.Event, t.Guard.Name, t.To)
	}

	return fmt.Sprintf("%s --%s--> %s", t.From, t.Event, t.To)
}

// TransitionResult describes a committed transition.
type TransitionResult struct {
	From  State
	To    State
	Event EventName
}
