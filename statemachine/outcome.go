package statemachine

import (
	"time"
)

// OutcomeKind classifies the result of a dispatch.
type OutcomeKind int

const (
	// Committed means the transition fired and the new state is in effect.
	Committed OutcomeKind = iota
	// Rejected means no transition fired. Nothing ran and nothing changed.
	Rejected
	// Failed means an action failed or the dispatch timed out. The state was not committed.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// RejectReason says why an event was rejected.
type RejectReason int

const (
	NoReason RejectReason = iota
	NoMatchingTransition
	AllGuardsFailed
	TerminalState
	Busy
)

func (r RejectReason) String() string {
	switch r {
	case NoReason:
		return "none"
	case NoMatchingTransition:
		return "no_matching_transition"
	case AllGuardsFailed:
		return "all_guards_failed"
	case TerminalState:
		return "terminal_state"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for the reason.
func (r RejectReason) Err() error {
	switch r {
	case NoMatchingTransition:
		return ErrNoMatchingTransition
	case AllGuardsFailed:
		return ErrAllGuardsFailed
	case TerminalState:
		return ErrTerminalState
	case Busy:
		return ErrBusy
	case NoReason:
		return nil
	default:
		return nil
	}
}

// Outcome is the result of dispatching one event to one machine.
type Outcome struct {
	Kind    OutcomeKind
	Machine string
	Event   Event

	// State is the machine's state once the dispatch finished. For Rejected and
	// Failed outcomes it is the state the event was dispatched in.
	State State

	// Transition is set for Committed outcomes.
	Transition TransitionResult

	// Reason is set for Rejected outcomes.
	Reason RejectReason

	// GuardErrors lists guards that errored or panicked during selection.
	GuardErrors []error

	// ActionIndex, Action and Cause are set for Failed outcomes. ActionIndex is -1
	// when the failure is not tied to an action (timeouts).
	ActionIndex int
	Action      string
	Cause       error

	Duration time.Duration
}

func (o Outcome) Committed() bool { return o.Kind == Committed }

func (o Outcome) Rejected() bool { return o.Kind == Rejected }

func (o Outcome) Failed() bool { return o.Kind == Failed }

// TimedOut reports whether the outcome is a dispatch timeout.
func (o Outcome) TimedOut() bool {
	return o.Kind == Failed && o.Cause == ErrTimeout //nolint:errorlint
}

// Err converts a Rejected or Failed outcome into an error. Committed outcomes return nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case Committed:
		return nil
	case Rejected:
		return &RejectedError{
			Reason:      o.Reason,
			State:       o.State,
			Event:       o.Event.Name,
			GuardErrors: o.GuardErrors,
		}
	case Failed:
		return &FailedError{
			State:       o.State,
			Event:       o.Event.Name,
			ActionIndex: o.ActionIndex,
			Action:      o.Action,
			Cause:       o.Cause,
		}
	default:
		return nil
	}
}

func committed(machine string, ev Event, from, to State) Outcome {
	return Outcome{
		Kind:        Committed,
		Machine:     machine,
		Event:       ev,
		State:       to,
		Transition:  TransitionResult{From: from, To: to, Event: ev.Name},
		ActionIndex: -1,
	}
}

func rejected(machine string, ev Event, state State, reason RejectReason, guardErrs []error) Outcome {
	return Outcome{
		Kind:        Rejected,
		Machine:     machine,
		Event:       ev,
		State:       state,
		Reason:      reason,
		GuardErrors: guardErrs,
		ActionIndex: -1,
	}
}

func failed(machine string, ev Event, state State, index int, action string, cause error) Outcome {
	return Outcome{
		Kind:        Failed,
		Machine:     machine,
		Event:       ev,
		State:       state,
		ActionIndex: index,
		Action:      action,
		Cause:       cause,
	}
}
