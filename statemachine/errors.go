package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors reported by Compile.
var (
	ErrInvalidDefinition     = errors.New("invalid state machine definition")
	ErrDefinitionNameMissing = errors.New("definition name is required")
	ErrStateNameRequired     = errors.New("state name is required")
	ErrDuplicateState        = errors.New("duplicate state")
	ErrMissingInitialState   = errors.New("missing initial state")
	ErrDuplicateInitialState = errors.New("duplicate initial state")
	ErrEventNameRequired     = errors.New("event name is required")
	ErrDuplicateEvent        = errors.New("duplicate event")
	ErrUndeclaredState       = errors.New("undeclared state")
	ErrUndeclaredEvent       = errors.New("undeclared event")
	ErrTransitionFromFinal   = errors.New("transition originates from a final state")
	ErrUnguardedAmbiguity    = errors.New("transitions sharing a source state and event must all declare guards")
	ErrGuardUndefined        = errors.New("guard has no name or function")
	ErrActionUndefined       = errors.New("action has no name or function")
	ErrUnreachableState      = errors.New("state is unreachable from the initial state")
	ErrConflictingGuard      = errors.New("transition declares both a named guard and an expression")
	ErrInvalidExpression     = errors.New("invalid guard expression")
	ErrInvalidConfig         = errors.New("invalid state machine config")
)

// Runtime errors.
var (
	ErrNoMatchingTransition = errors.New("no matching transition")
	ErrAllGuardsFailed      = errors.New("all guards failed")
	ErrTerminalState        = errors.New("machine is in a final state")
	ErrBusy                 = errors.New("machine is busy with another dispatch")
	ErrActionFailed         = errors.New("action failed")
	ErrGuardFailed          = errors.New("guard failed")
	ErrTimeout              = errors.New("dispatch timed out")
	ErrPanic                = errors.New("panic in user code")

	ErrUnknownInstance     = errors.New("unknown machine instance")
	ErrDuplicateInstance   = errors.New("machine instance already registered")
	ErrCoordinatorClosed   = errors.New("coordinator is closed")
	ErrFingerprintMismatch = errors.New("snapshot was taken under a different definition")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
	ErrNilTable            = errors.New("transition table is nil")
)

// Problem is a single finding of definition validation.
type Problem struct {
	Err     error
	Subject string
	Detail  string
}

func (p Problem) Error() string {
	var sb strings.Builder

	sb.WriteString(p.Err.Error())

	if p.Subject != "" {
		sb.WriteString(": ")
		sb.WriteString(p.Subject)
	}

	if p.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(p.Detail)
		sb.WriteString(")")
	}

	return sb.String()
}

func (p Problem) Unwrap() error {
	return p.Err
}

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Definition string
	Problems   []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}

	return fmt.Sprintf("%s %q: %d problem(s): %s",
		ErrInvalidDefinition, e.Definition, len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidDefinition and every problem to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Problems)+1)
	errs = append(errs, ErrInvalidDefinition)

	for _, p := range e.Problems {
		errs = append(errs, p)
	}

	return errs
}

// Has reports whether any problem matches target.
func (e *ValidationError) Has(target error) bool {
	for _, p := range e.Problems {
		if errors.Is(p.Err, target) {
			return true
		}
	}

	return false
}

// GuardError is a guard that returned an error or panicked. The transition it
// protects is treated as not enabled.
type GuardError struct {
	Guard      string
	Transition string
	Err        error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %s on %s: %v", e.Guard, e.Transition, e.Err)
}

func (e *GuardError) Unwrap() []error {
	return []error{ErrGuardFailed, e.Err}
}

// ActionError is an action that returned an error or panicked.
type ActionError struct {
	Action string
	Index  int
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *ActionError) Unwrap() []error {
	return []error{ErrActionFailed, e.Err}
}

// RejectedError is the error form of a rejected outcome.
type RejectedError struct {
	Reason      RejectReason
	State       State
	Event       EventName
	GuardErrors []error
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("event %s rejected in state %s: %s", e.Event, e.State, e.Reason)
	if len(e.GuardErrors) > 0 {
		msg += ": " + errors.Join(e.GuardErrors...).Error()
	}

	return msg
}

func (e *RejectedError) Unwrap() []error {
	errs := make([]error, 0, len(e.GuardErrors)+1)
	if reason := e.Reason.Err(); reason != nil {
		errs = append(errs, reason)
	}

	return append(errs, e.GuardErrors...)
}

// FailedError is the error form of a failed outcome.
type FailedError struct {
	State       State
	Event       EventName
	ActionIndex int
	Action      string
	Cause       error
}

func (e *FailedError) Error() string {
	if e.ActionIndex < 0 {
		return fmt.Sprintf("event %s failed in state %s: %v", e.Event, e.State, e.Cause)
	}

	return fmt.Sprintf("event %s failed in state %s at action %d (%s): %v",
		e.Event, e.State, e.ActionIndex, e.Action, e.Cause)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}
