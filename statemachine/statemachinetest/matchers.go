package statemachinetest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
)

// Matcher errors.
var (
	ErrNoOutcomes          = errors.New("no outcomes recorded")
	ErrNoMatchersPassed    = errors.New("no matchers passed")
	ErrTransitionNotTaken  = errors.New("transition was not committed")
	ErrNotRejected         = errors.New("no event was rejected with the expected reason")
	ErrNotFailed           = errors.New("no dispatch failed at the expected action")
	ErrUnexpectedLastState = errors.New("unexpected final state")
)

// Matcher is an assertion over the outcomes held by a Recorder.
type Matcher interface {
	Match(r *Recorder) (bool, error)
	Description() string
}

// TransitionWasCommitted matches a committed transition between two states.
func TransitionWasCommitted(from, to statemachine.State) Matcher {
	return &committedMatcher{from: from, to: to}
}

type committedMatcher struct {
	from statemachine.State
	to   statemachine.State
}

func (m *committedMatcher) Match(r *Recorder) (bool, error) {
	for _, o := range r.Outcomes() {
		if o.Committed() && o.Transition.From == m.from && o.Transition.To == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: from '%s' to '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *committedMatcher) Description() string {
	return fmt.Sprintf("transition from '%s' to '%s' should be committed", m.from, m.to)
}

// EventWasRejected matches a rejection with the given reason.
func EventWasRejected(reason statemachine.RejectReason) Matcher {
	return &rejectedMatcher{reason: reason}
}

type rejectedMatcher struct {
	reason statemachine.RejectReason
}

func (m *rejectedMatcher) Match(r *Recorder) (bool, error) {
	for _, o := range r.Outcomes() {
		if o.Rejected() && o.Reason == m.reason {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %s", ErrNotRejected, m.reason)
}

func (m *rejectedMatcher) Description() string {
	return fmt.Sprintf("an event should be rejected with %s", m.reason)
}

// DispatchFailedAt matches a failed dispatch at the given action index.
func DispatchFailedAt(index int) Matcher {
	return &failedMatcher{index: index}
}

type failedMatcher struct {
	index int
}

func (m *failedMatcher) Match(r *Recorder) (bool, error) {
	for _, o := range r.Outcomes() {
		if o.Failed() && o.ActionIndex == m.index {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %d", ErrNotFailed, m.index)
}

func (m *failedMatcher) Description() string {
	return fmt.Sprintf("a dispatch should fail at action %d", m.index)
}

// EndedIn matches when the last recorded outcome left the machine in state.
func EndedIn(state statemachine.State) Matcher {
	return &endedInMatcher{state: state}
}

type endedInMatcher struct {
	state statemachine.State
}

func (m *endedInMatcher) Match(r *Recorder) (bool, error) {
	last, ok := r.Last()
	if !ok {
		return false, ErrNoOutcomes
	}

	if last.State != m.state {
		return false, fmt.Errorf("%w: got '%s', want '%s'", ErrUnexpectedLastState, last.State, m.state)
	}

	return true, nil
}

func (m *endedInMatcher) Description() string {
	return fmt.Sprintf("machine should end in '%s'", m.state)
}

// All requires every matcher to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(r *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(r)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any requires at least one matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(r *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		if matched, err := matcher.Match(r); matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}

// AssertMatches fails t for every matcher that does not pass.
func AssertMatches(t *testing.T, r *Recorder, matchers ...Matcher) bool {
	t.Helper()

	ok := true

	for _, m := range matchers {
		matched, err := m.Match(r)
		if !assert.True(t, matched, "%s: %v", m.Description(), err) {
			ok = false
		}
	}

	return ok
}
