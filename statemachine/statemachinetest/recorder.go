// Package statemachinetest provides helpers for testing code built on the
// statemachine package: an outcome recorder, matchers over recorded outcomes
// and ready-made fixtures.
package statemachinetest

import (
	"context"
	"sync"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Recorder is a Listener that keeps every outcome it observes.
type Recorder struct {
	mu       sync.Mutex
	outcomes []statemachine.Outcome
	changed  chan struct{}
}

var _ statemachine.Listener = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{changed: make(chan struct{})}
}

func (r *Recorder) Observe(_ context.Context, o statemachine.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, o)

	close(r.changed)
	r.changed = make(chan struct{})
}

// Outcomes returns a copy of the recorded outcomes in observation order.
func (r *Recorder) Outcomes() []statemachine.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]statemachine.Outcome, len(r.outcomes))
	copy(out, r.outcomes)

	return out
}

// Len returns the number of recorded outcomes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.outcomes)
}

// Last returns the most recent outcome.
func (r *Recorder) Last() (statemachine.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.outcomes) == 0 {
		return statemachine.Outcome{}, false
	}

	return r.outcomes[len(r.outcomes)-1], true
}

// Reset drops every recorded outcome.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = nil
}

// WaitFor blocks until at least n outcomes are recorded or timeout passes.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		r.mu.Lock()
		count := len(r.outcomes)
		changed := r.changed
		r.mu.Unlock()

		if count >= n {
			return true
		}

		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}
