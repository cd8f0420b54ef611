package statemachinetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// Approval workflow states and events.
const (
	StateNew      statemachine.State = "New"
	StateApproved statemachine.State = "Approved"
	StateRejected statemachine.State = "Rejected"

	EventApprove statemachine.EventName = "approve"
	EventReject  statemachine.EventName = "reject"

	// ApprovalLimit is the amount from which approval is refused.
	ApprovalLimit = 1000
)

// ApprovalRequest is the context value of the approval workflow. Guard
// expressions read it as context.amount, context.approver and context.notes.
type ApprovalRequest struct {
	Amount   int      `expr:"amount"`
	Approver string   `expr:"approver"`
	Notes    []string `expr:"notes"`
}

// ApprovalDefinition returns the approval workflow: New can be approved while
// the amount is below ApprovalLimit, or rejected. Approved and Rejected are final.
func ApprovalDefinition() *statemachine.Definition[*ApprovalRequest] {
	belowLimit := statemachine.Predicate("amountBelowLimit",
		func(r *ApprovalRequest, _ statemachine.Event) bool {
			return r.Amount < ApprovalLimit
		})

	note := func(text string) statemachine.Action[*ApprovalRequest] {
		return statemachine.Effect("note:"+text, func(r *ApprovalRequest, _ statemachine.Event) {
			r.Notes = append(r.Notes, text)
		})
	}

	return statemachine.NewBuilder[*ApprovalRequest]("approval").
		Initial(StateNew).
		Final(StateApproved, StateRejected).
		Event(EventApprove, EventReject).
		PermitIf(StateNew, EventApprove, StateApproved, belowLimit, note("approved")).
		Permit(StateNew, EventReject, StateRejected, note("rejected")).
		Definition()
}

// ApprovalTable compiles ApprovalDefinition.
func ApprovalTable(t *testing.T) *statemachine.Table[*ApprovalRequest] {
	t.Helper()

	table, err := statemachine.Compile(ApprovalDefinition())
	require.NoError(t, err)

	return table
}

// NewTestMachine creates a machine with a Recorder attached.
func NewTestMachine[C any](
	t *testing.T, table *statemachine.Table[C], value C, opts ...statemachine.Option,
) (*statemachine.Machine[C], *Recorder) {
	t.Helper()

	rec := NewRecorder()

	m, err := statemachine.NewMachine(table, value, append(opts, statemachine.WithListener(rec))...)
	require.NoError(t, err)

	return m, rec
}

// ErrInjected is returned by actions and guards built with Fail.
var ErrInjected = errors.New("injected failure")

// Journal records which guards and actions ran, in order, and tracks how many
// ran at the same time.
type Journal struct {
	mu      sync.Mutex
	entries []string

	inFlight *atomic.Int32
	peak     *atomic.Int32
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{
		inFlight: atomic.NewInt32(0),
		peak:     atomic.NewInt32(0),
	}
}

func (j *Journal) record(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, name)
}

func (j *Journal) enter() {
	n := j.inFlight.Inc()

	for {
		peak := j.peak.Load()
		if n <= peak || j.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (j *Journal) leave() {
	j.inFlight.Dec()
}

// Entries returns the recorded names in call order.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]string, len(j.entries))
	copy(out, j.entries)

	return out
}

// Peak returns the highest number of journaled calls that ran at once.
func (j *Journal) Peak() int {
	return int(j.peak.Load())
}

// Guard returns a guard that journals its name and then answers pass.
func Guard[C any](j *Journal, name string, pass bool) *statemachine.Guard[C] {
	return statemachine.NewGuard(name, func(context.Context, C, statemachine.Event) (bool, error) {
		j.record(name)

		return pass, nil
	})
}

// FailingGuard returns a guard that journals its name and returns ErrInjected.
func FailingGuard[C any](j *Journal, name string) *statemachine.Guard[C] {
	return statemachine.NewGuard(name, func(context.Context, C, statemachine.Event) (bool, error) {
		j.record(name)

		return false, ErrInjected
	})
}

// Action returns an action that journals its name and then runs fn, if any.
func Action[C any](j *Journal, name string, fn func(ctx context.Context, c C) error) statemachine.Action[C] {
	return statemachine.NewAction(name, func(ctx context.Context, c C, _ statemachine.Event) error {
		j.enter()
		defer j.leave()

		j.record(name)

		if fn == nil {
			return nil
		}

		return fn(ctx, c)
	})
}

// Fail is an action body that returns ErrInjected.
func Fail[C any](context.Context, C) error {
	return ErrInjected
}
