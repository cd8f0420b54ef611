package statemachine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Phase is the dispatch micro-state of a machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDispatching
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDispatching:
		return "dispatching"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Machine is one instance of a machine type: a current state plus a context
// value, driven by a shared Table. Dispatch is safe for concurrent use, but a
// machine processes only one event at a time; a concurrent call is rejected
// with Busy. Use a Coordinator to queue events instead.
type Machine[C any] struct {
	id        string
	table     *Table[C]
	inv       invoker[C]
	listeners listeners

	mu    sync.Mutex // held for the whole of a dispatch
	value C

	state *atomic.String
	phase *atomic.Int32
}

// NewMachine creates a machine in the table's initial state owning value.
func NewMachine[C any](table *Table[C], value C, opts ...Option) (*Machine[C], error) {
	if table == nil {
		return nil, ErrNilTable
	}

	return newMachine(table, table.Initial(), value, newOptions(opts)), nil
}

// Restore recreates a machine from a snapshot. The snapshot must have been
// taken under a table with the same fingerprint.
func Restore[C any](table *Table[C], snap Snapshot[C], opts ...Option) (*Machine[C], error) {
	if table == nil {
		return nil, ErrNilTable
	}

	if snap.Fingerprint != table.Fingerprint() {
		return nil, fmt.Errorf("%w: snapshot %x, table %x", ErrFingerprintMismatch, snap.Fingerprint, table.Fingerprint())
	}

	if !table.HasState(snap.State) {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidSnapshot, snap.State)
	}

	o := newOptions(opts)
	if o.id == "" {
		o.id = snap.ID
	}

	return newMachine(table, snap.State, snap.Context, o), nil
}

func newMachine[C any](table *Table[C], state State, value C, o *options) *Machine[C] {
	id := o.id
	if id == "" {
		id = uuid.NewString()
	}

	m := &Machine[C]{
		id:        id,
		table:     table,
		inv:       invoker[C]{machine: table.Name()},
		listeners: listeners(o.listeners),
		value:     value,
		state:     atomic.NewString(string(state)),
		phase:     atomic.NewInt32(int32(PhaseIdle)),
	}

	if table.IsFinal(state) {
		m.phase.Store(int32(PhaseTerminal))
	}

	return m
}

// ID returns the instance id.
func (m *Machine[C]) ID() string {
	return m.id
}

// Table returns the machine's transition table.
func (m *Machine[C]) Table() *Table[C] {
	return m.table
}

// CurrentState returns the committed state. It never blocks.
func (m *Machine[C]) CurrentState() State {
	return State(m.state.Load())
}

// Phase returns the dispatch micro-state.
func (m *Machine[C]) Phase() Phase {
	return Phase(m.phase.Load())
}

// IsTerminal reports whether the machine has reached a final state.
func (m *Machine[C]) IsTerminal() bool {
	return m.table.IsFinal(m.CurrentState())
}

// CanTransitionTo reports whether any declared transition leads from the
// current state directly to target. Guards are not evaluated.
func (m *Machine[C]) CanTransitionTo(target State) bool {
	return m.table.Allows(m.CurrentState(), target)
}

// AvailableEvents returns the events with a transition out of the current state.
func (m *Machine[C]) AvailableEvents() []EventName {
	if m.IsTerminal() {
		return nil
	}

	return m.table.EventsFrom(m.CurrentState())
}

// Inspect calls fn with the context value while holding the machine lock, so
// fn never observes a dispatch in progress.
func (m *Machine[C]) Inspect(fn func(value C)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(m.value)
}

// Snapshot captures the current state and context value. It fails with
// ErrBusy while a dispatch is in progress.
func (m *Machine[C]) Snapshot() (Snapshot[C], error) {
	if !m.mu.TryLock() {
		return Snapshot[C]{}, ErrBusy
	}
	defer m.mu.Unlock()

	return Snapshot[C]{
		Machine:     m.table.Name(),
		ID:          m.id,
		State:       m.CurrentState(),
		Context:     m.value,
		Fingerprint: m.table.Fingerprint(),
	}, nil
}

// Dispatch processes one event and reports what happened. It never returns
// an error: guard and action failures are reported through the Outcome.
// Listeners are notified after the machine lock is released.
func (m *Machine[C]) Dispatch(ctx context.Context, ev Event) Outcome {
	outcome := m.dispatch(ctx, ev)

	m.listeners.Observe(ctx, outcome)

	return outcome
}

// dispatch is Dispatch without listener notification.
func (m *Machine[C]) dispatch(ctx context.Context, ev Event) Outcome {
	start := time.Now()

	var outcome Outcome

	if m.mu.TryLock() {
		outcome = m.dispatchLocked(ctx, ev)
		m.mu.Unlock()
	} else {
		outcome = rejected(m.table.Name(), ev, m.CurrentState(), Busy, nil)
	}

	outcome.Duration = time.Since(start)

	dispatchDuration.WithLabelValues(sanitizeLabel(outcome.Machine), outcome.Kind.String()).
		Observe(outcome.Duration.Seconds())

	return outcome
}

func (m *Machine[C]) dispatchLocked(ctx context.Context, ev Event) Outcome {
	name := m.table.Name()
	from := m.CurrentState()

	ctx, span := startDispatchSpan(ctx, name, m.id, from, ev)

	outcome := m.selectAndRun(ctx, from, ev)

	endDispatchSpan(span, outcome)

	return outcome
}

func (m *Machine[C]) selectAndRun(ctx context.Context, from State, ev Event) Outcome {
	name := m.table.Name()

	if m.table.IsFinal(from) {
		return rejected(name, ev, from, TerminalState, nil)
	}

	candidates := m.table.lookup(from, ev.Name)
	if len(candidates) == 0 {
		return rejected(name, ev, from, NoMatchingTransition, nil)
	}

	m.phase.Store(int32(PhaseDispatching))
	defer m.settlePhase()

	var (
		guardErrs []error
		selected  *Transition[C]
	)

	for i := range candidates {
		pass, err := m.inv.guard(ctx, candidates[i], m.value, ev)
		if err != nil {
			guardErrs = append(guardErrs, err)
		}

		if pass {
			selected = &candidates[i]

			break
		}
	}

	if selected == nil {
		return rejected(name, ev, from, AllGuardsFailed, guardErrs)
	}

	if idx, err := m.inv.actions(ctx, *selected, m.value, ev); err != nil {
		return failed(name, ev, from, idx, selected.Actions[idx].Name, err)
	}

	m.state.Store(string(selected.To))

	outcome := committed(name, ev, from, selected.To)
	outcome.GuardErrors = guardErrs

	return outcome
}

func (m *Machine[C]) settlePhase() {
	if m.table.IsFinal(m.CurrentState()) {
		m.phase.Store(int32(PhaseTerminal))

		return
	}

	m.phase.Store(int32(PhaseIdle))
}
