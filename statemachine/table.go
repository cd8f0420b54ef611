package statemachine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/zeebo/xxh3"
)

type transitionKey struct {
	state State
	event EventName
}

// Table is the compiled, read-only form of a Definition. It is safe for
// concurrent use by any number of machines.
type Table[C any] struct {
	name        string
	initial     State
	states      []State
	stateIndex  map[State]uint
	final       *bitset.BitSet
	events      []EventName
	eventSet    map[EventName]struct{}
	transitions []Transition[C]
	candidates  map[transitionKey][]Transition[C]
	targets     []*bitset.BitSet
	fingerprint uint64
}

// Compile validates def and builds its Table. Validation does not stop at the
// first problem: the returned *ValidationError lists all of them.
func Compile[C any](def *Definition[C]) (*Table[C], error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is nil", ErrInvalidDefinition)
	}

	if problems := validate(def); len(problems) > 0 {
		return nil, &ValidationError{Definition: def.Name, Problems: problems}
	}

	tbl := &Table[C]{
		name:       def.Name,
		states:     make([]State, 0, len(def.States)),
		stateIndex: make(map[State]uint, len(def.States)),
		final:      bitset.New(uint(len(def.States))),
		events:     slices.Clone(def.Events),
		eventSet:   make(map[EventName]struct{}, len(def.Events)),
		candidates: make(map[transitionKey][]Transition[C]),
		targets:    make([]*bitset.BitSet, len(def.States)),
	}

	for i, spec := range def.States {
		idx := uint(i) //nolint:gosec

		tbl.states = append(tbl.states, spec.Name)
		tbl.stateIndex[spec.Name] = idx
		tbl.targets[i] = bitset.New(uint(len(def.States)))

		if spec.Initial {
			tbl.initial = spec.Name
		}

		if spec.Final {
			tbl.final.Set(idx)
		}
	}

	for _, ev := range def.Events {
		tbl.eventSet[ev] = struct{}{}
	}

	for i, spec := range def.Transitions {
		tr := Transition[C]{
			From:    spec.From,
			Event:   spec.Event,
			To:      spec.To,
			Guard:   spec.Guard.clone(),
			Actions: slices.Clone(spec.Actions),
			Order:   i,
		}

		tbl.transitions = append(tbl.transitions, tr)

		key := transitionKey{state: tr.From, event: tr.Event}
		tbl.candidates[key] = append(tbl.candidates[key], tr)

		tbl.targets[tbl.stateIndex[tr.From]].Set(tbl.stateIndex[tr.To])
	}

	tbl.fingerprint = xxh3.HashString(tbl.canonical())

	return tbl, nil
}

// canonical renders everything that defines the table's behavior, apart from
// the guard and action function values themselves, which are identified by name.
func (t *Table[C]) canonical() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "name=%s\n", t.name)

	for _, s := range t.states {
		fmt.Fprintf(&sb, "state=%s initial=%t final=%t\n", s, s == t.initial, t.IsFinal(s))
	}

	for _, ev := range t.events {
		fmt.Fprintf(&sb, "event=%s\n", ev)
	}

	for _, tr := range t.transitions {
		guard := ""
		if tr.Guard != nil {
			guard = tr.Guard.Name
		}

		actions := make([]string, len(tr.Actions))
		for i, a := range tr.Actions {
			actions[i] = a.Name
		}

		fmt.Fprintf(&sb, "transition=%s|%s|%s|%s|%s\n",
			tr.From, tr.Event, tr.To, guard, strings.Join(actions, ","))
	}

	return sb.String()
}

// Name returns the machine type name.
func (t *Table[C]) Name() string {
	return t.name
}

// Initial returns the initial state.
func (t *Table[C]) Initial() State {
	return t.initial
}

// States returns the declared states in declaration order.
func (t *Table[C]) States() []State {
	return slices.Clone(t.states)
}

// Events returns the declared events in declaration order.
func (t *Table[C]) Events() []EventName {
	return slices.Clone(t.events)
}

// Transitions returns every transition in declaration order.
func (t *Table[C]) Transitions() []Transition[C] {
	return cloneTransitions(t.transitions)
}

// HasState reports whether s is declared.
func (t *Table[C]) HasState(s State) bool {
	_, ok := t.stateIndex[s]

	return ok
}

// HasEvent reports whether ev is declared.
func (t *Table[C]) HasEvent(ev EventName) bool {
	_, ok := t.eventSet[ev]

	return ok
}

// IsFinal reports whether s is a final state.
func (t *Table[C]) IsFinal(s State) bool {
	idx, ok := t.stateIndex[s]

	return ok && t.final.Test(idx)
}

// Candidates returns the transitions declared for (state, event) in declaration
// order. The result is empty when nothing is declared.
func (t *Table[C]) Candidates(state State, event EventName) []Transition[C] {
	return cloneTransitions(t.lookup(state, event))
}

// lookup is Candidates without the defensive copy, for the dispatch path.
func (t *Table[C]) lookup(state State, event EventName) []Transition[C] {
	return t.candidates[transitionKey{state: state, event: event}]
}

// EventsFrom returns the events with at least one transition out of state,
// in declaration order.
func (t *Table[C]) EventsFrom(state State) []EventName {
	var out []EventName

	for _, ev := range t.events {
		if len(t.lookup(state, ev)) > 0 {
			out = append(out, ev)
		}
	}

	return out
}

// Allows reports whether any declared transition leads directly from one state to another.
func (t *Table[C]) Allows(from, to State) bool {
	fromIdx, ok := t.stateIndex[from]
	if !ok {
		return false
	}

	toIdx, ok := t.stateIndex[to]
	if !ok {
		return false
	}

	return t.targets[fromIdx].Test(toIdx)
}

// Targets returns the states directly reachable from a state, in declaration order.
func (t *Table[C]) Targets(from State) []State {
	fromIdx, ok := t.stateIndex[from]
	if !ok {
		return nil
	}

	var out []State

	for i, ok := t.targets[fromIdx].NextSet(0); ok; i, ok = t.targets[fromIdx].NextSet(i + 1) {
		out = append(out, t.states[i])
	}

	return out
}

// Fingerprint identifies the compiled table. Compiling the same definition
// twice yields the same fingerprint.
func (t *Table[C]) Fingerprint() uint64 {
	return t.fingerprint
}

func cloneTransitions[C any](in []Transition[C]) []Transition[C] {
	out := make([]Transition[C], len(in))
	for i, tr := range in {
		tr.Guard = tr.Guard.clone()
		tr.Actions = slices.Clone(tr.Actions)
		out[i] = tr
	}

	return out
}
