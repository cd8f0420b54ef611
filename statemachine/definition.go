package statemachine

import "slices"

// StateSpec declares a state.
type StateSpec struct {
	Name    State
	Initial bool
	Final   bool
}

// TransitionSpec declares a transition. Actions run in slice order.
type TransitionSpec[C any] struct {
	From    State
	Event   EventName
	To      State
	Guard   *Guard[C]
	Actions []Action[C]
}

// Definition is the declarative description of a machine type. It has no
// behavior of its own; Compile validates it and builds a Table.
type Definition[C any] struct {
	Name        string
	States      []StateSpec
	Events      []EventName
	Transitions []TransitionSpec[C]
}

// Clone returns a copy that shares guard and action functions but no slices
// or guard values.
func (d *Definition[C]) Clone() *Definition[C] {
	out := &Definition[C]{
		Name:        d.Name,
		States:      slices.Clone(d.States),
		Events:      slices.Clone(d.Events),
		Transitions: make([]TransitionSpec[C], len(d.Transitions)),
	}

	for i, t := range d.Transitions {
		t.Guard = t.Guard.clone()
		t.Actions = slices.Clone(t.Actions)
		out.Transitions[i] = t
	}

	return out
}

// Builder provides a fluent API for assembling a Definition.
type Builder[C any] struct {
	def *Definition[C]
}

// NewBuilder creates a builder for a machine type called name.
func NewBuilder[C any](name string) *Builder[C] {
	return &Builder[C]{
		def: &Definition[C]{Name: name},
	}
}

// AddState adds a state declaration.
func (b *Builder[C]) AddState(spec StateSpec) *Builder[C] {
	b.def.States = append(b.def.States, spec)

	return b
}

// State declares ordinary states.
func (b *Builder[C]) State(names ...State) *Builder[C] {
	for _, name := range names {
		b.AddState(StateSpec{Name: name})
	}

	return b
}

// Initial declares the initial state.
func (b *Builder[C]) Initial(name State) *Builder[C] {
	return b.AddState(StateSpec{Name: name, Initial: true})
}

// Final declares final states.
func (b *Builder[C]) Final(names ...State) *Builder[C] {
	for _, name := range names {
		b.AddState(StateSpec{Name: name, Final: true})
	}

	return b
}

// Event declares events.
func (b *Builder[C]) Event(names ...EventName) *Builder[C] {
	b.def.Events = append(b.def.Events, names...)

	return b
}

// AddTransition adds a transition declaration.
func (b *Builder[C]) AddTransition(spec TransitionSpec[C]) *Builder[C] {
	b.def.Transitions = append(b.def.Transitions, spec)

	return b
}

// Permit declares an unconditional transition.
func (b *Builder[C]) Permit(from State, event EventName, to State, actions ...Action[C]) *Builder[C] {
	return b.AddTransition(TransitionSpec[C]{
		From:    from,
		Event:   event,
		To:      to,
		Actions: actions,
	})
}

// PermitIf declares a transition that fires only when guard passes.
func (b *Builder[C]) PermitIf(
	from State, event EventName, to State, guard *Guard[C], actions ...Action[C],
) *Builder[C] {
	return b.AddTransition(TransitionSpec[C]{
		From:    from,
		Event:   event,
		To:      to,
		Guard:   guard,
		Actions: actions,
	})
}

// Definition returns a copy of the definition built so far.
func (b *Builder[C]) Definition() *Definition[C] {
	return b.def.Clone()
}

// Build compiles the definition into a Table.
func (b *Builder[C]) Build() (*Table[C], error) {
	return Compile(b.def)
}
