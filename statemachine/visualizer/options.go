package visualizer

import "github.com/amp-labs/amp-fsm/statemachine"

// Options configures the diagram.
type Options struct {
	// ShowGuards appends guard names to transition labels.
	ShowGuards bool

	// ShowActions appends action names to transition labels.
	ShowActions bool

	// Direction is "TB" (top to bottom) or "LR" (left to right).
	Direction string

	// Highlight marks states, typically a machine's current state.
	Highlight []statemachine.State

	// Fenced wraps the diagram in a ```mermaid code fence.
	Fenced bool
}

// DefaultOptions returns the options used by Mermaid.
func DefaultOptions() Options {
	return Options{
		ShowGuards:  true,
		ShowActions: false,
		Direction:   "TB",
		Fenced:      true,
	}
}

// WithShowGuards enables or disables guard names.
func (o Options) WithShowGuards(show bool) Options {
	o.ShowGuards = show

	return o
}

// WithShowActions enables or disables action names.
func (o Options) WithShowActions(show bool) Options {
	o.ShowActions = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlight sets the states to highlight.
func (o Options) WithHighlight(states ...statemachine.State) Options {
	o.Highlight = states

	return o
}

// WithFenced enables or disables the code fence.
func (o Options) WithFenced(fenced bool) Options {
	o.Fenced = fenced

	return o
}
