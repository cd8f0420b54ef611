// Package visualizer renders compiled state machine tables as Mermaid state diagrams.
package visualizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// ErrTableNil is returned when no table is given.
var ErrTableNil = errors.New("table cannot be nil")

// Mermaid renders table with DefaultOptions.
func Mermaid[C any](table *statemachine.Table[C]) (string, error) {
	return MermaidWithOptions(table, DefaultOptions())
}

// MermaidWithOptions renders table as a Mermaid stateDiagram-v2.
func MermaidWithOptions[C any](table *statemachine.Table[C], opts Options) (string, error) {
	if table == nil {
		return "", ErrTableNil
	}

	direction := opts.Direction
	if direction == "" {
		direction = "TB"
	}

	highlighted := make(map[statemachine.State]bool, len(opts.Highlight))
	for _, s := range opts.Highlight {
		highlighted[s] = true
	}

	var sb strings.Builder

	if opts.Fenced {
		sb.WriteString("```mermaid\n")
	}

	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    direction %s\n", direction)

	for _, s := range table.States() {
		if id := nodeID(s); id != string(s) {
			fmt.Fprintf(&sb, "    state \"%s\" as %s\n", s, id)
		}
	}

	fmt.Fprintf(&sb, "    [*] --> %s\n", nodeID(table.Initial()))

	for _, tr := range table.Transitions() {
		fmt.Fprintf(&sb, "    %s --> %s: %s\n", nodeID(tr.From), nodeID(tr.To), label(tr, opts))
	}

	for _, s := range table.States() {
		if table.IsFinal(s) {
			fmt.Fprintf(&sb, "    %s --> [*]\n", nodeID(s))
		}
	}

	for _, s := range table.States() {
		switch {
		case highlighted[s]:
			fmt.Fprintf(&sb, "    class %s highlighted\n", nodeID(s))
		case table.IsFinal(s):
			fmt.Fprintf(&sb, "    class %s finalState\n", nodeID(s))
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef finalState fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")

	if opts.Fenced {
		sb.WriteString("```\n")
	}

	return sb.String(), nil
}

func label[C any](tr statemachine.Transition[C], opts Options) string {
	out := string(tr.Event)

	if opts.ShowGuards && tr.Guard != nil {
		out += " [" + tr.Guard.Name + "]"
	}

	if opts.ShowActions && len(tr.Actions) > 0 {
		names := make([]string, len(tr.Actions))
		for i, a := range tr.Actions {
			names[i] = a.Name
		}

		out += " / " + strings.Join(names, ", ")
	}

	// Mermaid ends the label at a colon.
	return strings.ReplaceAll(out, ":", "#colon;")
}

// nodeID maps a state name to a Mermaid identifier.
func nodeID(s statemachine.State) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}

		return '_'
	}, string(s))
}
