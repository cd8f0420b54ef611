package visualizer

import (
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/statemachinetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMermaid(t *testing.T) {
	t.Parallel()

	out, err := Mermaid(statemachinetest.ApprovalTable(t))
	require.NoError(t, err)

	assert.Equal(t, "```mermaid\n"+
		"stateDiagram-v2\n"+
		"    direction TB\n"+
		"    [*] --> New\n"+
		"    New --> Approved: approve [amountBelowLimit]\n"+
		"    New --> Rejected: reject\n"+
		"    Approved --> [*]\n"+
		"    Rejected --> [*]\n"+
		"    class Approved finalState\n"+
		"    class Rejected finalState\n"+
		"\n"+
		"    classDef finalState fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n"+
		"    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n"+
		"```\n", out)
}

func TestMermaidWithOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions().
		WithShowGuards(false).
		WithShowActions(true).
		WithDirection("LR").
		WithHighlight(statemachinetest.StateNew).
		WithFenced(false)

	out, err := MermaidWithOptions(statemachinetest.ApprovalTable(t), opts)
	require.NoError(t, err)

	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "direction LR\n")
	assert.Contains(t, out, "New --> Approved: approve / note#colon;approved\n")
	assert.NotContains(t, out, "amountBelowLimit")
	assert.Contains(t, out, "class New highlighted\n")
}

func TestMermaid_StateNamesNeedingAliases(t *testing.T) {
	t.Parallel()

	table, err := statemachine.NewBuilder[any]("aliases").
		Initial("In Review").
		Final("done-ok").
		Event("finish").
		Permit("In Review", "finish", "done-ok").
		Build()
	require.NoError(t, err)

	out, err := Mermaid(table)
	require.NoError(t, err)

	assert.Contains(t, out, "state \"In Review\" as In_Review\n")
	assert.Contains(t, out, "state \"done-ok\" as done_ok\n")
	assert.Contains(t, out, "In_Review --> done_ok: finish\n")
}

func TestMermaid_NilTable(t *testing.T) {
	t.Parallel()

	_, err := Mermaid[any](nil)
	require.ErrorIs(t, err, ErrTableNil)
}
