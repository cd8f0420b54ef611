package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestAction = errors.New("action failed on purpose")

type tally struct {
	n int
}

// doorTable: Closed --open [allowed]--> Open --close--> Closed, where "open"
// runs a counting action and "close" runs a failing one.
func doorTable(t *testing.T, name string) *Table[*tally] {
	t.Helper()

	allowed := Predicate("allowed", func(*tally, Event) bool { return true })
	count := Effect("count", func(c *tally, _ Event) { c.n++ })
	fail := NewAction("fail", func(context.Context, *tally, Event) error { return errTestAction })

	table, err := NewBuilder[*tally](name).
		Initial("Closed").
		State("Open").
		Event("open", "close").
		PermitIf("Closed", "open", "Open", allowed, count).
		Permit("Open", "close", "Closed", fail).
		Build()
	require.NoError(t, err)

	return table
}
