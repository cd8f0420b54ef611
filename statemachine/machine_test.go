package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/statemachinetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	table := statemachinetest.ApprovalTable(t)

	t.Run("small amount is approved", func(t *testing.T) {
		t.Parallel()

		req := &statemachinetest.ApprovalRequest{Amount: 500}
		m, rec := statemachinetest.NewTestMachine(t, table, req)

		out := m.Dispatch(ctx, statemachine.NewEvent(statemachinetest.EventApprove, nil))
		require.True(t, out.Committed(), out.Err())
		assert.Equal(t, statemachinetest.StateApproved, m.CurrentState())
		assert.Equal(t, statemachine.TransitionResult{
			From:  statemachinetest.StateNew,
			To:    statemachinetest.StateApproved,
			Event: statemachinetest.EventApprove,
		}, out.Transition)
		assert.Equal(t, []string{"approved"}, req.Notes)
		assert.Equal(t, statemachine.PhaseTerminal, m.Phase())

		statemachinetest.AssertMatches(t, rec,
			statemachinetest.TransitionWasCommitted(statemachinetest.StateNew, statemachinetest.StateApproved),
			statemachinetest.EndedIn(statemachinetest.StateApproved),
		)
	})

	t.Run("large amount fails every guard", func(t *testing.T) {
		t.Parallel()

		req := &statemachinetest.ApprovalRequest{Amount: 1500}
		m, rec := statemachinetest.NewTestMachine(t, table, req)

		out := m.Dispatch(ctx, statemachine.NewEvent(statemachinetest.EventApprove, nil))
		require.True(t, out.Rejected())
		assert.Equal(t, statemachine.AllGuardsFailed, out.Reason)
		assert.Equal(t, statemachinetest.StateNew, m.CurrentState())
		assert.Empty(t, req.Notes)
		require.ErrorIs(t, out.Err(), statemachine.ErrAllGuardsFailed)

		statemachinetest.AssertMatches(t, rec, statemachinetest.EventWasRejected(statemachine.AllGuardsFailed))
	})

	t.Run("rejected request is terminal", func(t *testing.T) {
		t.Parallel()

		req := &statemachinetest.ApprovalRequest{Amount: 1500}
		m, _ := statemachinetest.NewTestMachine(t, table, req)

		out := m.Dispatch(ctx, statemachine.NewEvent(statemachinetest.EventReject, nil))
		require.True(t, out.Committed())
		assert.Equal(t, statemachinetest.StateRejected, m.CurrentState())
		assert.True(t, m.IsTerminal())

		out = m.Dispatch(ctx, statemachine.NewEvent(statemachinetest.EventApprove, nil))
		require.True(t, out.Rejected())
		assert.Equal(t, statemachine.TerminalState, out.Reason)
		assert.Equal(t, statemachinetest.StateRejected, m.CurrentState())
		assert.Equal(t, []string{"rejected"}, req.Notes)
		assert.Empty(t, m.AvailableEvents())
	})
}

func TestDispatch_NoMatchingTransition(t *testing.T) {
	t.Parallel()

	table, err := statemachine.NewBuilder[*counter]("nomatch").
		Initial("A").
		State("B").
		Event("go", "stay").
		Permit("A", "go", "B", statemachine.Effect("inc", func(c *counter, _ statemachine.Event) { c.n++ })).
		Build()
	require.NoError(t, err)

	c := &counter{}
	m, err := statemachine.NewMachine(table, c)
	require.NoError(t, err)

	out := m.Dispatch(context.Background(), statemachine.NewEvent("stay", nil))
	require.True(t, out.Rejected())
	assert.Equal(t, statemachine.NoMatchingTransition, out.Reason)
	assert.Equal(t, statemachine.State("A"), out.State)
	assert.Equal(t, statemachine.State("A"), m.CurrentState())
	assert.Equal(t, 0, c.n)
	assert.Equal(t, statemachine.PhaseIdle, m.Phase())

	out = m.Dispatch(context.Background(), statemachine.NewEvent("undeclared", nil))
	assert.Equal(t, statemachine.NoMatchingTransition, out.Reason)
}

func TestDispatch_GuardOrder(t *testing.T) {
	t.Parallel()

	journal := statemachinetest.NewJournal()

	table, err := statemachine.NewBuilder[*counter]("guards").
		Initial("A").
		State("B", "C", "D").
		Event("go").
		PermitIf("A", "go", "B", statemachinetest.Guard[*counter](journal, "G1", false)).
		PermitIf("A", "go", "C", statemachinetest.Guard[*counter](journal, "G2", true)).
		PermitIf("A", "go", "D", statemachinetest.Guard[*counter](journal, "G3", true)).
		Build()
	require.NoError(t, err)

	m, err := statemachine.NewMachine(table, &counter{})
	require.NoError(t, err)

	out := m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	require.True(t, out.Committed())
	assert.Equal(t, statemachine.State("C"), m.CurrentState())
	assert.Equal(t, []string{"G1", "G2"}, journal.Entries())
}

func TestDispatch_GuardErrorsAreCollected(t *testing.T) {
	t.Parallel()

	journal := statemachinetest.NewJournal()

	panicking := statemachine.NewGuard("boom", func(context.Context, *counter, statemachine.Event) (bool, error) {
		panic("guard exploded")
	})

	table, err := statemachine.NewBuilder[*counter]("guard-errors").
		Initial("A").
		State("B", "C").
		Event("go").
		PermitIf("A", "go", "B", statemachinetest.FailingGuard[*counter](journal, "broken")).
		PermitIf("A", "go", "C", panicking).
		Build()
	require.NoError(t, err)

	m, err := statemachine.NewMachine(table, &counter{})
	require.NoError(t, err)

	out := m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	require.True(t, out.Rejected())
	assert.Equal(t, statemachine.AllGuardsFailed, out.Reason)
	require.Len(t, out.GuardErrors, 2)

	var guardErr *statemachine.GuardError
	require.ErrorAs(t, out.GuardErrors[0], &guardErr)
	assert.Equal(t, "broken", guardErr.Guard)
	require.ErrorIs(t, out.GuardErrors[0], statemachinetest.ErrInjected)
	require.ErrorIs(t, out.GuardErrors[1], statemachine.ErrPanic)
	require.ErrorIs(t, out.GuardErrors[1], statemachine.ErrGuardFailed)

	err = out.Err()
	require.ErrorIs(t, err, statemachine.ErrAllGuardsFailed)
	require.ErrorIs(t, err, statemachinetest.ErrInjected)
}

func TestDispatch_ActionFailureDoesNotCommit(t *testing.T) {
	t.Parallel()

	journal := statemachinetest.NewJournal()
	inc := func(_ context.Context, c *counter) error {
		c.n++

		return nil
	}

	table, err := statemachine.NewBuilder[*counter]("atomic").
		Initial("A").
		State("B").
		Event("go").
		Permit("A", "go", "B",
			statemachinetest.Action(journal, "first", inc),
			statemachinetest.Action(journal, "second", statemachinetest.Fail[*counter]),
			statemachinetest.Action(journal, "third", inc),
		).
		Build()
	require.NoError(t, err)

	c := &counter{}
	m, rec := statemachinetest.NewTestMachine(t, table, c)

	out := m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	require.True(t, out.Failed())
	assert.Equal(t, 1, out.ActionIndex)
	assert.Equal(t, "second", out.Action)
	assert.Equal(t, statemachine.State("A"), m.CurrentState())
	assert.Equal(t, 1, c.n, "mutation of the first action is kept")
	assert.Equal(t, []string{"first", "second"}, journal.Entries())
	assert.Equal(t, statemachine.PhaseIdle, m.Phase())

	err = out.Err()

	var failedErr *statemachine.FailedError
	require.ErrorAs(t, err, &failedErr)
	assert.Equal(t, 1, failedErr.ActionIndex)
	require.ErrorIs(t, err, statemachine.ErrActionFailed)
	require.ErrorIs(t, err, statemachinetest.ErrInjected)

	var actionErr *statemachine.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "second", actionErr.Action)

	statemachinetest.AssertMatches(t, rec, statemachinetest.DispatchFailedAt(1))
}

func TestDispatch_ActionPanic(t *testing.T) {
	t.Parallel()

	table, err := statemachine.NewBuilder[*counter]("panic").
		Initial("A").
		State("B").
		Event("go").
		Permit("A", "go", "B", statemachine.Effect("explode", func(*counter, statemachine.Event) {
			panic(errors.New("kaboom"))
		})).
		Build()
	require.NoError(t, err)

	m, err := statemachine.NewMachine(table, &counter{})
	require.NoError(t, err)

	out := m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	require.True(t, out.Failed())
	assert.Equal(t, 0, out.ActionIndex)
	require.ErrorIs(t, out.Cause, statemachine.ErrPanic)
	assert.Contains(t, out.Cause.Error(), "kaboom")
	assert.Equal(t, statemachine.State("A"), m.CurrentState())

	// The lock was released.
	out = m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	assert.True(t, out.Failed())
}

func TestDispatch_Busy(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})

	table, err := statemachine.NewBuilder[*counter]("busy").
		Initial("A").
		State("B").
		Event("go").
		Permit("A", "go", "B", statemachine.NewAction("block",
			func(context.Context, *counter, statemachine.Event) error {
				close(entered)
				<-release

				return nil
			})).
		Build()
	require.NoError(t, err)

	m, err := statemachine.NewMachine(table, &counter{})
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		first statemachine.Outcome
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		first = m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	}()

	<-entered

	assert.Equal(t, statemachine.PhaseDispatching, m.Phase())
	assert.Equal(t, statemachine.State("A"), m.CurrentState())

	second := m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	require.True(t, second.Rejected())
	assert.Equal(t, statemachine.Busy, second.Reason)
	require.ErrorIs(t, second.Err(), statemachine.ErrBusy)

	_, err = m.Snapshot()
	require.ErrorIs(t, err, statemachine.ErrBusy)

	close(release)
	wg.Wait()

	assert.True(t, first.Committed())
	assert.Equal(t, statemachine.State("B"), m.CurrentState())
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	table := statemachinetest.ApprovalTable(t)

	m, err := statemachine.NewMachine(table, &statemachinetest.ApprovalRequest{Amount: 10}, statemachine.WithID("req-1"))
	require.NoError(t, err)
	assert.Equal(t, "req-1", m.ID())

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "approval", snap.Machine)
	assert.Equal(t, "req-1", snap.ID)
	assert.Equal(t, statemachinetest.StateNew, snap.State)
	assert.Equal(t, table.Fingerprint(), snap.Fingerprint)

	restored, err := statemachine.Restore(table, snap)
	require.NoError(t, err)
	assert.Equal(t, "req-1", restored.ID())
	assert.Equal(t, statemachinetest.StateNew, restored.CurrentState())

	out := restored.Dispatch(context.Background(), statemachine.NewEvent(statemachinetest.EventApprove, nil))
	assert.True(t, out.Committed())

	snap.State = statemachinetest.StateApproved
	terminal, err := statemachine.Restore(table, snap, statemachine.WithID("req-2"))
	require.NoError(t, err)
	assert.Equal(t, "req-2", terminal.ID())
	assert.Equal(t, statemachine.PhaseTerminal, terminal.Phase())

	bad := snap
	bad.Fingerprint++
	_, err = statemachine.Restore(table, bad)
	require.ErrorIs(t, err, statemachine.ErrFingerprintMismatch)

	bad = snap
	bad.State = "Nowhere"
	_, err = statemachine.Restore(table, bad)
	require.ErrorIs(t, err, statemachine.ErrInvalidSnapshot)

	_, err = statemachine.Restore[*statemachinetest.ApprovalRequest](nil, snap)
	require.ErrorIs(t, err, statemachine.ErrNilTable)
}

func TestCanTransitionTo(t *testing.T) {
	t.Parallel()

	m, err := statemachine.NewMachine(statemachinetest.ApprovalTable(t), &statemachinetest.ApprovalRequest{Amount: 5000})
	require.NoError(t, err)

	assert.True(t, m.CanTransitionTo(statemachinetest.StateApproved), "guards are not evaluated")
	assert.True(t, m.CanTransitionTo(statemachinetest.StateRejected))
	assert.False(t, m.CanTransitionTo(statemachinetest.StateNew))
	assert.Equal(t,
		[]statemachine.EventName{statemachinetest.EventApprove, statemachinetest.EventReject},
		m.AvailableEvents())
}

func TestListenerPanicIsContained(t *testing.T) {
	t.Parallel()

	rec := statemachinetest.NewRecorder()
	boom := statemachine.ListenerFunc(func(context.Context, statemachine.Outcome) {
		panic("listener exploded")
	})

	m, err := statemachine.NewMachine(statemachinetest.ApprovalTable(t), &statemachinetest.ApprovalRequest{},
		statemachine.WithListener(boom),
		statemachine.WithListener(rec),
	)
	require.NoError(t, err)

	out := m.Dispatch(context.Background(), statemachine.NewEvent(statemachinetest.EventReject, nil))
	assert.True(t, out.Committed())
	assert.Equal(t, 1, rec.Len())
}

func TestPayloadAs(t *testing.T) {
	t.Parallel()

	ev := statemachine.NewEvent("go", 42)

	n, ok := statemachine.PayloadAs[int](ev)
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = statemachine.PayloadAs[string](ev)
	assert.False(t, ok)
}

func TestOutcomeDuration(t *testing.T) {
	t.Parallel()

	table, err := statemachine.NewBuilder[*counter]("slow").
		Initial("A").
		State("B").
		Event("go").
		Permit("A", "go", "B", statemachine.Effect("sleep", func(*counter, statemachine.Event) {
			time.Sleep(5 * time.Millisecond)
		})).
		Build()
	require.NoError(t, err)

	m, err := statemachine.NewMachine(table, &counter{})
	require.NoError(t, err)

	out := m.Dispatch(context.Background(), statemachine.NewEvent("go", nil))
	assert.GreaterOrEqual(t, out.Duration, 5*time.Millisecond)
}
