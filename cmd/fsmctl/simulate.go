package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"facette.io/natsort"
	term "github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/telemetry"
	"github.com/urfave/cli/v3"
)

// errNoMoreEvents ends a scripted simulation.
var errNoMoreEvents = errors.New("no more events")

type eventSource func(m *statemachine.Machine[map[string]any]) (statemachine.Event, error)

func simulateCommand(tel *telemetry.Telemetry) *cli.Command {
	return &cli.Command{
		Name:      "simulate",
		Usage:     "Step through a definition interactively",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "Seed the context with key=value",
			},
			&cli.StringSliceFlag{
				Name:  "event",
				Usage: "Dispatch events without prompting, as name[,key=value...]",
			},
			&cli.BoolFlag{
				Name:  "log",
				Usage: "Log every outcome",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return simulateAction(ctx, cmd, tel)
		},
	}
}

func simulateAction(ctx context.Context, cmd *cli.Command, tel *telemetry.Telemetry) error {
	path, err := definitionPath(cmd)
	if err != nil {
		return err
	}

	table, err := loadTable(path)
	if err != nil {
		return err
	}

	values, err := term.ParsePairs(cmd.StringSlice("set"))
	if err != nil {
		return err
	}

	var opts []statemachine.Option
	if cmd.Bool("log") {
		opts = append(opts, statemachine.WithListener(&statemachine.LoggingListener{
			Logger: tel.Logger(logger.Get(ctx)),
		}))
	}

	m, err := statemachine.NewMachine(table, values, opts...)
	if err != nil {
		return err
	}

	var next eventSource = promptEvent
	if scripted := cmd.StringSlice("event"); len(scripted) > 0 {
		next = scriptedEvents(scripted)
	}

	return simulate(ctx, cmd.Root().Writer, m, next)
}

func simulate(ctx context.Context, w io.Writer, m *statemachine.Machine[map[string]any], next eventSource) error {
	fmt.Fprint(w, term.Banner(m.Table().Name()+"\n"+string(m.CurrentState()), term.DefaultWidth))

	for !m.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := next(m)
		if errors.Is(err, errNoMoreEvents) || errors.Is(err, term.ErrQuit) {
			break
		}

		if err != nil {
			return err
		}

		printOutcome(w, m.Dispatch(ctx, ev))
	}

	if m.IsTerminal() {
		fmt.Fprintf(w, "Reached final state %s\n", m.CurrentState())
	} else {
		fmt.Fprintf(w, "Stopped in %s\n", m.CurrentState())
	}

	return nil
}

func printOutcome(w io.Writer, o statemachine.Outcome) {
	switch o.Kind {
	case statemachine.Committed:
		fmt.Fprintf(w, "%s: %s -> %s\n", o.Event.Name, o.Transition.From, o.Transition.To)
	case statemachine.Rejected:
		fmt.Fprintf(w, "%s: rejected in %s (%s)\n", o.Event.Name, o.State, o.Reason)
	case statemachine.Failed:
		fmt.Fprintf(w, "%s: failed in %s: %v\n", o.Event.Name, o.State, o.Cause)
	}
}

func promptEvent(m *statemachine.Machine[map[string]any]) (statemachine.Event, error) {
	available := m.AvailableEvents()

	choices := make([]string, len(available))
	for i, ev := range available {
		choices[i] = string(ev)
	}

	natsort.Sort(choices)

	name, err := term.Select(fmt.Sprintf("Event (state %s)", m.CurrentState()), choices...)
	if err != nil {
		return statemachine.Event{}, err
	}

	payload, err := term.PromptPairs("Payload (key=value ...)")
	if err != nil {
		return statemachine.Event{}, err
	}

	return statemachine.NewEvent(statemachine.EventName(name), payload), nil
}

// scriptedEvents replays specs of the form name[,key=value...].
func scriptedEvents(specs []string) eventSource {
	queue := slices.Clone(specs)

	return func(*statemachine.Machine[map[string]any]) (statemachine.Event, error) {
		if len(queue) == 0 {
			return statemachine.Event{}, errNoMoreEvents
		}

		spec := queue[0]
		queue = queue[1:]

		parts := strings.Split(spec, ",")

		payload, err := term.ParsePairs(parts[1:])
		if err != nil {
			return statemachine.Event{}, fmt.Errorf("event %q: %w", spec, err)
		}

		return statemachine.NewEvent(statemachine.EventName(parts[0]), payload), nil
	}
}
