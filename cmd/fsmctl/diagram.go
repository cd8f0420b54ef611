package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/visualizer"
	"github.com/urfave/cli/v3"
)

func diagramCommand() *cli.Command {
	return &cli.Command{
		Name:      "diagram",
		Usage:     "Render a definition as a Mermaid state diagram",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "actions", Usage: "Show action names on transitions"},
			&cli.BoolFlag{Name: "no-guards", Usage: "Hide guard names"},
			&cli.BoolFlag{Name: "raw", Usage: "Omit the ```mermaid fence"},
			&cli.StringFlag{Name: "direction", Value: "TB", Usage: "TB or LR"},
			&cli.StringSliceFlag{Name: "highlight", Usage: "States to highlight"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to a file instead of stdout"},
		},
		Action: diagramAction,
	}
}

func diagramAction(_ context.Context, cmd *cli.Command) error {
	path, err := definitionPath(cmd)
	if err != nil {
		return err
	}

	table, err := loadTable(path)
	if err != nil {
		return err
	}

	highlight := make([]statemachine.State, 0, len(cmd.StringSlice("highlight")))
	for _, s := range cmd.StringSlice("highlight") {
		highlight = append(highlight, statemachine.State(s))
	}

	opts := visualizer.DefaultOptions().
		WithShowGuards(!cmd.Bool("no-guards")).
		WithShowActions(cmd.Bool("actions")).
		WithDirection(cmd.String("direction")).
		WithHighlight(highlight...).
		WithFenced(!cmd.Bool("raw"))

	out, err := visualizer.MermaidWithOptions(table, opts)
	if err != nil {
		return err
	}

	if dest := cmd.String("output"); dest != "" {
		if err := os.WriteFile(dest, []byte(out), 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}

		return nil
	}

	_, err = fmt.Fprint(cmd.Root().Writer, out)

	return err
}
