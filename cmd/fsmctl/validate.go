package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/amp-labs/amp-fsm/statemachine/validator"
	"github.com/urfave/cli/v3"
)

var errValidationFailed = errors.New("validation failed")

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"lint"},
		Usage:     "Validate one or more definition files",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Treat warnings as errors",
			},
		},
		Action: validateAction,
	}
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return errFileRequired
	}

	w := cmd.Root().Writer
	invalid := 0

	for _, path := range cmd.Args().Slice() {
		result, err := validator.ValidateFile(path, cmd.Bool("strict"))
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}

		printResult(w, path, result)

		if !result.Valid {
			invalid++
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d files", errValidationFailed, invalid, cmd.Args().Len())
	}

	return nil
}

func printResult(w io.Writer, path string, result validator.Result) {
	if result.Valid {
		fmt.Fprintf(w, "%s is valid\n", path)
	} else {
		fmt.Fprintf(w, "%s is invalid\n", path)
	}

	for _, issue := range result.Errors {
		fmt.Fprintf(w, "  error: %s\n", issue)
	}

	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", issue)
	}

	for _, s := range result.Suggestions {
		fmt.Fprintf(w, "  suggestion: %s\n", s.Message)
	}
}
