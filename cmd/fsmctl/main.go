// Command fsmctl validates, renders and simulates state machine definitions
// written in YAML.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/shutdown"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/telemetry"
	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags.
var Version = "dev"

var errFileRequired = errors.New("definition file path required")

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, sh := shutdown.Setup(context.Background())

	err := run(ctx)

	sh.Stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if _, err := logger.ConfigureLogging("fsmctl", logger.WithOutput(os.Stderr)); err != nil {
		return err
	}

	cfg, err := telemetry.LoadConfig("fsmctl")
	if err != nil {
		return err
	}

	tel, err := telemetry.Initialize(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	return newApp(os.Stdout, tel).Run(ctx, os.Args)
}

// newApp builds the command tree. tel may be nil.
func newApp(out io.Writer, tel *telemetry.Telemetry) *cli.Command {
	return &cli.Command{
		Name:    "fsmctl",
		Version: Version,
		Usage:   "Work with state machine definitions",
		Writer:  out,

		// Event specs carry commas.
		DisableSliceFlagSeparator: true,

		Commands: []*cli.Command{
			validateCommand(),
			diagramCommand(),
			simulateCommand(tel),
		},
	}
}

// definitionPath returns the first positional argument.
func definitionPath(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() < 1 {
		return "", errFileRequired
	}

	return cmd.Args().First(), nil
}

// loadTable compiles a definition without its code: named guards always pass
// and named actions do nothing. Expression guards are evaluated for real.
func loadTable(path string) (*statemachine.Table[map[string]any], error) {
	reg := statemachine.NewRegistry[map[string]any]().AllowUnresolved()

	table, err := statemachine.LoadTable(path, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return table, nil
}
