// Package cmd wires the harness's cobra command tree: a root command
// carrying the shared logger/context setup, and a run subcommand that
// drives internal/runner.
//
// Grounded on cmd/root.go's rootCommand pattern (a small struct holding
// the cobra.Command plus the logger/context every subcommand needs,
// wired together in newRootCommand rather than through package globals).
package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootCommand struct {
	ctx    context.Context
	logger *logrus.Logger
	cmd    *cobra.Command
}

func newRootCommand(ctx context.Context, logger *logrus.Logger) *rootCommand {
	c := &rootCommand{ctx: ctx, logger: logger}
	c.cmd = &cobra.Command{
		Use:           "wrightplay",
		Short:         "run browser-side unit tests through a host-driven bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.cmd.AddCommand(c.getRunCmd())
	return c
}

// Execute builds the root command and runs it against os.Args.
func Execute() {
	logger := logrus.New()
	root := newRootCommand(context.Background(), logger)
	if err := root.cmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
