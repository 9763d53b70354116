package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PaperStrike/wrightplay/internal/config"
	"github.com/PaperStrike/wrightplay/internal/log"
	"github.com/PaperStrike/wrightplay/internal/runner"
)

// getRunCmd builds the run subcommand: it merges CLI flags over an
// optional --config file (§6, "either an object or an ordered list of
// objects") and drives internal/runner.RunAll with the result.
//
// Grounded on cmd/run.go's getRunCmd shape (flags parsed into a Config,
// merged with a file, handed to the execution layer), trimmed to what a
// single-process test runner needs instead of a distributed load-test
// engine's REST API/engine wiring.
func (c *rootCommand) getRunCmd() *cobra.Command {
	fs := config.FlagSet()

	cmd := &cobra.Command{
		Use:   "run [flags] [file...] [name=path...]",
		Short: "run test files in a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCfg, err := config.FromFlags(fs, args)
			if err != nil {
				return err
			}

			configPath, _ := fs.GetString("config")
			var seq config.RunSequence
			if configPath != "" {
				seq, err = config.ReadSequenceFile(configPath)
				if err != nil {
					return err
				}
			} else {
				seq = config.RunSequence{{}}
			}
			for i := range seq {
				seq[i] = seq[i].Apply(cliCfg)
			}
			if err := seq.Validate(); err != nil {
				return err
			}

			for _, cfg := range seq {
				if cfg.Debug.ValueOrZero() {
					c.logger.SetLevel(logrus.DebugLevel)
					break
				}
			}

			logger := log.New(c.logger, "")
			code, err := runner.RunAll(c.ctx, seq, logger)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().AddFlagSet(fs)
	return cmd
}
