// Package cli implements the writeback command line: URL resolution, offline planning and
// applying a plan to a local git checkout.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
)

const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 4
)

var version = "dev"

type rootOptions struct {
	layout     string
	routes     string
	layoutFile string
	logLevel   string
}

// Run executes the root command and returns an exit code.
func Run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var rt runtimeError
		if errors.As(err, &rt) {
			return ExitRuntimeError
		}
		return ExitUsageError
	}
	return ExitSuccess
}

// runtimeError marks failures that are not caused by bad usage
type runtimeError struct{ error }

func (e runtimeError) Unwrap() error { return e.error }

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "writeback",
		Short:        "Plan and apply marker-delimited content blocks to site source files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			lvl, err := zerolog.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Hook(logging.ContextHook{}).
				With().Timestamp().Logger().
				Level(lvl)
			logging.SetDefault(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.layout, "layout", "", "layout name (built-in preset or from --layout-file)")
	pf.StringVar(&opts.routes, "routes", "", "route strategy override: nested or flat")
	pf.StringVar(&opts.layoutFile, "layout-file", "", "YAML file with additional layouts")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newPlanCmd(opts))
	root.AddCommand(newApplyCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print writeback version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "writeback version %s\n", version)
		},
	})
	return root
}
