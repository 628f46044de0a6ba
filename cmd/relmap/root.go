package main

import (
	"github.com/spf13/cobra"

	"github.com/CaliLuke/go-relmap/internal/logging"
)

const version = "0.1.0"

// rootOptions holds flags shared by every command.
type rootOptions struct {
	LogLevel string
	Chain    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "relmap",
		Short:   "Route, compile and run relmap schema queries",
		Long:    "relmap loads a YAML schema document (type declarations plus relationship rules) and resolves, compiles or executes queries against it.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewConsoleLogger(cmd.ErrOrStderr(), opts.LogLevel)
			if err != nil {
				return err
			}
			logging.SetGlobalLogger(logger)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (trace|debug|info|warn|error)")

	cmd.AddCommand(newRouteCommand(opts))
	cmd.AddCommand(newSQLCommand(opts))
	cmd.AddCommand(newDDLCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))

	return cmd
}
