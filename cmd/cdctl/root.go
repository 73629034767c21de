package main

import (
	"backend-carbondrive/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	logLevel  string
	logFormat string
}

func (o *rootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "cdctl",
		Short:         "CarbonDrive tracking engine tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format (json, console)")

	cmd.AddCommand(newReplayCmd(opts))
	cmd.AddCommand(newTokenCmd())
	return cmd
}
