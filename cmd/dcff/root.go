package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel = "warning"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Cycle-stepped 16-bit machine emulator",
	Version:       Version(),
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return errors.Wrap(err, "--log-level")
		}
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(lvl)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel,
		"Log verbosity: trace, debug, info, warning, error.")
}
