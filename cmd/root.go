// Package cmd contains CLI command definitions
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethpandaops/hilbench/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errScenariosFailed = errors.New("one or more scenarios failed")

var (
	// Logger is the shared logger instance for all commands
	Logger *logrus.Logger

	suiteFile string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:   "hilbench",
		Short: "hilbench - protection timing harness for HIL fault injection",
		Long: `hilbench drives a hardware-in-the-loop simulator through fault scenarios and
checks that protection relays pick up, trip and stay stable within their limits.

Run without arguments to launch interactive mode, or use subcommands for direct operations.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				Logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(config.ExitFailure)
	}
}

// InitLogger builds the shared logger from LOG_LEVEL.
func InitLogger() {
	Logger = newLogger(os.Getenv("LOG_LEVEL"))
}

func init() {
	InitLogger()

	rootCmd.PersistentFlags().StringVarP(&suiteFile, "suite", "s", config.DefaultSuiteFile, "Suite definition file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	// Consumed by main before cobra runs.
	rootCmd.PersistentFlags().String("env", "", "Environment file to load")
}
