// Package cmd provides the command-line interface for devsim.
package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	envFile  string
	logLevel string
	config   Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "devsim",
	Short: "devsim runs discrete event scenarios against the example models.",
	Long: `devsim runs discrete event scenarios against the example models. ` +
		`A scenario file lists the models, how they are coupled and the ` +
		`events that start the simulation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := LoadConfig(envFile)
		if err != nil {
			return err
		}

		config = loaded

		if cmd.Flags().Changed("log-level") {
			config.LogLevel = logLevel
		}

		level, err := logrus.ParseLevel(config.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
		}

		logrus.SetLevel(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Optional dotenv file with DEVSIM_ settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (trace, debug, info, warn, error, fatal, panic)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits through atexit so that trace sinks flush.
func Execute() {
	atexit.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}
