package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/dotbind/internal/config"
	"github.com/copyleftdev/dotbind/internal/errors"
	"github.com/copyleftdev/dotbind/internal/logging"
)

var (
	logLevel string
	cfg      *config.Config
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dot",
	Short: "Drive the DOT constrained optimizer",
	Long: `dot loads the DOT optimization library for the host platform and runs
problems through its reverse-communication loop, either once from the
command line or as queued jobs behind an HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, err = logging.NewLogger(&logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
}
