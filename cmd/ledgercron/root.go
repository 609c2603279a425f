package main

import (
	"fmt"

	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/constants"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/version"
	"github.com/spf13/cobra"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    int
	quiet      int
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ledgercron",
		Short: "ledgercron - scheduled ledger transfers",
		Long: `ledgercron fires ledger transfers on cron schedules and records
the outcome of every firing in a persistent store.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (optional)")
	rootCmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "Increase logging verbosity (repeatable)")
	rootCmd.PersistentFlags().CountVarP(&opts.quiet, "quiet", "q", "Decrease logging verbosity (repeatable)")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newTasksCmd(opts))
	rootCmd.AddCommand(newRecordsCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig loads .env and the optional configuration file and applies the
// verbosity flags.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvOptional(constants.DefaultEnvPath); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", constants.DefaultEnvPath, err)
	}

	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgConfigLoadFailed, err)
		return nil, err
	}

	if o.verbose > 0 || o.quiet > 0 {
		cfg.Logging.Level = logger.LevelFromVerbosity(o.verbose, o.quiet)
	}
	return cfg, nil
}

// validate prints every validation error and fails if there is any.
func validate(cmd *cobra.Command, cfg *config.Config) error {
	errs := cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	out := cmd.ErrOrStderr()
	fmt.Fprint(out, constants.MsgConfigInvalid)
	for _, e := range errs {
		fmt.Fprintf(out, constants.MsgConfigInvalidItem, e)
	}
	return fmt.Errorf("invalid configuration: %d error(s)", len(errs))
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), constants.MsgLoggerFailed, err)
		return nil, err
	}
	return log, nil
}
