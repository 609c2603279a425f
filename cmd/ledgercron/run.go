package main

import (
	"github.com/aatumaykin/ledgercron/internal/app"
	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type runOptions struct {
	*globalOptions

	serverID        string
	pem             string
	tasks           string
	persistent      string
	clean           bool
	keepHistory     bool
	skipOverlapping bool
	maxConcurrent   int
	gracePeriod     int
	metricsListen   string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "run [server] [server-id]",
		Short: "Start the agent",
		Long: `Start the agent: load the task list, arm one cron timer per task and
record the outcome of every firing until SIGINT or SIGTERM.

server defaults to http://localhost:8000. Without --pem the agent runs under
the anonymous identity and every transfer is rejected.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}

			log, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			logger.SetDefault(log)

			log.Info("Starting ledgercron",
				logger.Field{Key: "version", Value: version.Version},
				logger.Field{Key: "git_commit", Value: version.GitCommit},
				logger.Field{Key: "server", Value: cfg.Server.URL},
				logger.Field{Key: "tasks", Value: cfg.Tasks.Path},
				logger.Field{Key: "persistent", Value: cfg.Storage.Path})

			return app.New(cfg, log).Run(cmd.Context())
		},
	}

	opts.bindFlags(cmd.Flags())

	return cmd
}

func (o *runOptions) bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.serverID, "server-id", "", "Identity of the server (hex or text); any server when empty")
	flags.StringVar(&o.pem, "pem", "", "PEM file with the agent key; anonymous when empty")
	flags.StringVar(&o.tasks, "tasks", "", "Path to the task list (JSON or YAML)")
	flags.StringVar(&o.persistent, "persistent", "", "Path to the persistent store database")
	flags.BoolVar(&o.clean, "clean", false, "Delete the persistent store before starting")
	flags.BoolVar(&o.keepHistory, "keep-history", false, "Keep every record instead of the latest per key")
	flags.BoolVar(&o.skipOverlapping, "skip-overlapping", false, "Skip a firing while the previous one of the same task is running")
	flags.IntVar(&o.maxConcurrent, "max-concurrent", 0, "Maximum concurrent firings (0 = unbounded)")
	flags.IntVar(&o.gracePeriod, "grace-period", 0, "Seconds granted to in-flight firings on shutdown (min 5)")
	flags.StringVar(&o.metricsListen, "metrics", "", "Expose Prometheus metrics on this address")
}

// resolve merges the configuration file with positional arguments and flags.
// Only flags set on the command line override the file.
func (o *runOptions) resolve(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Server.URL = args[0]
	}
	if len(args) > 1 {
		cfg.Server.Identity = args[1]
	}

	flags := cmd.Flags()
	if flags.Changed("server-id") {
		cfg.Server.Identity = o.serverID
	}
	if flags.Changed("pem") {
		cfg.Identity.PEM = o.pem
	}
	if flags.Changed("tasks") {
		cfg.Tasks.Path = o.tasks
	}
	if flags.Changed("persistent") {
		cfg.Storage.Path = o.persistent
	}
	if flags.Changed("clean") {
		cfg.Storage.Clean = o.clean
	}
	if flags.Changed("keep-history") {
		cfg.Storage.KeepHistory = o.keepHistory
	}
	if flags.Changed("skip-overlapping") {
		cfg.Scheduler.SkipOverlapping = o.skipOverlapping
	}
	if flags.Changed("max-concurrent") {
		cfg.Scheduler.MaxConcurrent = o.maxConcurrent
	}
	if flags.Changed("grace-period") {
		cfg.Shutdown.GracePeriodSeconds = o.gracePeriod
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = o.metricsListen
	}

	if err := validate(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
