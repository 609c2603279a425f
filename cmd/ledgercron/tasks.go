package main

import (
	"fmt"
	"time"

	"github.com/aatumaykin/ledgercron/internal/constants"
	"github.com/aatumaykin/ledgercron/internal/cron"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/spf13/cobra"
)

func newTasksCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect task lists",
	}
	cmd.AddCommand(newTasksValidateCmd(global))
	return cmd
}

func newTasksValidateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [task-list]",
		Short: "Validate a task list",
		Long: `Parse the task list, check every schedule and recipient and print the
next firing of each task. The path defaults to tasks.path from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := global.loadConfig(cmd)
				if err != nil {
					return err
				}
				path = cfg.Tasks.Path
			}
			if path == "" {
				return fmt.Errorf("no task list given and tasks.path is not configured")
			}
			return validateTasks(cmd, path, time.Now())
		},
	}
}

func validateTasks(cmd *cobra.Command, path string, now time.Time) error {
	specs, err := tasks.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, spec := range specs {
		next, err := cron.NextFire(spec.Schedule, now)
		if err != nil {
			return fmt.Errorf("task %d: %w", spec.Index, err)
		}
		if _, err := identity.Decode(spec.Params.To); err != nil {
			return fmt.Errorf("task %d: %w", spec.Index, err)
		}
		fmt.Fprintf(out, constants.MsgTaskLine, spec.Index, spec.Schedule,
			spec.Params.Amount, spec.Params.Symbol, spec.Params.To, next.Format(time.RFC3339))
	}
	fmt.Fprintf(out, constants.MsgTasksValid, len(specs))
	return nil
}
