package main

import (
	"github.com/spf13/cobra"

	"newsflow/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var stages []string
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run stage workers until interrupted",
		Long: "Run one goroutine per selected stage, ticking every workflow.tick_interval seconds.\n" +
			"Without --stage the stages listed in workflow.stages are started. A stage can only\n" +
			"run in one process at a time; a second process for the same stage exits with an error.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Stages:      stages,
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&stages, "stage", "s", nil, "Stage to run (repeatable or comma separated)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this process")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging (source locations)")
	return cmd
}
