package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"newsflow/internal/artifacts"
	"newsflow/internal/config"
	"newsflow/internal/daemon"
	"newsflow/internal/daemonrun"
	"newsflow/internal/notifications"
	"newsflow/internal/queue"
)

func newTickCommand(ctx *commandContext) *cobra.Command {
	var stageName string
	var logLevel string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run a single tick of one stage and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stageName == "" {
				return errors.New("--stage is required")
			}
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, items queue.Repository) error {
				statuses, err := daemonrun.ResolveStages(cfg, []string{stageName})
				if err != nil {
					return err
				}
				if len(statuses) != 1 {
					return fmt.Errorf("tick runs exactly one stage, got %d", len(statuses))
				}
				lock, err := daemon.LockStage(cfg.Paths.LogDir, string(statuses[0]))
				if err != nil {
					return err
				}
				defer func() { _ = lock.Unlock() }()

				logger, err := commandLogger(cfg, logLevel)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				store, err := artifacts.Open(cfg.Paths.ArtifactDir)
				if err != nil {
					return fmt.Errorf("open artifact store: %w", err)
				}
				notifier := notifications.NewService(cfg)
				driver, err := daemonrun.BuildDriver(cfg, statuses, logger, notifier)
				if err != nil {
					return err
				}
				runners := daemonrun.BuildRunners(cfg, driver, items, store, logger, notifier)
				result, tickErr := runners[0].Tick(cmd.Context())
				if asJSON {
					if err := writeJSON(cmd, result); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), result.String())
				}
				return tickErr
			})
		},
	}

	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "Stage to tick (downloaded, extracted, translated, published)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tick result as JSON")
	return cmd
}
