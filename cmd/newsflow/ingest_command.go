package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsflow/internal/config"
	"newsflow/internal/ingest"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/queue"
	"newsflow/internal/workflow"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var feedURL string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scrape the upstream feed page and queue new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, items queue.Repository) error {
				if feedURL != "" {
					cfg.Ingest.FeedURL = feedURL
				}
				logger, err := commandLogger(cfg, logLevel)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				ingester := ingest.New(cfg, items,
					ingest.WithLogger(logging.NewComponentLogger(logger, "ingest")),
					ingest.WithNotifier(notifications.NewService(cfg)),
				)

				if !watch {
					result, err := ingester.Run(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Found %d items: %d queued, %d already known\n",
						result.Found, result.Inserted, result.Skipped)
					return nil
				}

				signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
				interval := time.Duration(cfg.Ingest.Interval) * time.Second
				scheduler := workflow.NewScheduler("ingest", interval, func(tickCtx context.Context) error {
					_, err := ingester.Run(tickCtx)
					if err != nil {
						logging.WarnWithContext(logger, "ingest failed", "ingest_failed",
							logging.String("feed", ingester.FeedURL()),
							logging.String(logging.FieldImpact, "feed retried on next interval"),
							logging.Error(err),
						)
					}
					return err
				}, logger)
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s every %s\n", ingester.FeedURL(), scheduler.Interval())
				return scheduler.Run(signalCtx)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep scraping every ingest.interval seconds")
	cmd.Flags().StringVar(&feedURL, "feed", "", "Override ingest.feed_url")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}
