package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"newsflow/internal/config"
	"newsflow/internal/daemon"
	"newsflow/internal/preflight"
	"newsflow/internal/queue"
	"newsflow/internal/queueaccess"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show readiness checks, queue counts, and the last tick of each stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			items, openErr := queueaccess.Open(cmd.Context(), cfg)
			if openErr == nil {
				defer items.Close()
			}

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Store", statusInfo, queueaccess.Describe(cfg), colorize))
			fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, yesNo(cfg.Notifications.NtfyTopic != ""), colorize))
			fmt.Fprintln(out, renderStatusLine("Running stages", statusInfo, runningStages(cfg), colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			var repo queue.Repository
			if openErr == nil {
				repo = items
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg, repo, preflight.Options{Offline: offline}) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if openErr != nil {
				fmt.Fprintln(out, renderStatusLine("Store open", statusError, openErr.Error(), colorize))
				return nil
			}
			fmt.Fprintln(out)

			stats, err := items.Stats(cmd.Context())
			if err != nil {
				return err
			}
			for _, line := range renderSectionHeader("Queue", colorize) {
				fmt.Fprintln(out, line)
			}
			if rows := buildQueueStatusRows(stats); len(rows) > 0 {
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			} else {
				fmt.Fprintln(out, statusIndent+"Queue is empty")
			}
			fmt.Fprintln(out)

			ticks, err := items.StageTicks(cmd.Context())
			if err != nil {
				return err
			}
			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(ticks) == 0 {
				fmt.Fprintln(out, statusIndent+"No ticks recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"Stage", "Last tick", "Selected", "Advanced", "Raced", "Failed", "Error"},
				buildStageTickRows(ticks),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip LLM and Telegram reachability probes")
	return cmd
}

// runningStages lists stages whose lock is currently held by a worker process.
func runningStages(cfg *config.Config) string {
	var held []string
	for _, name := range config.DefaultStages {
		if daemon.StageLocked(cfg.Paths.LogDir, name) {
			held = append(held, name)
		}
	}
	if len(held) == 0 {
		return "none"
	}
	return fmt.Sprint(held)
}

func buildStageTickRows(ticks []queue.TickRecord) [][]string {
	rows := make([][]string, 0, len(ticks))
	for _, tick := range ticks {
		rows = append(rows, []string{
			tick.Stage,
			formatTickTime(tick.FinishedAt),
			strconv.Itoa(tick.Selected),
			strconv.Itoa(tick.Advanced),
			strconv.Itoa(tick.Raced),
			strconv.Itoa(tick.Failed),
			truncate(tick.Error, 40),
		})
	}
	return rows
}

func formatTickTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
