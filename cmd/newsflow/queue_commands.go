package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newsflow/internal/artifacts"
	"newsflow/internal/config"
	"newsflow/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and seed the item store",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show item counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, items queue.Repository) error {
				stats, err := items.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, items queue.Repository) error {
				list, err := items.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Published", "Attempts", "Last error"},
					buildQueueListRows(list),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id|url>",
		Short: "Show one item and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := resolveItemID(args[0])
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, items queue.Repository) error {
				item, err := items.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %s not found", id)
				}
				store, err := artifacts.Open(cfg.Paths.ArtifactDir)
				if err != nil {
					return fmt.Errorf("open artifact store: %w", err)
				}
				entries, err := store.List(item.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, itemView{Item: item, Artifacts: entries})
				}
				renderItem(cmd, item, entries)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var sourceURL string
	var title string
	var published string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert an item in the new status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSourceURL(sourceURL); err != nil {
				return err
			}
			publishedAt := time.Now()
			if strings.TrimSpace(published) != "" {
				parsed, err := parsePublished(published)
				if err != nil {
					return err
				}
				publishedAt = parsed
			}
			item := queue.NewItem(title, sourceURL, publishedAt)
			if item.Title == "" {
				item.Title = item.SourceURL
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, items queue.Repository) error {
				inserted, err := items.Insert(cmd.Context(), item)
				if err != nil {
					return err
				}
				if !inserted {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %s already exists\n", item.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item %s\n", item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Article URL")
	cmd.Flags().StringVar(&title, "title", "", "Headline (defaults to the URL)")
	cmd.Flags().StringVar(&published, "published", "", "Publication time (RFC3339 or YYYY-MM-DD HH:MM:SS, default now)")
	return cmd
}

type itemView struct {
	Item      *queue.Item       `json:"item"`
	Artifacts []artifacts.Entry `json:"artifacts"`
}

func renderItem(cmd *cobra.Command, item *queue.Item, entries []artifacts.Entry) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:         %s\n", item.ID)
	fmt.Fprintf(out, "Title:      %s\n", item.Title)
	fmt.Fprintf(out, "URL:        %s\n", item.SourceURL)
	fmt.Fprintf(out, "Status:     %s\n", item.Status)
	fmt.Fprintf(out, "Published:  %s\n", formatTime(item.PublishedAt))
	fmt.Fprintf(out, "Created:    %s\n", formatTime(item.CreatedAt))
	fmt.Fprintf(out, "Updated:    %s\n", formatTime(item.UpdatedAt))
	fmt.Fprintf(out, "Attempts:   %d\n", item.Attempts)
	if item.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", item.LastError)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "Artifacts:  none")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{entry.Stage, strconv.FormatInt(entry.Size, 10), entry.Path})
	}
	fmt.Fprint(out, renderTable([]string{"Stage", "Bytes", "Path"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
}

func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		count := stats[status]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			truncate(item.Title, 60),
			string(item.Status),
			formatTime(item.PublishedAt),
			strconv.Itoa(item.Attempts),
			truncate(item.LastError, 40),
		})
	}
	return rows
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

// resolveItemID accepts either an item id or the article URL it was derived from.
func resolveItemID(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return queue.ItemIDForURL(arg)
	}
	return strings.ToLower(arg)
}

func validateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("--url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid --url %q: expected an absolute http(s) URL", raw)
	}
	return nil
}

var publishedLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parsePublished(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range publishedLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --published %q: expected RFC3339, YYYY-MM-DD HH:MM:SS, or YYYY-MM-DD", value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
