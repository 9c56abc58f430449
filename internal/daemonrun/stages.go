package daemonrun

import (
	"fmt"
	"log/slog"
	"strings"

	"newsflow/internal/config"
	"newsflow/internal/download"
	"newsflow/internal/extract"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/pipeline"
	"newsflow/internal/publish"
	"newsflow/internal/queue"
	"newsflow/internal/stage"
	"newsflow/internal/translate"
)

// ResolveStages maps stage names (status values or display names, any case)
// to statuses in pipeline order. Empty input selects workflow.stages.
func ResolveStages(cfg *config.Config, names []string) ([]queue.Status, error) {
	if len(names) == 0 {
		names = cfg.Workflow.Stages
	}
	if len(names) == 0 {
		names = config.DefaultStages
	}
	selected := make(map[queue.Status]struct{}, len(names))
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok || status == queue.StatusNew {
				return nil, fmt.Errorf("unknown stage %q (expected one of %s)", part, strings.Join(config.DefaultStages, ", "))
			}
			selected[status] = struct{}{}
		}
	}
	var out []queue.Status
	for _, status := range queue.AllStatuses() {
		if _, ok := selected[status]; ok {
			out = append(out, status)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no stages selected")
	}
	return out, nil
}

// NewHandler builds the production transform producing status to.
func NewHandler(cfg *config.Config, to queue.Status, logger *slog.Logger, notifier notifications.Service) (stage.Handler, error) {
	if err := cfg.ValidateStage(string(to)); err != nil {
		return nil, err
	}
	switch to {
	case queue.StatusDownloaded:
		return download.New(cfg.Fetch, download.WithLogger(logger)), nil
	case queue.StatusExtracted:
		return extract.New(), nil
	case queue.StatusTranslated:
		return translate.NewFromConfig(cfg.LLM, logger), nil
	case queue.StatusPublished:
		return publish.NewFromConfig(cfg.Telegram, publish.WithLogger(logger), publish.WithNotifier(notifier)), nil
	default:
		return nil, fmt.Errorf("no transform produces status %q", to)
	}
}

// BuildDriver validates the selected stages and wires their transforms.
func BuildDriver(cfg *config.Config, statuses []queue.Status, logger *slog.Logger, notifier notifications.Service) (*pipeline.Driver, error) {
	stages := make([]pipeline.Stage, 0, len(statuses))
	for _, status := range statuses {
		edge, err := pipeline.EdgeFor(status)
		if err != nil {
			return nil, err
		}
		stageLogger := logging.ForStage(logger, cfg, string(status))
		handler, err := NewHandler(cfg, status, stageLogger, notifier)
		if err != nil {
			return nil, err
		}
		stages = append(stages, pipeline.Stage{Edge: edge, Handler: handler})
	}
	return pipeline.NewDriver(stages...)
}

// BuildRunners creates one runner per driver stage with per-stage log levels.
func BuildRunners(cfg *config.Config, driver *pipeline.Driver, items queue.Repository, store pipeline.ArtifactStore, logger *slog.Logger, notifier notifications.Service) []*pipeline.Runner {
	var runners []*pipeline.Runner
	for _, stg := range driver.Stages() {
		runners = append(runners, pipeline.NewRunner(stg.Edge, stg.Handler, items, store,
			pipeline.WithLogger(logging.ForStage(logger, cfg, string(stg.Edge.To))),
			pipeline.WithNotifier(notifier),
			pipeline.WithTransformTimeout(cfg.TransformTimeout()),
			pipeline.WithWorkers(cfg.Workflow.Workers),
		))
	}
	return runners
}
