// Package daemonrun assembles and runs the long-lived stage worker process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"newsflow/internal/artifacts"
	"newsflow/internal/config"
	"newsflow/internal/daemon"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/queueaccess"
	"newsflow/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	Stages      []string
	LogLevel    string
	Development bool
}

// Run starts the requested stage workers and blocks until SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	statuses, err := ResolveStages(cfg, opts.Stages)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	logPath := logging.SessionLogPath(cfg.Paths.LogDir, "newsflow", started)
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            logging.MinimumLevel(cfg.Logging.Level, cfg.Logging.StageOverrides),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	sessionID := uuid.NewString()
	logger = logger.With(logging.String("session_id", sessionID))
	logging.PruneSessionLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	items, err := queueaccess.Open(signalCtx, cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open item store", "store_open_failed",
			logging.String(logging.FieldErrorHint, "check paths.database_path or store.mongo_uri"),
			logging.Error(err),
		)
		return err
	}
	store, err := artifacts.Open(cfg.Paths.ArtifactDir)
	if err != nil {
		_ = items.Close()
		return fmt.Errorf("open artifact store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	driver, err := BuildDriver(cfg, statuses, logger, notifier)
	if err != nil {
		_ = items.Close()
		return err
	}
	runners := BuildRunners(cfg, driver, items, store, logger, notifier)
	manager := workflow.NewManager(cfg, items, runners, logger, notifier)

	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	d, err := daemon.New(cfg, items, logger, manager, notifier, names)
	if err != nil {
		_ = items.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	logger.Info("newsflow starting",
		logging.String(logging.FieldEventType, "process_start"),
		logging.String("stages", strings.Join(names, ",")),
		logging.String("store", queueaccess.Describe(cfg)),
		logging.String("artifact_dir", store.Dir()),
		logging.Duration("tick_interval", cfg.TickInterval()),
		logging.Duration("transform_timeout", cfg.TransformTimeout()),
		logging.Int("workers", cfg.Workflow.Workers),
		logging.String("log_path", logPath),
	)
	logCredentialSnapshot(logger, cfg)

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	logStageHealth(signalCtx, logger, d)

	<-signalCtx.Done()
	logger.Info("newsflow shutting down", logging.String(logging.FieldEventType, "process_stop"))
	return nil
}

// logStageHealth reports each stage's collaborator health once at startup.
// Unready stages still run; their items fail and retry until the collaborator recovers.
func logStageHealth(ctx context.Context, logger *slog.Logger, d *daemon.Daemon) {
	healthCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	status := d.Status(healthCtx)
	for _, stg := range status.Workflow.Stages {
		if stg.Health.Ready {
			logger.Info("stage ready",
				logging.String(logging.FieldEventType, "stage_health"),
				logging.String(logging.FieldStage, stg.Stage),
			)
			continue
		}
		logging.WarnWithContext(logger, "stage collaborator unhealthy", "stage_health",
			logging.String(logging.FieldStage, stg.Stage),
			logging.String("detail", stg.Health.Detail),
			logging.String(logging.FieldErrorHint, "run `newsflow status` for preflight details"),
			logging.String(logging.FieldImpact, "items for this stage fail and retry each tick"),
		)
	}
}

func logCredentialSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("credential snapshot",
		logging.String(logging.FieldEventType, "credential_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("telegram_token_present", strings.TrimSpace(cfg.Telegram.BotToken) != ""),
		logging.Bool("telegram_chat_present", strings.TrimSpace(cfg.Telegram.ChatID) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
