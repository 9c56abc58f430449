package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"newsflow/internal/config"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/queue"
	"newsflow/internal/queueaccess"
	"newsflow/internal/workflow"
)

// ErrStageLocked reports that another process already runs one of the stages.
var ErrStageLocked = errors.New("stage already running")

// Daemon coordinates stage workers and enforces one instance per stage per host.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	items    queue.Repository
	workflow *workflow.Manager
	notifier notifications.Service
	stages   []string
	locks    []*flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running   bool
	Workflow  workflow.StatusSummary
	Store     string
	LockFiles []string
}

// LockPath returns the lock file guarding stage.
func LockPath(logDir, stage string) string {
	return filepath.Join(logDir, fmt.Sprintf("newsflow-%s.lock", strings.ToLower(strings.TrimSpace(stage))))
}

// New constructs a daemon for the named stages.
func New(cfg *config.Config, items queue.Repository, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service, stages []string) (*Daemon, error) {
	if cfg == nil || items == nil || wf == nil {
		return nil, errors.New("daemon requires config, item store, and workflow manager")
	}
	if len(stages) == 0 {
		return nil, errors.New("daemon requires at least one stage")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		items:    items,
		workflow: wf,
		notifier: notifier,
		stages:   append([]string(nil), stages...),
	}
	for _, stage := range stages {
		d.locks = append(d.locks, flock.New(LockPath(cfg.Paths.LogDir, stage)))
	}
	return d, nil
}

// Start acquires every stage lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	for i, lock := range d.locks {
		ok, err := lock.TryLock()
		if err != nil {
			d.releaseLocks(i)
			return fmt.Errorf("acquire lock %s: %w", lock.Path(), err)
		}
		if !ok {
			d.releaseLocks(i)
			return fmt.Errorf("%w: %s (lock %s held by another process)", ErrStageLocked, d.stages[i], lock.Path())
		}
	}

	if err := d.workflow.Start(ctx); err != nil {
		d.releaseLocks(len(d.locks))
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("newsflow daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("stages", strings.Join(d.stages, ",")),
	)
	return nil
}

// Stop stops stage workers and releases the locks.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.workflow.Stop()
	d.releaseLocks(len(d.locks))
	d.logger.Info("newsflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and closes the item store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.items.Close()
}

func (d *Daemon) releaseLocks(n int) {
	for _, lock := range d.locks[:n] {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release stage lock", "lock_release_failed",
				logging.String("lock", lock.Path()),
				logging.String(logging.FieldErrorHint, "remove the lock file if no worker is running"),
				logging.String(logging.FieldImpact, "next start may report the stage as running"),
				logging.Error(err),
			)
		}
	}
}

// TestNotification sends a test event through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	return notifications.SendTest(ctx, d.cfg, d.notifier)
}

// LockStage takes the single-instance lock for stage outside a daemon, for
// one-shot ticks. The caller releases it with Unlock.
func LockStage(logDir, stage string) (*flock.Flock, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(LockPath(logDir, stage))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (lock %s held by another process)", ErrStageLocked, stage, lock.Path())
	}
	return lock, nil
}

// StageLocked reports whether a worker process currently holds the lock for stage.
func StageLocked(logDir, stage string) bool {
	lock := flock.New(LockPath(logDir, stage))
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:  d.running.Load(),
		Workflow: d.workflow.Status(ctx),
		Store:    queueaccess.Describe(d.cfg),
	}
	for _, lock := range d.locks {
		status.LockFiles = append(status.LockFiles, lock.Path())
	}
	return status
}
