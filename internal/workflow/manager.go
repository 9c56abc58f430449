package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newsflow/internal/config"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/pipeline"
	"newsflow/internal/queue"
	"newsflow/internal/stage"
)

// Manager runs one scheduler per stage runner.
type Manager struct {
	cfg      *config.Config
	items    queue.Repository
	runners  []*pipeline.Runner
	logger   *slog.Logger
	notifier notifications.Service
	interval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	states  map[string]*stageState
}

type stageState struct {
	ticks      int
	lastResult pipeline.TickResult
	lastErr    error
	failing    bool
}

// StageStatus is the in-memory view of one stage's recent activity.
type StageStatus struct {
	Stage      string
	From       queue.Status
	To         queue.Status
	Ticks      int
	LastResult pipeline.TickResult
	LastError  string
	Health     stage.Health
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Stages     []StageStatus
	QueueStats map[queue.Status]int
}

// NewManager constructs a manager for the given runners.
func NewManager(cfg *config.Config, items queue.Repository, runners []*pipeline.Runner, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	states := make(map[string]*stageState, len(runners))
	for _, runner := range runners {
		states[runner.Edge().Stage] = &stageState{}
	}
	return &Manager{
		cfg:      cfg,
		items:    items,
		runners:  runners,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		notifier: notifier,
		interval: cfg.TickInterval(),
		states:   states,
	}
}

// Start launches every stage in its own goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.runners) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(m.runners))
	m.mu.Unlock()

	for _, runner := range m.runners {
		runner := runner
		scheduler := NewScheduler(runner.Edge().Stage, m.interval, func(ctx context.Context) error {
			return m.tick(ctx, runner)
		}, m.logger)
		go func() {
			defer m.wg.Done()
			m.logger.Info("stage started",
				logging.String(logging.FieldEventType, "stage_start"),
				logging.String(logging.FieldStage, runner.Edge().Stage),
				logging.String("selector_status", string(runner.Edge().From)),
				logging.String("target_status", string(runner.Edge().To)),
				logging.Duration("tick_interval", scheduler.Interval()),
			)
			_ = scheduler.Run(runCtx)
			m.logger.Info("stage stopped",
				logging.String(logging.FieldEventType, "stage_stop"),
				logging.String(logging.FieldStage, runner.Edge().Stage),
			)
		}()
	}
	return nil
}

// Stop cancels every stage and waits for in-flight ticks to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wait blocks until every stage goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) tick(ctx context.Context, runner *pipeline.Runner) error {
	result, err := runner.Tick(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}
	name := runner.Edge().Stage

	m.mu.Lock()
	state := m.states[name]
	state.ticks++
	state.lastResult = result
	state.lastErr = err
	firstFailure := err != nil && !state.failing
	recovered := err == nil && state.failing
	state.failing = err != nil
	m.mu.Unlock()

	switch {
	case firstFailure:
		if notifyErr := m.notifier.Publish(ctx, notifications.EventStageError, notifications.Payload{
			"stage": name,
			"error": err,
		}); notifyErr != nil {
			m.logger.Debug("stage error notification failed", logging.Error(notifyErr))
		}
	case recovered:
		m.logger.Info("stage recovered",
			logging.String(logging.FieldEventType, "stage_recovered"),
			logging.String(logging.FieldStage, name),
		)
	}
	return err
}

// Status returns the latest in-memory state of every stage plus queue counts.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	for _, runner := range m.runners {
		edge := runner.Edge()
		state := m.states[edge.Stage]
		entry := StageStatus{
			Stage:      edge.Stage,
			From:       edge.From,
			To:         edge.To,
			Ticks:      state.ticks,
			LastResult: state.lastResult,
		}
		if state.lastErr != nil {
			entry.LastError = state.lastErr.Error()
		}
		summary.Stages = append(summary.Stages, entry)
	}
	m.mu.RUnlock()

	for i, runner := range m.runners {
		if handler := runner.Handler(); handler != nil {
			summary.Stages[i].Health = handler.HealthCheck(ctx)
		}
	}
	if m.items != nil {
		stats, err := m.items.Stats(ctx)
		if err != nil {
			m.logger.Warn("failed to read queue stats", logging.Error(err))
		}
		summary.QueueStats = stats
	}
	return summary
}
