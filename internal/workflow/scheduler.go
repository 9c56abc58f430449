package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsflow/internal/logging"
)

// TickFunc performs one unit of periodic work.
type TickFunc func(ctx context.Context) error

// Scheduler drives a TickFunc on a fixed interval.
type Scheduler struct {
	name     string
	interval time.Duration
	tick     TickFunc
	logger   *slog.Logger
}

// NewScheduler builds a scheduler. A non-positive interval falls back to one minute.
func NewScheduler(name string, interval time.Duration, tick TickFunc, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		tick:     tick,
		logger:   logger.With(logging.String(logging.FieldStage, name)),
	}
}

// Interval returns the configured period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks until ctx is cancelled and then returns nil. Tick errors are
// logged and the next tick proceeds on schedule.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.tick == nil {
		return errors.New("scheduler has no tick function")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			logging.ErrorWithContext(s.logger, "tick panicked", "tick_panic",
				logging.Alert("tick_panic"),
				logging.String("panic", fmt.Sprint(p)),
				logging.String(logging.FieldErrorHint, "the stage keeps running; report the panic with its log"),
			)
		}
	}()
	if err := s.tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("tick returned error", logging.Error(err))
	}
}
