package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsflow/internal/artifacts"
	"newsflow/internal/logging"
	"newsflow/internal/notifications"
	"newsflow/internal/queue"
	"newsflow/internal/services"
	"newsflow/internal/stage"
)

// ArtifactStore is the slice of artifacts.Store the runner needs.
type ArtifactStore interface {
	Exists(id, stage string) (bool, error)
	Read(id, stage string) ([]byte, error)
	Write(id, stage string, content []byte) error
}

var _ ArtifactStore = (*artifacts.Store)(nil)

const tickRecordTimeout = 5 * time.Second

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the base logger. The runner adds its own component field.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNotifier routes invariant violations to a notification service.
func WithNotifier(notifier notifications.Service) RunnerOption {
	return func(r *Runner) {
		if notifier != nil {
			r.notifier = notifier
		}
	}
}

// WithTransformTimeout bounds a single transform call. Zero disables the bound.
func WithTransformTimeout(timeout time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = timeout
	}
}

// WithWorkers sets how many items of one tick are processed at once.
func WithWorkers(workers int) RunnerOption {
	return func(r *Runner) {
		if workers > 0 {
			r.workers = workers
		}
	}
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner executes ticks for one edge.
type Runner struct {
	edge      Edge
	handler   stage.Handler
	items     queue.Repository
	artifacts ArtifactStore
	logger    *slog.Logger
	notifier  notifications.Service
	timeout   time.Duration
	workers   int
	now       func() time.Time
}

// NewRunner builds a runner for edge. The edge is assumed to have been
// validated by a Driver.
func NewRunner(edge Edge, handler stage.Handler, items queue.Repository, store ArtifactStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		edge:      edge,
		handler:   handler,
		items:     items,
		artifacts: store,
		logger:    logging.NewNop(),
		notifier:  notifications.NewNoop(),
		workers:   1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "runner")
	return r
}

// Edge returns the transition this runner performs.
func (r *Runner) Edge() Edge {
	return r.edge
}

// Handler returns the stage transform.
func (r *Runner) Handler() stage.Handler {
	return r.handler
}

// Tick runs one polling cycle. A store failure while selecting aborts the tick
// and is returned; item-level failures are logged, recorded on the item, and
// counted in the result without failing the tick.
func (r *Runner) Tick(ctx context.Context) (TickResult, error) {
	result := TickResult{
		Stage:         r.edge.Stage,
		CorrelationID: uuid.NewString(),
		StartedAt:     r.now(),
	}
	ctx = services.WithStage(ctx, r.edge.Stage)
	ctx = services.WithRequestID(ctx, result.CorrelationID)
	logger := logging.WithContext(ctx, r.logger)

	items, err := r.items.SelectByStatus(ctx, r.edge.From)
	if err != nil {
		result.FinishedAt = r.now()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		logging.WarnWithContext(logger, "item store unavailable, skipping tick", "store_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database path or store connectivity"),
			logging.String(logging.FieldImpact, "no items processed this tick"),
		)
		r.recordTick(ctx, logger, result, err)
		return result, err
	}
	result.Selected = len(items)

	for _, o := range r.processAll(ctx, items) {
		result.add(o)
	}
	result.FinishedAt = r.now()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "tick_completed"),
		logging.Int("selected", result.Selected),
		logging.Int("advanced", result.Advanced),
		logging.Int("reused", result.Reused),
		logging.Int("raced", result.Raced),
		logging.Int("failed", result.Failed),
		logging.Duration("tick_duration", result.Duration()),
	}
	if result.Selected > 0 {
		logger.Info("tick completed", logging.Args(attrs...)...)
	} else {
		logger.Debug("tick completed", logging.Args(attrs...)...)
	}
	r.recordTick(ctx, logger, result, nil)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	return result, nil
}

func (r *Runner) processAll(ctx context.Context, items []*queue.Item) []outcome {
	outcomes := make([]outcome, len(items))
	for i := range outcomes {
		outcomes[i] = outcomeInterrupted
	}

	if r.workers <= 1 || len(items) <= 1 {
		for i, item := range items {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = r.processItem(ctx, item)
		}
		return outcomes
	}

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i, item := range items {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(i int, item *queue.Item) {
				defer wg.Done()
				defer func() { <-sem }()
				outcomes[i] = r.processItem(ctx, item)
			}(i, item)
			continue
		}
		break
	}
	wg.Wait()
	return outcomes
}

func (r *Runner) processItem(ctx context.Context, item *queue.Item) outcome {
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, r.logger)
	started := r.now()

	reused, err := r.artifacts.Exists(item.ID, r.edge.Stage)
	if err != nil {
		return r.fail(ctx, logger, item, fmt.Errorf("%w: %w", ErrArtifactReadFailure,
			services.Wrap(services.ErrTransient, r.edge.Stage, "check existing artifact", "", err)))
	}

	if reused {
		logger.Info("reusing existing artifact",
			logging.String(logging.FieldEventType, "artifact_reused"),
			logging.String("artifact", artifacts.FileName(item.ID, r.edge.Stage)),
		)
	} else {
		prior, err := r.readPrior(item)
		if err != nil {
			if errors.Is(err, artifacts.ErrArtifactMissing) {
				r.invariantViolation(ctx, logger, item, err)
				return outcomeFailed
			}
			return r.fail(ctx, logger, item, err)
		}

		content, err := r.transform(ctx, item, prior)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("transform interrupted by shutdown")
				return outcomeInterrupted
			}
			return r.fail(ctx, logger, item, err)
		}
		if err := r.artifacts.Write(item.ID, r.edge.Stage, content); err != nil {
			return r.fail(ctx, logger, item, fmt.Errorf("%w: %w", ErrArtifactWriteFailure, err))
		}
		logger.Debug("artifact written",
			logging.String("artifact", artifacts.FileName(item.ID, r.edge.Stage)),
			logging.Int("artifact_bytes", len(content)),
		)
	}

	advanced, err := r.items.UpdateStatus(ctx, item.ID, r.edge.From, r.edge.To)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeInterrupted
		}
		logging.WarnWithContext(logger, "status update failed, artifact kept", "status_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "next tick reuses the stored artifact"),
		)
		return outcomeFailed
	}
	if !advanced {
		logger.Info("item already advanced elsewhere",
			logging.String(logging.FieldEventType, "item_raced"),
			logging.String("expected_status", string(r.edge.From)),
		)
		return outcomeRaced
	}

	logger.Info("item advanced",
		logging.String(logging.FieldEventType, "item_advanced"),
		logging.String("from_status", string(r.edge.From)),
		logging.String("to_status", string(r.edge.To)),
		logging.Bool("artifact_reused", reused),
		logging.Duration("item_duration", r.now().Sub(started)),
	)
	if reused {
		return outcomeReused
	}
	return outcomeAdvanced
}

func (r *Runner) readPrior(item *queue.Item) ([]byte, error) {
	prior := r.edge.PriorStage()
	if prior == "" {
		return nil, nil
	}
	return r.artifacts.Read(item.ID, prior)
}

type transformResult struct {
	content []byte
	err     error
}

// transform runs the handler under the configured timeout. A handler that
// ignores its context is abandoned once the deadline passes; its output is
// discarded because only the runner writes artifacts.
func (r *Runner) transform(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error) {
	tctx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	done := make(chan transformResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- transformResult{err: fmt.Errorf("transform panicked: %v", p)}
			}
		}()
		content, err := r.handler.Execute(tctx, item, prior)
		done <- transformResult{content: content, err: err}
	}()

	var res transformResult
	select {
	case res = <-done:
	case <-tctx.Done():
		res = transformResult{err: tctx.Err()}
	}

	if res.err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.err = services.Wrap(services.ErrTimeout, r.edge.Stage, "transform",
				fmt.Sprintf("exceeded %s", r.timeout), res.err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransformFailure, res.err)
	}
	if len(res.content) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrTransformFailure,
			services.Wrap(services.ErrValidation, r.edge.Stage, "transform", "produced an empty artifact", nil))
	}
	return res.content, nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, item *queue.Item, err error) outcome {
	kind := services.FailureKind(err)
	logging.WarnWithContext(logger, "item failed, retrying next tick", "item_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, kind),
		logging.Int("attempts", item.Attempts+1),
		logging.String(logging.FieldErrorHint, failureHint(kind, err)),
	)
	if recErr := r.items.RecordFailure(ctx, item.ID, r.edge.From, err.Error()); recErr != nil {
		logger.Debug("failed to record item failure", logging.Error(recErr))
	}
	return outcomeFailed
}

func (r *Runner) invariantViolation(ctx context.Context, logger *slog.Logger, item *queue.Item, err error) {
	logging.ErrorWithContext(logger, "prior artifact missing for selected item", "invariant_violation",
		logging.Alert("invariant_violation"),
		logging.Error(err),
		logging.String("prior_stage", r.edge.PriorStage()),
		logging.String(logging.FieldErrorHint, "restore the artifact or move the item back manually"),
	)
	if recErr := r.items.RecordFailure(ctx, item.ID, r.edge.From, err.Error()); recErr != nil {
		logger.Debug("failed to record invariant violation", logging.Error(recErr))
	}
	if notifyErr := r.notifier.Publish(ctx, notifications.EventInvariantViolation, notifications.Payload{
		"itemID": item.ID,
		"stage":  r.edge.Stage,
		"error":  err,
	}); notifyErr != nil {
		logger.Debug("invariant notification failed", logging.Error(notifyErr))
	}
}

func (r *Runner) recordTick(ctx context.Context, logger *slog.Logger, result TickResult, tickErr error) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tickRecordTimeout)
	defer cancel()
	if err := r.items.RecordTick(recordCtx, result.Record(tickErr)); err != nil {
		logger.Debug("failed to record tick summary", logging.Error(err))
	}
}

func failureHint(kind string, err error) string {
	switch {
	case errors.Is(err, ErrArtifactReadFailure):
		return "check permissions on the artifact directory"
	case errors.Is(err, ErrArtifactWriteFailure):
		return "check free space and permissions on the artifact directory"
	}
	switch kind {
	case "timeout":
		return "raise workflow.transform_timeout or check the remote service"
	case "configuration":
		return "check credentials and endpoints in the config file"
	case "validation":
		return "inspect the previous stage artifact for this item"
	case "not_found":
		return "the source may have been removed; the item keeps retrying"
	default:
		return "check network connectivity and the remote service"
	}
}
