package pipeline

import (
	"fmt"
	"time"

	"newsflow/internal/queue"
)

// TickResult summarizes one tick of one runner.
type TickResult struct {
	Stage         string
	CorrelationID string
	StartedAt     time.Time
	FinishedAt    time.Time
	// Selected is the number of items found in the selector status.
	Selected int
	// Advanced counts items this runner moved to the target status.
	Advanced int
	// Reused counts advanced items whose artifact already existed.
	Reused int
	// Raced counts items another writer advanced first.
	Raced int
	// Failed counts items left in the selector status because of an error.
	Failed int
}

// Duration is the wall time of the tick.
func (r TickResult) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String renders a one-line summary for CLI output.
func (r TickResult) String() string {
	return fmt.Sprintf("%s: selected=%d advanced=%d reused=%d raced=%d failed=%d",
		r.Stage, r.Selected, r.Advanced, r.Reused, r.Raced, r.Failed)
}

// Record converts the result into the persisted per-stage tick summary.
func (r TickResult) Record(tickErr error) queue.TickRecord {
	record := queue.TickRecord{
		Stage:         r.Stage,
		CorrelationID: r.CorrelationID,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Selected:      r.Selected,
		Advanced:      r.Advanced,
		Reused:        r.Reused,
		Raced:         r.Raced,
		Failed:        r.Failed,
	}
	if tickErr != nil {
		record.Error = tickErr.Error()
	}
	return record
}

type outcome int

const (
	outcomeAdvanced outcome = iota
	outcomeReused
	outcomeRaced
	outcomeFailed
	outcomeInterrupted
)

func (r *TickResult) add(o outcome) {
	switch o {
	case outcomeAdvanced:
		r.Advanced++
	case outcomeReused:
		r.Advanced++
		r.Reused++
	case outcomeRaced:
		r.Raced++
	case outcomeFailed:
		r.Failed++
	}
}
