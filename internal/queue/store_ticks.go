package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// RecordTick stores the latest tick summary for a stage, replacing the previous one.
func (s *Store) RecordTick(ctx context.Context, record TickRecord) error {
	if record.Stage == "" {
		return fmt.Errorf("record tick: stage is empty")
	}
	if record.FinishedAt.IsZero() {
		record.FinishedAt = time.Now()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.FinishedAt
	}
	_, err := s.exec(ctx, sq.Insert(ticksTable).
		Columns("stage", "correlation_id", "started_at", "finished_at", "selected", "advanced", "reused", "raced", "failed", "error").
		Values(
			record.Stage,
			nullableString(record.CorrelationID),
			formatTime(record.StartedAt),
			formatTime(record.FinishedAt),
			record.Selected,
			record.Advanced,
			record.Reused,
			record.Raced,
			record.Failed,
			nullableString(TruncateError(record.Error)),
		).
		Suffix(`ON CONFLICT(stage) DO UPDATE SET
            correlation_id = excluded.correlation_id,
            started_at = excluded.started_at,
            finished_at = excluded.finished_at,
            selected = excluded.selected,
            advanced = excluded.advanced,
            reused = excluded.reused,
            raced = excluded.raced,
            failed = excluded.failed,
            error = excluded.error`))
	if err != nil {
		return Unavailable("record tick", err)
	}
	return nil
}

// StageTicks returns the latest tick summary of every stage that has run.
func (s *Store) StageTicks(ctx context.Context) ([]TickRecord, error) {
	ctx = ensureContext(ctx)
	query, args, err := sq.Select("stage", "correlation_id", "started_at", "finished_at", "selected", "advanced", "reused", "raced", "failed", "error").
		From(ticksTable).
		OrderBy("stage").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stage ticks query: %w", err)
	}
	var records []TickRecord
	err = retryOnBusy(ctx, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				record      TickRecord
				correlation sql.NullString
				startedRaw  string
				finishedRaw string
				tickErr     sql.NullString
			)
			if err := rows.Scan(&record.Stage, &correlation, &startedRaw, &finishedRaw,
				&record.Selected, &record.Advanced, &record.Reused, &record.Raced, &record.Failed, &tickErr); err != nil {
				return err
			}
			record.CorrelationID = correlation.String
			record.Error = tickErr.String
			if started, err := parseTimeString(startedRaw); err == nil {
				record.StartedAt = started
			}
			if finished, err := parseTimeString(finishedRaw); err == nil {
				record.FinishedAt = finished
			}
			records = append(records, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, Unavailable("stage ticks", err)
	}
	return records, nil
}
