package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
)

// Insert adds an item unless an item with the same id exists. It reports
// whether a row was created.
func (s *Store) Insert(ctx context.Context, item *Item) (bool, error) {
	if err := ValidateNewItem(item); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	res, err := s.exec(ctx, sq.Insert(newsTable).
		Columns("id", "title", "source_url", "published_at", "status", "created_at", "updated_at", "attempts").
		Values(item.ID, item.Title, item.SourceURL, formatTime(item.PublishedAt), string(item.Status), formatTime(now), formatTime(now), 0).
		Suffix("ON CONFLICT(id) DO NOTHING"))
	if err != nil {
		return false, Unavailable("insert item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, Unavailable("insert rows affected", err)
	}
	return affected > 0, nil
}

// ValidateNewItem checks the fields every backend requires and defaults the
// status to new.
func ValidateNewItem(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidItem)
	}
	if strings.TrimSpace(item.SourceURL) == "" {
		return fmt.Errorf("%w: source_url is empty", ErrInvalidItem)
	}
	if item.Status == "" {
		item.Status = StatusNew
	}
	if !item.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidItem, item.Status)
	}
	return nil
}

// GetByID fetches an item by identifier. It returns nil, nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	items, err := s.queryItems(ctx, sq.Select(itemColumns...).From(newsTable).Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return nil, Unavailable("get item", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// SelectByStatus returns all items in status in insertion order.
func (s *Store) SelectByStatus(ctx context.Context, status Status) ([]*Item, error) {
	items, err := s.queryItems(ctx, sq.Select(itemColumns...).
		From(newsTable).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("rowid"))
	if err != nil {
		return nil, Unavailable("select by status", err)
	}
	return items, nil
}

// List returns items filtered by status set (or all items when none is given).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	builder := sq.Select(itemColumns...).From(newsTable).OrderBy("rowid")
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		builder = builder.Where(sq.Eq{"status": values})
	}
	items, err := s.queryItems(ctx, builder)
	if err != nil {
		return nil, Unavailable("list items", err)
	}
	return items, nil
}

// UpdateStatus performs the compare-and-swap that advances an item. The
// transition is checked before the database is touched; a false result means
// the row no longer holds expected (another worker advanced it, or it does not
// exist).
func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next Status) (bool, error) {
	if err := CheckTransition(expected, next); err != nil {
		return false, err
	}
	res, err := s.exec(ctx, sq.Update(newsTable).
		Set("status", string(next)).
		Set("updated_at", formatTime(time.Now())).
		Set("attempts", 0).
		Set("last_error", nil).
		Where(sq.Eq{"id": id, "status": string(expected)}))
	if err != nil {
		return false, Unavailable("update status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, Unavailable("update status rows affected", err)
	}
	return affected == 1, nil
}

// RecordFailure increments the attempt counter and stores message, but only
// while the item still holds status so a stale failure cannot annotate an
// item another worker already advanced.
func (s *Store) RecordFailure(ctx context.Context, id string, status Status, message string) error {
	_, err := s.exec(ctx, sq.Update(newsTable).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", nullableString(TruncateError(message))).
		Set("updated_at", formatTime(time.Now())).
		Where(sq.Eq{"id": id, "status": string(status)}))
	if err != nil {
		return Unavailable("record failure", err)
	}
	return nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	query, args, err := sq.Select("status", "COUNT(1)").From(newsTable).GroupBy("status").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}
	stats := make(map[Status]int)
	err = retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			stats[Status(status)] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, Unavailable("stats", err)
	}
	return stats, nil
}

const maxErrorLength = 2000

// TruncateError trims message to the stored last_error limit in bytes without
// splitting a UTF-8 sequence.
func TruncateError(message string) string {
	message = strings.TrimSpace(message)
	if len(message) <= maxErrorLength {
		return message
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
