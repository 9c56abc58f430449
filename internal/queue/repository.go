package queue

import "context"

// Repository is the item store contract shared by the SQLite and MongoDB
// backends. UpdateStatus is the only cross-worker synchronization point.
type Repository interface {
	// SelectByStatus returns every item currently in status, oldest first.
	SelectByStatus(ctx context.Context, status Status) ([]*Item, error)
	// UpdateStatus moves id from expected to next only if it still holds
	// expected. It returns false when another writer got there first.
	UpdateStatus(ctx context.Context, id string, expected, next Status) (bool, error)
	// Insert adds an item unless its id already exists.
	Insert(ctx context.Context, item *Item) (bool, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, statuses ...Status) ([]*Item, error)
	Stats(ctx context.Context) (map[Status]int, error)
	// RecordFailure bumps attempts and stores message while id still holds status.
	RecordFailure(ctx context.Context, id string, status Status, message string) error
	RecordTick(ctx context.Context, record TickRecord) error
	StageTicks(ctx context.Context) ([]TickRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ Repository = (*Store)(nil)
