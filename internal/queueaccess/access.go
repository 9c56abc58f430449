// Package queueaccess opens the item repository selected by store.driver.
package queueaccess

import (
	"context"
	"fmt"

	"newsflow/internal/config"
	"newsflow/internal/queue"
	"newsflow/internal/queue/mongostore"
)

// Open returns the configured repository. Callers own Close.
func Open(ctx context.Context, cfg *config.Config) (queue.Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open item store: config is nil")
	}
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite, "":
		store, err := queue.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite item store: %w", err)
		}
		return store, nil
	case config.StoreDriverMongo:
		store, err := mongostore.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open mongo item store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("open item store: unsupported driver %q", cfg.Store.Driver)
	}
}

// Describe returns a human-readable location for status output.
func Describe(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	if cfg.Store.Driver == config.StoreDriverMongo {
		return fmt.Sprintf("mongo %s/%s", cfg.Store.MongoDatabase, cfg.Store.MongoCollection)
	}
	return cfg.Paths.DatabasePath
}
