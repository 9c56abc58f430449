package testsupport

import (
	"context"
	"testing"
	"time"

	"newsflow/internal/artifacts"
	"newsflow/internal/config"
	"newsflow/internal/queue"
)

// MustOpenStore opens the SQLite item store for the provided config and closes
// it when the test completes.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenArtifacts opens the artifact store rooted at paths.artifact_dir.
func MustOpenArtifacts(t testing.TB, cfg *config.Config) *artifacts.Store {
	t.Helper()

	store, err := artifacts.Open(cfg.Paths.ArtifactDir)
	if err != nil {
		t.Fatalf("artifacts.Open: %v", err)
	}
	return store
}

// SeedItem inserts an item with the given id and status.
func SeedItem(t testing.TB, store queue.Repository, id string, status queue.Status) *queue.Item {
	t.Helper()

	item := &queue.Item{
		ID:          id,
		Title:       "Item " + id,
		SourceURL:   "https://news.example.com/articles/" + id,
		PublishedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:      status,
	}
	created, err := store.Insert(context.Background(), item)
	if err != nil {
		t.Fatalf("seed item %s: %v", id, err)
	}
	if !created {
		t.Fatalf("seed item %s: already exists", id)
	}
	return item
}

// MustStatus returns the current status of id, failing the test when the item is missing.
func MustStatus(t testing.TB, store queue.Repository, id string) queue.Status {
	t.Helper()

	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	if item == nil {
		t.Fatalf("item %s not found", id)
	}
	return item.Status
}
