package mongostore_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"newsflow/internal/config"
	"newsflow/internal/queue"
	"newsflow/internal/queue/mongostore"
)

// openTestStore connects to NEWSFLOW_TEST_MONGO_URI using a throwaway database.
func openTestStore(t *testing.T) *mongostore.Store {
	t.Helper()
	uri := os.Getenv("NEWSFLOW_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("NEWSFLOW_TEST_MONGO_URI not set")
	}
	cfg := config.Default()
	cfg.Store.Driver = config.StoreDriverMongo
	cfg.Store.MongoURI = uri
	cfg.Store.MongoDatabase = "newsflow_test_" + uuid.NewString()[:8]

	store, err := mongostore.Open(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMongoCompareAndSwap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	item := queue.NewItem("Race", "https://news.example.com/race", time.Now())
	if created, err := store.Insert(ctx, item); err != nil || !created {
		t.Fatalf("Insert = %v, %v", created, err)
	}
	if created, err := store.Insert(ctx, item); err != nil || created {
		t.Fatalf("duplicate Insert = %v, %v", created, err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.UpdateStatus(ctx, item.ID, queue.StatusNew, queue.StatusDownloaded)
			if err != nil {
				t.Errorf("UpdateStatus: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected one winner, got %d", wins.Load())
	}

	items, err := store.SelectByStatus(ctx, queue.StatusDownloaded)
	if err != nil || len(items) != 1 {
		t.Fatalf("SelectByStatus = %d items, %v", len(items), err)
	}
	stats, err := store.Stats(ctx)
	if err != nil || stats[queue.StatusDownloaded] != 1 {
		t.Fatalf("Stats = %v, %v", stats, err)
	}
}
