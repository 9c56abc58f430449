package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"newsflow/internal/notifications"
	"newsflow/internal/pipeline"
	"newsflow/internal/queue"
	"newsflow/internal/stage"
	"newsflow/internal/testsupport"
	"newsflow/internal/workflow"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) snapshot() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func runnerFor(t *testing.T, to queue.Status, handler stage.Handler, items queue.Repository, store pipeline.ArtifactStore) *pipeline.Runner {
	t.Helper()
	edge, err := pipeline.EdgeFor(to)
	if err != nil {
		t.Fatalf("EdgeFor: %v", err)
	}
	return pipeline.NewRunner(edge, handler, items, store)
}

func TestSlowStageDoesNotBlockOthers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	items := testsupport.MustOpenStore(t, cfg)
	arts := testsupport.MustOpenArtifacts(t, cfg)

	testsupport.SeedItem(t, items, "slow", queue.StatusNew)
	testsupport.SeedItem(t, items, "fast", queue.StatusDownloaded)
	if err := arts.Write("fast", "Downloaded", []byte("<html></html>")); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	release := make(chan struct{})
	blocked := stage.Func(func(ctx context.Context, item *queue.Item, _ []byte) ([]byte, error) {
		select {
		case <-release:
			return []byte("done"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	quick := stage.Func(func(_ context.Context, _ *queue.Item, prior []byte) ([]byte, error) {
		return prior, nil
	})

	manager := workflow.NewManager(cfg, items, []*pipeline.Runner{
		runnerFor(t, queue.StatusDownloaded, blocked, items, arts),
		runnerFor(t, queue.StatusExtracted, quick, items, arts),
	}, nil, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 3*time.Second, func() bool {
		item, err := items.GetByID(context.Background(), "fast")
		return err == nil && item != nil && item.Status == queue.StatusExtracted
	})
	if status := testsupport.MustStatus(t, items, "slow"); status != queue.StatusNew {
		t.Fatalf("slow item should still be new, got %s", status)
	}

	close(release)
	waitFor(t, 3*time.Second, func() bool {
		item, err := items.GetByID(context.Background(), "slow")
		return err == nil && item != nil && item.Status == queue.StatusDownloaded
	})
}

func TestManagerStatusAndLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	items := testsupport.MustOpenStore(t, cfg)
	arts := testsupport.MustOpenArtifacts(t, cfg)
	testsupport.SeedItem(t, items, "a", queue.StatusNew)

	handler := stage.Func(func(_ context.Context, item *queue.Item, _ []byte) ([]byte, error) {
		return []byte(item.ID), nil
	})
	manager := workflow.NewManager(cfg, items, []*pipeline.Runner{
		runnerFor(t, queue.StatusDownloaded, handler, items, arts),
	}, nil, nil)

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	waitFor(t, 3*time.Second, func() bool {
		summary := manager.Status(context.Background())
		return len(summary.Stages) == 1 && summary.Stages[0].Ticks >= 1
	})
	summary := manager.Status(context.Background())
	if !summary.Running {
		t.Fatal("expected running manager")
	}
	got := summary.Stages[0]
	if got.Stage != "Downloaded" || got.From != queue.StatusNew || got.To != queue.StatusDownloaded {
		t.Fatalf("unexpected stage status %+v", got)
	}
	if got.LastResult.Advanced != 1 || got.LastError != "" || !got.Health.Ready {
		t.Fatalf("unexpected last tick %+v", got)
	}
	if summary.QueueStats[queue.StatusDownloaded] != 1 {
		t.Fatalf("unexpected queue stats %v", summary.QueueStats)
	}

	manager.Stop()
	manager.Stop()
	if manager.Status(context.Background()).Running {
		t.Fatal("expected stopped manager")
	}
}

func TestManagerNotifiesOncePerFailureStreak(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	items, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = items.Close()
	arts := testsupport.MustOpenArtifacts(t, cfg)

	notifier := &recordingNotifier{}
	handler := stage.Func(func(context.Context, *queue.Item, []byte) ([]byte, error) { return []byte("x"), nil })
	manager := workflow.NewManager(cfg, nil, []*pipeline.Runner{
		runnerFor(t, queue.StatusDownloaded, handler, items, arts),
	}, nil, notifier)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return manager.Status(context.Background()).Stages[0].Ticks >= 2
	})
	manager.Stop()

	events := notifier.snapshot()
	if len(events) != 1 || events[0] != notifications.EventStageError {
		t.Fatalf("expected a single stage error notification, got %v", events)
	}
	if manager.Status(context.Background()).Stages[0].LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestManagerRequiresRunners(t *testing.T) {
	manager := workflow.NewManager(testsupport.NewConfig(t), nil, nil, nil, nil)
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected error without runners")
	}
}
