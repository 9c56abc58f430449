package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"newsflow/internal/notifications"
	"newsflow/internal/pipeline"
	"newsflow/internal/queue"
	"newsflow/internal/testsupport"
)

func TestDownloaderThenExtractorScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := &queue.Item{ID: "42", Title: "Example", SourceURL: "http://example.com/a", Status: queue.StatusNew}
	if _, err := e.store.Insert(ctx, item); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	download := echoHandler("downloaded")
	downloader := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), download, e.store, e.artifacts)
	result, err := downloader.Tick(ctx)
	if err != nil {
		t.Fatalf("downloader Tick: %v", err)
	}
	if result.Selected != 1 || result.Advanced != 1 || result.Failed != 0 {
		t.Fatalf("unexpected downloader result %+v", result)
	}
	if ok, _ := e.artifacts.Exists("42", "Downloaded"); !ok {
		t.Fatal("expected Downloaded_42 artifact")
	}
	if status := testsupport.MustStatus(t, e.store, "42"); status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s", status)
	}

	extractor := pipeline.NewRunner(mustEdge(t, queue.StatusExtracted), echoHandler("extracted"), e.store, e.artifacts)
	if _, err := extractor.Tick(ctx); err != nil {
		t.Fatalf("extractor Tick: %v", err)
	}
	content, err := e.artifacts.Read("42", "Extracted")
	if err != nil {
		t.Fatalf("read Extracted_42: %v", err)
	}
	if string(content) != "extracted:42:downloaded:42:" {
		t.Fatalf("extractor did not receive the downloaded artifact: %q", content)
	}
	if status := testsupport.MustStatus(t, e.store, "42"); status != queue.StatusExtracted {
		t.Fatalf("expected extracted, got %s", status)
	}
}

func TestFailedFetchLeavesItemSelectable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "42", queue.StatusNew)

	failing := &countingHandler{fn: func(context.Context, *queue.Item, []byte) ([]byte, error) {
		return nil, errFetch
	}}
	runner := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), failing, e.store, e.artifacts)

	for tick := 1; tick <= 2; tick++ {
		result, err := runner.Tick(ctx)
		if err != nil {
			t.Fatalf("tick %d returned error: %v", tick, err)
		}
		if result.Selected != 1 || result.Failed != 1 || result.Advanced != 0 {
			t.Fatalf("tick %d unexpected result %+v", tick, result)
		}
	}
	if ok, _ := e.artifacts.Exists("42", "Downloaded"); ok {
		t.Fatal("failed fetch must not leave an artifact")
	}
	fetched, err := e.store.GetByID(ctx, "42")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusNew {
		t.Fatalf("expected new, got %s", fetched.Status)
	}
	if fetched.Attempts != 2 || !strings.Contains(fetched.LastError, "connection refused") {
		t.Fatalf("expected failure diagnostics, got attempts=%d last_error=%q", fetched.Attempts, fetched.LastError)
	}
	if !strings.Contains(fetched.LastError, pipeline.ErrTransformFailure.Error()) {
		t.Fatalf("expected transform failure marker, got %q", fetched.LastError)
	}
}

func TestExistingArtifactIsReusedWithoutTransform(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "r", queue.StatusNew)
	if err := e.artifacts.Write("r", "Downloaded", []byte("from previous run")); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	handler := echoHandler("downloaded")
	store := &countingArtifacts{ArtifactStore: e.artifacts}
	runner := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), handler, e.store, store)

	first, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	second, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}

	if handler.calls.Load() != 0 {
		t.Fatalf("expected transform to be skipped, got %d calls", handler.calls.Load())
	}
	if store.writes.Load() != 0 {
		t.Fatalf("expected no artifact writes, got %d", store.writes.Load())
	}
	if first.Advanced != 1 || first.Reused != 1 {
		t.Fatalf("unexpected first result %+v", first)
	}
	if second.Selected != 0 {
		t.Fatalf("advanced item selected again: %+v", second)
	}
	content, _ := e.artifacts.Read("r", "Downloaded")
	if string(content) != "from previous run" {
		t.Fatalf("artifact overwritten: %q", content)
	}
	if status := testsupport.MustStatus(t, e.store, "r"); status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s", status)
	}
}

func TestFailureIsIsolatedPerItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		testsupport.SeedItem(t, e.store, id, queue.StatusNew)
	}
	handler := &countingHandler{fn: func(_ context.Context, item *queue.Item, _ []byte) ([]byte, error) {
		if item.ID == "b" {
			return nil, errFetch
		}
		return []byte("ok " + item.ID), nil
	}}
	runner := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), handler, e.store, e.artifacts)

	result, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Selected != 3 || result.Advanced != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	want := map[string]queue.Status{"a": queue.StatusDownloaded, "b": queue.StatusNew, "c": queue.StatusDownloaded}
	for id, status := range want {
		if got := testsupport.MustStatus(t, e.store, id); got != status {
			t.Fatalf("item %s status %s, want %s", id, got, status)
		}
	}
}

func TestCrashBetweenWriteAndAdvanceRecovers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "crash", queue.StatusNew)
	handler := echoHandler("downloaded")
	edge := mustEdge(t, queue.StatusDownloaded)

	crashing := &interceptRepo{Repository: e.store, beforeUpdate: func(string) error {
		return queue.ErrStoreUnavailable
	}}
	first, err := pipeline.NewRunner(edge, handler, crashing, e.artifacts).Tick(ctx)
	if err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	if first.Failed != 1 {
		t.Fatalf("expected failed update to count as failure: %+v", first)
	}
	if status := testsupport.MustStatus(t, e.store, "crash"); status != queue.StatusNew {
		t.Fatalf("status advanced despite failed update: %s", status)
	}
	if ok, _ := e.artifacts.Exists("crash", "Downloaded"); !ok {
		t.Fatal("expected artifact written before status update")
	}

	second, err := pipeline.NewRunner(edge, handler, e.store, e.artifacts).Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if second.Reused != 1 || second.Advanced != 1 {
		t.Fatalf("expected artifact reuse on restart: %+v", second)
	}
	if handler.calls.Load() != 1 {
		t.Fatalf("transform rerun after restart: %d calls", handler.calls.Load())
	}
	if status := testsupport.MustStatus(t, e.store, "crash"); status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s", status)
	}
}

func TestArtifactWriteFailureDoesNotAdvance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "w", queue.StatusNew)
	store := &countingArtifacts{ArtifactStore: e.artifacts, failWith: errors.New("disk full")}

	result, err := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), echoHandler("d"), e.store, store).Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 || result.Advanced != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	item, _ := e.store.GetByID(ctx, "w")
	if item.Status != queue.StatusNew {
		t.Fatalf("status advanced after write failure: %s", item.Status)
	}
	if !strings.Contains(item.LastError, "disk full") || !strings.Contains(item.LastError, pipeline.ErrArtifactWriteFailure.Error()) {
		t.Fatalf("unexpected last_error %q", item.LastError)
	}
}

func TestArtifactStatFailureIsReadFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "s", queue.StatusNew)
	handler := &countingHandler{fn: func(context.Context, *queue.Item, []byte) ([]byte, error) {
		return []byte("d"), nil
	}}
	store := &countingArtifacts{ArtifactStore: e.artifacts, existsErr: errors.New("permission denied")}

	result, err := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), handler, e.store, store).Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 || result.Advanced != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if handler.calls.Load() != 0 || store.writes.Load() != 0 {
		t.Fatalf("transform or write ran after stat failure: calls=%d writes=%d", handler.calls.Load(), store.writes.Load())
	}
	item, _ := e.store.GetByID(ctx, "s")
	if item.Status != queue.StatusNew {
		t.Fatalf("status advanced after stat failure: %s", item.Status)
	}
	if !strings.Contains(item.LastError, pipeline.ErrArtifactReadFailure.Error()) || !strings.Contains(item.LastError, "permission denied") {
		t.Fatalf("unexpected last_error %q", item.LastError)
	}
	if strings.Contains(item.LastError, pipeline.ErrArtifactWriteFailure.Error()) {
		t.Fatalf("stat failure reported as write failure: %q", item.LastError)
	}
}

func TestMissingPriorArtifactIsInvariantViolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "orphan", queue.StatusDownloaded)
	handler := echoHandler("extracted")
	notifier := &recordingNotifier{}

	runner := pipeline.NewRunner(mustEdge(t, queue.StatusExtracted), handler, e.store, e.artifacts, pipeline.WithNotifier(notifier))
	result, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if handler.calls.Load() != 0 {
		t.Fatal("transform must not run without its input artifact")
	}
	if notifier.count(notifications.EventInvariantViolation) != 1 {
		t.Fatalf("expected one invariant notification, got %v", notifier.events)
	}
	if status := testsupport.MustStatus(t, e.store, "orphan"); status != queue.StatusDownloaded {
		t.Fatalf("status changed: %s", status)
	}
}

func TestLostCompareAndSwapCountsAsRaced(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "race", queue.StatusNew)

	racing := &interceptRepo{Repository: e.store, beforeUpdate: func(id string) error {
		_, err := e.store.UpdateStatus(ctx, id, queue.StatusNew, queue.StatusDownloaded)
		return err
	}}
	result, err := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), echoHandler("d"), racing, e.artifacts).Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Raced != 1 || result.Advanced != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if status := testsupport.MustStatus(t, e.store, "race"); status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s", status)
	}
}

func TestStoreUnavailableAbortsTick(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	handler := echoHandler("d")
	runner := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), handler, store, testsupport.MustOpenArtifacts(t, cfg))
	result, err := runner.Tick(context.Background())
	if !errors.Is(err, queue.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if result.Selected != 0 || handler.calls.Load() != 0 {
		t.Fatalf("expected no work on unavailable store: %+v calls=%d", result, handler.calls.Load())
	}
}

func TestTransformTimeoutIsItemFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "slow", queue.StatusNew)

	stuck := &countingHandler{fn: func(context.Context, *queue.Item, []byte) ([]byte, error) {
		select {}
	}}
	runner := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), stuck, e.store, e.artifacts,
		pipeline.WithTransformTimeout(20*time.Millisecond))
	result, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	item, _ := e.store.GetByID(ctx, "slow")
	if item.Status != queue.StatusNew || !strings.Contains(item.LastError, "timeout") {
		t.Fatalf("expected timeout failure, got status=%s last_error=%q", item.Status, item.LastError)
	}
}

func TestEmptyArtifactIsRejected(t *testing.T) {
	e := newEnv(t)
	testsupport.SeedItem(t, e.store, "empty", queue.StatusNew)
	empty := &countingHandler{fn: func(context.Context, *queue.Item, []byte) ([]byte, error) {
		return nil, nil
	}}
	result, err := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), empty, e.store, e.artifacts).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if ok, _ := e.artifacts.Exists("empty", "Downloaded"); ok {
		t.Fatal("empty output must not be stored")
	}
}

func TestParallelWorkersBounded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		testsupport.SeedItem(t, e.store, id, queue.StatusNew)
	}

	var active, peak atomic.Int32
	handler := &countingHandler{fn: func(_ context.Context, item *queue.Item, _ []byte) ([]byte, error) {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return []byte(item.ID), nil
	}}
	result, err := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), handler, e.store, e.artifacts,
		pipeline.WithWorkers(3)).Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Advanced != 6 {
		t.Fatalf("unexpected result %+v", result)
	}
	if peak.Load() > 3 {
		t.Fatalf("worker bound exceeded: peak %d", peak.Load())
	}
}

func TestTickIsRecorded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "t", queue.StatusNew)

	result, err := pipeline.NewRunner(mustEdge(t, queue.StatusDownloaded), echoHandler("d"), e.store, e.artifacts).Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	ticks, err := e.store.StageTicks(ctx)
	if err != nil {
		t.Fatalf("StageTicks: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Stage != "Downloaded" || ticks[0].CorrelationID != result.CorrelationID || ticks[0].Advanced != 1 {
		t.Fatalf("unexpected tick records %+v", ticks)
	}
}

func TestFullChainIsMonotonic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testsupport.SeedItem(t, e.store, "m", queue.StatusNew)

	var stages []pipeline.Stage
	for _, edge := range pipeline.DefaultEdges() {
		stages = append(stages, pipeline.Stage{Edge: edge, Handler: echoHandler(edge.Stage)})
	}
	driver, err := pipeline.NewDriver(stages...)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	runners := driver.Runners(e.store, e.artifacts)

	last := queue.StatusNew
	// Run stages in reverse so each round advances the item at most one step.
	for round := 0; round < 6; round++ {
		for i := len(runners) - 1; i >= 0; i-- {
			if _, err := runners[i].Tick(ctx); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			status := testsupport.MustStatus(t, e.store, "m")
			if status.Index() < last.Index() {
				t.Fatalf("status moved backward: %s -> %s", last, status)
			}
			last = status
		}
	}
	if last != queue.StatusPublished {
		t.Fatalf("expected published, got %s", last)
	}
	for _, stage := range []string{"Downloaded", "Extracted", "Translated", "Published"} {
		if ok, _ := e.artifacts.Exists("m", stage); !ok {
			t.Fatalf("missing %s artifact", stage)
		}
	}
}
