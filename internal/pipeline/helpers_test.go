package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"newsflow/internal/artifacts"
	"newsflow/internal/config"
	"newsflow/internal/notifications"
	"newsflow/internal/pipeline"
	"newsflow/internal/queue"
	"newsflow/internal/stage"
	"newsflow/internal/testsupport"
)

type env struct {
	cfg       *config.Config
	store     *queue.Store
	artifacts *artifacts.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return &env{
		cfg:       cfg,
		store:     testsupport.MustOpenStore(t, cfg),
		artifacts: testsupport.MustOpenArtifacts(t, cfg),
	}
}

func mustEdge(t *testing.T, to queue.Status) pipeline.Edge {
	t.Helper()
	edge, err := pipeline.EdgeFor(to)
	if err != nil {
		t.Fatalf("EdgeFor(%s): %v", to, err)
	}
	return edge
}

// countingHandler records calls and delegates to fn.
type countingHandler struct {
	calls atomic.Int32
	fn    func(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error)
}

func (h *countingHandler) Execute(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error) {
	h.calls.Add(1)
	return h.fn(ctx, item, prior)
}

func (h *countingHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("counting")
}

func echoHandler(prefix string) *countingHandler {
	return &countingHandler{fn: func(_ context.Context, item *queue.Item, prior []byte) ([]byte, error) {
		return append([]byte(prefix+":"+item.ID+":"), prior...), nil
	}}
}

// countingArtifacts wraps an artifact store and counts writes, optionally failing them.
type countingArtifacts struct {
	pipeline.ArtifactStore
	writes    atomic.Int32
	failWith  error
	existsErr error
}

func (c *countingArtifacts) Exists(id, stage string) (bool, error) {
	if c.existsErr != nil {
		return false, c.existsErr
	}
	return c.ArtifactStore.Exists(id, stage)
}

func (c *countingArtifacts) Write(id, stage string, content []byte) error {
	c.writes.Add(1)
	if c.failWith != nil {
		return c.failWith
	}
	return c.ArtifactStore.Write(id, stage, content)
}

// interceptRepo lets a test hook UpdateStatus.
type interceptRepo struct {
	queue.Repository
	beforeUpdate func(id string) error
}

func (r *interceptRepo) UpdateStatus(ctx context.Context, id string, expected, next queue.Status) (bool, error) {
	if r.beforeUpdate != nil {
		if err := r.beforeUpdate(id); err != nil {
			return false, err
		}
	}
	return r.Repository.UpdateStatus(ctx, id, expected, next)
}

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

func (n *recordingNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

var errFetch = errors.New("connection refused")
