package stage

import (
	"context"

	"newsflow/internal/queue"
)

// Handler is the transform one pipeline stage applies to an item. prior holds
// the previous stage's artifact, or nil for the first stage. The returned
// bytes become this stage's artifact.
type Handler interface {
	Execute(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error)
	HealthCheck(ctx context.Context) Health
}

// Func adapts a plain function into a Handler that always reports healthy.
type Func func(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, item *queue.Item, prior []byte) ([]byte, error) {
	return f(ctx, item, prior)
}

// HealthCheck always reports ready.
func (f Func) HealthCheck(context.Context) Health {
	return Healthy("func")
}
