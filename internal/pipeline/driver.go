package pipeline

import (
	"fmt"

	"newsflow/internal/queue"
	"newsflow/internal/stage"
)

// Stage pairs an edge with the handler that performs it.
type Stage struct {
	Edge    Edge
	Handler stage.Handler
}

// Driver is the validated, immutable set of stages a process may run.
type Driver struct {
	stages []Stage
}

// NewDriver validates the edge graph formed by stages.
func NewDriver(stages ...Stage) (*Driver, error) {
	edges := make([]Edge, 0, len(stages))
	for _, stg := range stages {
		if stg.Handler == nil {
			return nil, fmt.Errorf("%w: %s has no handler", ErrInvalidGraph, stg.Edge)
		}
		edges = append(edges, stg.Edge)
	}
	if err := ValidateEdges(edges); err != nil {
		return nil, err
	}
	copied := make([]Stage, len(stages))
	copy(copied, stages)
	return &Driver{stages: copied}, nil
}

// Stages returns the declared stages in chain order.
func (d *Driver) Stages() []Stage {
	out := make([]Stage, len(d.stages))
	copy(out, d.stages)
	return out
}

// Lookup finds the stage producing the given stage name.
func (d *Driver) Lookup(name string) (Stage, bool) {
	for _, stg := range d.stages {
		if stg.Edge.Stage == name {
			return stg, true
		}
	}
	return Stage{}, false
}

// Runners builds one Runner per stage sharing the same stores and options.
func (d *Driver) Runners(items queue.Repository, store ArtifactStore, opts ...RunnerOption) []*Runner {
	runners := make([]*Runner, 0, len(d.stages))
	for _, stg := range d.stages {
		runners = append(runners, NewRunner(stg.Edge, stg.Handler, items, store, opts...))
	}
	return runners
}
