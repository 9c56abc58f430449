package pipeline

import (
	"fmt"

	"newsflow/internal/queue"
)

// Edge is one forward transition of the status chain.
type Edge struct {
	From  queue.Status
	To    queue.Status
	Stage string
}

// String renders the edge for logs.
func (e Edge) String() string {
	return fmt.Sprintf("%s: %s -> %s", e.Stage, e.From, e.To)
}

// PriorStage names the artifact this edge consumes, or "" for the first edge.
func (e Edge) PriorStage() string {
	if _, ok := e.From.Prev(); !ok {
		return ""
	}
	return e.From.StageName()
}

// EdgeFor returns the edge whose target status is to.
func EdgeFor(to queue.Status) (Edge, error) {
	from, ok := to.Prev()
	if !ok {
		return Edge{}, fmt.Errorf("%w: %q has no incoming edge", ErrInvalidGraph, to)
	}
	return Edge{From: from, To: to, Stage: to.StageName()}, nil
}

// DefaultEdges describes the full chain New -> Downloaded -> Extracted ->
// Translated -> Published.
func DefaultEdges() []Edge {
	statuses := queue.AllStatuses()
	edges := make([]Edge, 0, len(statuses)-1)
	for i := 0; i+1 < len(statuses); i++ {
		edges = append(edges, Edge{From: statuses[i], To: statuses[i+1], Stage: statuses[i+1].StageName()})
	}
	return edges
}

// ValidateEdges checks that edges form a contiguous forward path through the
// status chain with one edge per selector status and stage names matching
// their targets. A subset of the chain is allowed as long as it has no gaps.
func ValidateEdges(edges []Edge) error {
	if len(edges) == 0 {
		return fmt.Errorf("%w: no edges", ErrInvalidGraph)
	}
	seenFrom := make(map[queue.Status]struct{}, len(edges))
	seenStage := make(map[string]struct{}, len(edges))
	for i, edge := range edges {
		if !edge.From.Valid() || !edge.To.Valid() {
			return fmt.Errorf("%w: edge %d uses unknown status (%q -> %q)", ErrInvalidGraph, i, edge.From, edge.To)
		}
		if !queue.ValidTransition(edge.From, edge.To) {
			return fmt.Errorf("%w: %s is not a single forward step", ErrInvalidGraph, edge)
		}
		if edge.Stage != edge.To.StageName() {
			return fmt.Errorf("%w: %s must be named %q", ErrInvalidGraph, edge, edge.To.StageName())
		}
		if _, dup := seenFrom[edge.From]; dup {
			return fmt.Errorf("%w: more than one edge selects %q", ErrInvalidGraph, edge.From)
		}
		if _, dup := seenStage[edge.Stage]; dup {
			return fmt.Errorf("%w: stage %q declared twice", ErrInvalidGraph, edge.Stage)
		}
		seenFrom[edge.From] = struct{}{}
		seenStage[edge.Stage] = struct{}{}
		if i > 0 && edges[i-1].To != edge.From {
			return fmt.Errorf("%w: gap between %s and %s", ErrInvalidGraph, edges[i-1], edge)
		}
	}
	return nil
}
