// Package search implements bounded source-to-sink traversal over a
// graph.Handle. DFS is the only strategy specified (spec §4.2); Strategy is
// an interface so a future breadth-first search can share the
// orchestrator's single dispatch table (spec §9 open question).
package search

import (
	"context"

	"github.com/taintgraph/taintgraph/pkg/detect"
	"github.com/taintgraph/taintgraph/pkg/graph"
)

// Limits bounds a single search instance (spec §4.2: path-count cap and
// traversal-depth cap are mandatory).
type Limits struct {
	MaxPaths int
	MaxDepth int
}

// DefaultLimits matches the spec's recommended defaults.
func DefaultLimits() Limits {
	return Limits{MaxPaths: 1024, MaxDepth: 64}
}

// Input is everything one search instance needs: the source/sink pair, a
// frozen sanitizer snapshot taken at dispatch time (spec invariant 2), and
// the graph to search.
type Input struct {
	Source     detect.Detection
	Sink       detect.Detection
	Sanitizers []detect.Detection
	Graph      graph.Handle
	Limits     Limits
}

// Finding is one discovered simple path from source to sink.
type Finding struct {
	ID                string // assigned by the orchestrator at emission time
	Source            detect.Detection
	Sink              detect.Detection
	Nodes             []graph.NodeID
	SanitizersCrossed []graph.NodeID
	Sanitized         bool
	LogicalTime       uint64
}

// Strategy enumerates paths from Input.Source to Input.Sink, sending one
// Finding per discovered simple path to out. It must return promptly once
// ctx is cancelled, without error (cancellation is a normal terminal state,
// spec §7).
type Strategy interface {
	Search(ctx context.Context, in Input, out chan<- Finding) error
}
