package search

import (
	"context"

	"github.com/taintgraph/taintgraph/pkg/graph"
	"github.com/taintgraph/taintgraph/pkg/metrics"
)

// DFS enumerates all simple paths from a source node to a sink node,
// grounded on the original DepthFirstSearch: track the current path and a
// visited set, recurse into unvisited neighbors, and snapshot the path into
// a finding whenever the sink is reached.
type DFS struct{}

// Search implements Strategy.
func (DFS) Search(ctx context.Context, in Input, out chan<- Finding) error {
	sourceNode, ok := in.Graph.Locate(in.Source.File, in.Source.Line)
	if !ok {
		return nil
	}
	sinkNode, ok := in.Graph.Locate(in.Sink.File, in.Sink.Line)
	if !ok {
		return nil
	}

	sanitizerNodes := make(map[graph.NodeID]bool, len(in.Sanitizers))
	for _, s := range in.Sanitizers {
		if id, ok := in.Graph.Locate(s.File, s.Line); ok {
			sanitizerNodes[id] = true
		}
	}

	limits := in.Limits
	if limits.MaxPaths <= 0 {
		limits = DefaultLimits()
	}

	d := &dfsRun{
		graph:          in.Graph,
		sink:           sinkNode,
		sanitizerNodes: sanitizerNodes,
		limits:         limits,
		visited:        make(map[graph.NodeID]bool),
	}

	path := make([]graph.NodeID, 0, 8)
	err := d.walk(ctx, sourceNode, path, out, in)
	if d.capHit {
		metrics.CapsHit.Inc()
	}
	return err
}

type dfsRun struct {
	graph          graph.Handle
	sink           graph.NodeID
	sanitizerNodes map[graph.NodeID]bool
	limits         Limits
	visited        map[graph.NodeID]bool
	pathsEmitted   int
	capHit         bool
}

func (d *dfsRun) walk(ctx context.Context, current graph.NodeID, path []graph.NodeID, out chan<- Finding, in Input) error {
	if ctx.Err() != nil {
		return nil
	}
	if d.pathsEmitted >= d.limits.MaxPaths {
		d.capHit = true
		return nil
	}
	if len(path) >= d.limits.MaxDepth {
		d.capHit = true
		return nil
	}

	path = append(path, current)
	defer func() { d.visited[current] = false }()
	d.visited[current] = true

	if current == d.sink {
		d.emit(path, out, in)
		d.pathsEmitted++
		return nil
	}

	for _, next := range d.graph.Neighbors(current) {
		if ctx.Err() != nil {
			return nil
		}
		if d.visited[next] {
			continue
		}
		if d.pathsEmitted >= d.limits.MaxPaths {
			d.capHit = true
			return nil
		}
		if err := d.walk(ctx, next, path, out, in); err != nil {
			return err
		}
	}
	return nil
}

func (d *dfsRun) emit(path []graph.NodeID, out chan<- Finding, in Input) {
	nodes := make([]graph.NodeID, len(path))
	copy(nodes, path)

	var crossed []graph.NodeID
	for _, n := range nodes {
		if d.sanitizerNodes[n] {
			crossed = append(crossed, n)
		}
	}

	out <- Finding{
		Source:            in.Source,
		Sink:              in.Sink,
		Nodes:             nodes,
		SanitizersCrossed: crossed,
		Sanitized:         len(crossed) > 0,
	}
}

var _ Strategy = DFS{}
