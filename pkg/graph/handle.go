// Package graph defines the read-only façade the core path-search engine
// depends on. Building the underlying graph is out of scope for this
// module (see spec Non-goals); pkg/graph/memgraph and pkg/graph/sqlitegraph
// provide two concrete adapters satisfying this interface.
package graph

// NodeID is an opaque node identifier. The core never interprets it except
// for equality and hashing.
type NodeID string

// Handle is the narrow, read-only view of a code graph that the path
// search engine consumes. Implementations must be safe for concurrent
// readers; the core only ever reads.
type Handle interface {
	// Locate maps a detection's (file, line) to a graph node. Resolution is
	// by the full (file, line) pair, not line alone (spec §9 open question,
	// resolved in favor of the stricter contract).
	Locate(file string, line int) (NodeID, bool)

	// Neighbors returns the outbound edges of id in a deterministic order.
	Neighbors(id NodeID) []NodeID
}
