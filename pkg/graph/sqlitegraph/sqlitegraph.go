// Package sqlitegraph is a graph.Handle adapter backed by a SQLite database
// produced by an external graph builder (spec §6's "graph-ready" database).
// It gives the teacher's previously unwired mattn/go-sqlite3 dependency a
// home: the nodes/edges tables it reads are the natural persisted form of
// the code graph referenced throughout the spec.
package sqlitegraph

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taintgraph/taintgraph/pkg/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id   TEXT PRIMARY KEY,
	file TEXT NOT NULL,
	line INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_file_line ON nodes(file, line);
CREATE TABLE IF NOT EXISTS edges (
	from_id TEXT NOT NULL,
	to_id   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
`

// Graph is a read-only graph.Handle over a SQLite database. Neighbor
// lookups are cached in memory after first use since the underlying
// database is immutable once the external builder has finished writing it.
type Graph struct {
	db *sql.DB

	mu        sync.RWMutex
	neighbors map[graph.NodeID][]graph.NodeID
}

// Open opens the database at path for read-only graph queries.
func Open(path string) (*Graph, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("sqlitegraph: open %s: %w", path, err)
	}
	return &Graph{db: db, neighbors: make(map[graph.NodeID][]graph.NodeID)}, nil
}

// Close releases the underlying database connection.
func (g *Graph) Close() error {
	return g.db.Close()
}

// Locate implements graph.Handle by resolving (file, line) end to end,
// unlike the original line-only lookup (spec §9 open question).
func (g *Graph) Locate(file string, line int) (graph.NodeID, bool) {
	var id string
	err := g.db.QueryRow(`SELECT id FROM nodes WHERE file = ? AND line = ?`, file, line).Scan(&id)
	if err != nil {
		return "", false
	}
	return graph.NodeID(id), true
}

// Neighbors implements graph.Handle, caching results per node id.
func (g *Graph) Neighbors(id graph.NodeID) []graph.NodeID {
	g.mu.RLock()
	if cached, ok := g.neighbors[id]; ok {
		g.mu.RUnlock()
		return cached
	}
	g.mu.RUnlock()

	rows, err := g.db.Query(`SELECT to_id FROM edges WHERE from_id = ? ORDER BY rowid`, string(id))
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []graph.NodeID
	for rows.Next() {
		var to string
		if err := rows.Scan(&to); err != nil {
			continue
		}
		out = append(out, graph.NodeID(to))
	}

	g.mu.Lock()
	g.neighbors[id] = out
	g.mu.Unlock()
	return out
}

// Writer builds a SQLite graph database; used by pkg/graphbuild to persist
// the graph it constructs from a repository.
type Writer struct {
	db *sql.DB
}

// Create creates (overwriting) a new graph database at path.
func Create(path string) (*Writer, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("sqlitegraph: create %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitegraph: create %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitegraph: schema: %w", err)
	}
	return &Writer{db: db}, nil
}

// AddNode inserts a node, ignoring the insert if the id already exists.
func (w *Writer) AddNode(id graph.NodeID, file string, line int) error {
	_, err := w.db.Exec(`INSERT OR IGNORE INTO nodes(id, file, line) VALUES (?, ?, ?)`, string(id), file, line)
	return err
}

// AddEdge inserts a directed edge from -> to.
func (w *Writer) AddEdge(from, to graph.NodeID) error {
	_, err := w.db.Exec(`INSERT INTO edges(from_id, to_id) VALUES (?, ?)`, string(from), string(to))
	return err
}

// Close flushes and closes the underlying database.
func (w *Writer) Close() error {
	return w.db.Close()
}

var _ graph.Handle = (*Graph)(nil)
