// Package graphbuild is the reference graph-builder collaborator: it turns
// a repository on disk into a persisted graph.Handle by walking supported
// source files with tree-sitter, indexing function-like definitions by
// name, and linking call sites to definitions plus sequential statement
// flow within each function body. It is not the code graph database the
// project specifies as out of scope — it is the wiring that produces one
// good enough to drive real searches end to end, grounded on the teacher's
// callgraph.Manager (distance/shortest-path bookkeeping dropped; this
// builder only needs node identity and outbound edges).
package graphbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/taintgraph/taintgraph/pkg/graph"
	"github.com/taintgraph/taintgraph/pkg/graph/sqlitegraph"
	"github.com/taintgraph/taintgraph/pkg/logging"
	"github.com/taintgraph/taintgraph/pkg/parser"
)

// Status mirrors the graph-ready record published on a dedicated channel:
// {status, database_path, error, repo}.
type Status struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path,omitempty"`
	Error        string `json:"error,omitempty"`
	Repo         string `json:"repo"`
}

// Builder walks a repository and persists a call/line adjacency graph.
type Builder struct {
	svc    *parser.Service
	Logger *logging.Logger
}

// NewBuilder constructs a Builder with every supported language
// registered.
func NewBuilder() *Builder {
	return &Builder{svc: parser.NewService(), Logger: logging.Default()}
}

// funcDef records a function-like definition's name and location.
type funcDef struct {
	file string
	line int
}

// Build walks repo, parses every file the registered languages support,
// and writes nodes/edges into a fresh SQLite database at dbPath. It
// returns an opened read-only graph.Handle over that database.
func (b *Builder) Build(ctx context.Context, repo, dbPath string) (graph.Handle, error) {
	writer, err := sqlitegraph.Create(dbPath)
	if err != nil {
		return nil, fmt.Errorf("graphbuild: create database: %w", err)
	}

	files, err := b.listSourceFiles(repo)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("graphbuild: walk %s: %w", repo, err)
	}

	defs := make(map[string][]funcDef)
	parsed := make(map[string]*parser.ParseResult, len(files))

	for _, f := range files {
		if ctx.Err() != nil {
			writer.Close()
			return nil, ctx.Err()
		}
		res, err := b.svc.ParseFile(f)
		if err != nil || res == nil {
			if err != nil {
				b.Logger.Debugf("graphbuild: skipping %s: %v", f, err)
			}
			continue
		}
		parsed[f] = res
		collectDefs(res, defs)
	}

	for f, res := range parsed {
		if ctx.Err() != nil {
			writer.Close()
			return nil, ctx.Err()
		}
		if err := writeFileGraph(writer, f, res, defs); err != nil {
			writer.Close()
			return nil, fmt.Errorf("graphbuild: write graph for %s: %w", f, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("graphbuild: finalize database: %w", err)
	}

	g, err := sqlitegraph.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("graphbuild: reopen database: %w", err)
	}
	return g, nil
}

// BuildAsync runs Build in a goroutine and publishes exactly one Status
// record on out before closing it, matching the graph-ready contract.
func (b *Builder) BuildAsync(ctx context.Context, repo, dbPath string, out chan<- Status) {
	go func() {
		defer close(out)
		if _, err := b.Build(ctx, repo, dbPath); err != nil {
			out <- Status{Status: "error", Error: err.Error(), Repo: repo}
			return
		}
		out <- Status{Status: "success", DatabasePath: dbPath, Repo: repo}
	}()
}

func (b *Builder) listSourceFiles(repo string) ([]string, error) {
	var files []string
	err := filepath.Walk(repo, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			switch info.Name() {
			case ".git", "node_modules", "vendor", ".svn":
				return filepath.SkipDir
			}
			return nil
		}
		if b.svc.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// functionLike reports whether a tree-sitter node type names a definable
// function/method/closure across the supported grammars.
func functionLike(nodeType string) bool {
	return strings.Contains(nodeType, "function") || strings.Contains(nodeType, "method_declaration")
}

// callSite reports whether a tree-sitter node type names a call expression
// across the supported grammars.
func callSite(nodeType string) bool {
	return strings.Contains(nodeType, "call")
}

// collectDefs walks res's tree looking for function-like nodes with an
// identifier child, recording each under that identifier's text.
func collectDefs(res *parser.ParseResult, defs map[string][]funcDef) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if functionLike(n.Type()) {
			if name := identifierName(n, res.Source); name != "" {
				line := int(n.StartPoint().Row) + 1
				defs[name] = append(defs[name], funcDef{file: res.FilePath, line: line})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(res.Root)
}

// identifierName returns the text of the first identifier-like child of n,
// which for most grammars is the function/method's declared name.
func identifierName(n *sitter.Node, source []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		t := child.Type()
		if t == "identifier" || t == "property_identifier" || strings.HasSuffix(t, "_identifier") {
			return child.Content(source)
		}
	}
	return ""
}

// writeFileGraph adds one node per statement-bearing line inside each
// function body, links consecutive lines as sequential control flow, and
// links call sites to resolvable definitions anywhere in the repo.
func writeFileGraph(w *sqlitegraph.Writer, file string, res *parser.ParseResult, defs map[string][]funcDef) error {
	var walk func(n *sitter.Node) error
	walk = func(n *sitter.Node) error {
		if n == nil {
			return nil
		}
		if functionLike(n.Type()) {
			if err := writeFunctionBody(w, file, n, res.Source, defs); err != nil {
				return err
			}
			return nil // function bodies are handled as a unit; don't descend again
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if err := walk(n.Child(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(res.Root)
}

func writeFunctionBody(w *sqlitegraph.Writer, file string, fn *sitter.Node, source []byte, defs map[string][]funcDef) error {
	lines := statementLines(fn)
	if len(lines) == 0 {
		return nil
	}

	prevID := graph.NodeID("")
	for _, line := range lines {
		id := nodeID(file, line)
		if err := w.AddNode(id, file, line); err != nil {
			return err
		}
		if prevID != "" {
			if err := w.AddEdge(prevID, id); err != nil {
				return err
			}
		}
		prevID = id
	}

	var walkCalls func(n *sitter.Node) error
	walkCalls = func(n *sitter.Node) error {
		if n == nil {
			return nil
		}
		if callSite(n.Type()) {
			callLine := int(n.StartPoint().Row) + 1
			callerID := nodeID(file, callLine)
			if name := identifierName(n, source); name != "" {
				for _, d := range defs[name] {
					if d.file == file && d.line == callLine {
						continue
					}
					defID := nodeID(d.file, d.line)
					if err := w.AddNode(defID, d.file, d.line); err != nil {
						return err
					}
					if err := w.AddEdge(callerID, defID); err != nil {
						return err
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if err := walkCalls(n.Child(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return walkCalls(fn)
}

// statementLines returns the distinct, ordered 1-based line numbers of fn's
// direct and nested statement nodes, approximating a flat control-flow
// sequence good enough for path search without a real CFG.
func statementLines(fn *sitter.Node) []int {
	seen := make(map[int]bool)
	var lines []int
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if strings.HasSuffix(n.Type(), "statement") || callSite(n.Type()) {
			line := int(n.StartPoint().Row) + 1
			if !seen[line] {
				seen[line] = true
				lines = append(lines, line)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	for i := 0; i < int(fn.ChildCount()); i++ {
		walk(fn.Child(i))
	}
	return lines
}

func nodeID(file string, line int) graph.NodeID {
	return graph.NodeID(fmt.Sprintf("%s:%d", file, line))
}
