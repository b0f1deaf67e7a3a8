// Package parser parses source files with tree-sitter for the reference
// graph builder (pkg/graphbuild): one pooled parser per registered
// language, and an LRU cache of parsed trees keyed by file path. A cached
// tree is served for a path without checking whether the file changed, and
// the cache lives only as long as its Service (cmd/taintgraph builds a new
// one for every scan, including each --watch rescan).
package parser

import (
	"container/list"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/taintgraph/taintgraph/pkg/parser/languages"
)

// defaultCacheEntries bounds the parsed-tree cache by entry count; the
// memory cost of each entry is not tracked.
const defaultCacheEntries = 256

// ParseResult is one file's parsed tree, in the shape pkg/graphbuild walks.
type ParseResult struct {
	Root     *sitter.Node
	Source   []byte
	Language string
	FilePath string
}

type cachedParse struct {
	tree   *sitter.Tree
	root   *sitter.Node
	source []byte
}

type cacheEntry struct {
	key  string
	data *cachedParse
}

// Service parses files with tree-sitter, pooling one parser per language
// and caching parsed trees by file path.
type Service struct {
	mu        sync.RWMutex
	languages map[string]*sitter.Language
	pools     map[string]*sync.Pool

	cacheMu    sync.Mutex
	cacheItems map[string]*list.Element
	cacheOrder *list.List
}

// NewService creates a Service with every language pkg/parser/languages
// knows about already registered.
func NewService() *Service {
	s := &Service{
		languages:  make(map[string]*sitter.Language),
		pools:      make(map[string]*sync.Pool),
		cacheItems: make(map[string]*list.Element),
		cacheOrder: list.New(),
	}
	languages.RegisterAllLanguages(s)
	return s
}

// RegisterLanguage registers a language under name with its own parser
// pool. It implements languages.ParserRegistrar.
func (s *Service) RegisterLanguage(name string, lang *sitter.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.languages[name] = lang
	s.pools[name] = &sync.Pool{
		New: func() interface{} {
			p := sitter.NewParser()
			p.SetLanguage(lang)
			return p
		},
	}
}

// DetectLanguage maps path's extension to a registered language name, or
// "" if nothing is registered for it.
func (s *Service) DetectLanguage(path string) string {
	return languages.GetLanguageByExtension(strings.ToLower(filepath.Ext(path)))
}

// IsSupported reports whether path's language has a registered grammar.
func (s *Service) IsSupported(path string) bool {
	return s.DetectLanguage(path) != ""
}

// ParseFile parses path, serving a cached tree when one exists, and
// returns (nil, nil) for files with no registered grammar.
func (s *Service) ParseFile(path string) (*ParseResult, error) {
	lang := s.DetectLanguage(path)
	if lang == "" {
		return nil, nil
	}

	if cached := s.cacheGet(path); cached != nil {
		return &ParseResult{Root: cached.root, Source: cached.source, Language: lang, FilePath: path}, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	pool := s.pools[lang]
	s.mu.RUnlock()
	if pool == nil {
		return nil, nil
	}

	p := pool.Get().(*sitter.Parser)
	defer pool.Put(p)

	tree, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}
	root := tree.RootNode()

	s.cachePut(path, &cachedParse{tree: tree, root: root, source: source})

	return &ParseResult{Root: root, Source: source, Language: lang, FilePath: path}, nil
}

// cacheGet returns the cached parse for key, moving it to the front of the
// eviction order, or nil on a miss.
func (s *Service) cacheGet(key string) *cachedParse {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	elem, ok := s.cacheItems[key]
	if !ok {
		return nil
	}
	s.cacheOrder.MoveToFront(elem)
	return elem.Value.(*cacheEntry).data
}

// cachePut stores data under key, closing and evicting the least recently
// used tree once the cache is full so its underlying AST memory is freed.
func (s *Service) cachePut(key string, data *cachedParse) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if elem, ok := s.cacheItems[key]; ok {
		elem.Value.(*cacheEntry).data = data
		s.cacheOrder.MoveToFront(elem)
		return
	}

	for len(s.cacheItems) >= defaultCacheEntries {
		oldest := s.cacheOrder.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*cacheEntry)
		if entry.data.tree != nil {
			entry.data.tree.Close()
		}
		s.cacheOrder.Remove(oldest)
		delete(s.cacheItems, entry.key)
	}

	elem := s.cacheOrder.PushFront(&cacheEntry{key: key, data: data})
	s.cacheItems[key] = elem
}
