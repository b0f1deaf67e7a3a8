package regex

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/taintgraph/taintgraph/pkg/detect"
)

// Scanner walks a repository and emits detect.Detection records for one
// purpose (source, sink, or sanitizer) onto a shared channel. It mirrors the
// original Detector/_thread_regex split: one goroutine walks the tree, and
// file scans fan out across a worker pool instead of one thread per file.
type Scanner struct {
	Purpose string
	Catalog *Catalog
	Workers int
}

// NewScanner builds a Scanner for purpose, loading its catalog from path.
func NewScanner(purpose, catalogPath string, workers int) (*Scanner, error) {
	catalog, err := LoadCatalog(purpose, catalogPath)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{Purpose: purpose, Catalog: catalog, Workers: workers}, nil
}

// Run walks repo and sends one detect.Detection per match onto out. It
// closes out when the walk and all in-flight file scans complete, signaling
// producer completion to the orchestrator (spec §4.1).
func (s *Scanner) Run(repo string, out chan<- detect.Detection) error {
	defer close(out)

	files, err := s.listFiles(repo)
	if err != nil {
		return err
	}

	pathChan := make(chan string, len(files))
	for _, f := range files {
		pathChan <- f
	}
	close(pathChan)

	var wg sync.WaitGroup
	for i := 0; i < s.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathChan {
				s.scanFile(path, out)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (s *Scanner) listFiles(repo string) ([]string, error) {
	var files []string
	err := filepath.Walk(repo, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scanFile applies every rule for the file's detected language (or the
// default set) to each line, sending a Detection per match.
func (s *Scanner) scanFile(path string, out chan<- detect.Detection) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	rules := s.Catalog.RulesFor(detectLanguage(path))
	if len(rules) == 0 {
		return
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, rule := range rules {
			loc := rule.compiled.FindStringIndex(line)
			if loc == nil {
				continue
			}
			out <- detect.Detection{
				Kind:        detect.Kind(s.Purpose),
				RuleName:    rule.Name,
				File:        path,
				Line:        lineNum,
				MatchText:   line[loc[0]:loc[1]],
				Confidence:  rule.Confidence,
				Description: rule.Description,
				LineContent: strings.TrimSpace(line),
			}
		}
	}
}
