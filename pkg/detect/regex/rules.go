// Package regex implements the default detector: it loads per-language
// regex rule catalogs and scans repository files line by line looking for
// sources, sinks, and sanitizers. It is grounded on the original Python
// RegexDetector: load rules for a purpose, detect a file's language,
// fall back to a default rule set, and emit one detect.Detection per match.
package regex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Rule is one entry in a rule catalog.
type Rule struct {
	Name        string  `json:"name"`
	Pattern     string  `json:"pattern"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`

	compiled *regexp.Regexp
}

// Catalog is a purpose's (source/sink/sanitizer) full rule set, keyed by
// language name with a "default" fallback, as produced by Rules/Regex/*.json
// in the original implementation.
type Catalog struct {
	Purpose string
	byLang  map[string][]Rule
}

// LoadCatalog reads and compiles a rule catalog from a JSON file shaped like
// { "<purpose>s": { "<language>": [ {name, pattern, confidence, description} ] } }.
func LoadCatalog(purpose, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regex: read catalog %s: %w", path, err)
	}

	var raw map[string]map[string][]Rule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("regex: parse catalog %s: %w", path, err)
	}

	section := raw[purpose+"s"]
	byLang := make(map[string][]Rule, len(section))
	for lang, rules := range section {
		compiled := make([]Rule, 0, len(rules))
		for _, r := range rules {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("regex: catalog %s rule %q: %w", path, r.Name, err)
			}
			r.compiled = re
			compiled = append(compiled, r)
		}
		byLang[lang] = compiled
	}

	return &Catalog{Purpose: purpose, byLang: byLang}, nil
}

// RulesFor returns the rules for a language, falling back to "default".
func (c *Catalog) RulesFor(language string) []Rule {
	if rules, ok := c.byLang[language]; ok {
		return rules
	}
	return c.byLang["default"]
}

var extToLanguage = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".pyw":  "python",
	".java": "java",
	".php":  "php",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".c":    "cpp",
	".go":   "go",
	".rb":   "ruby",
	".rs":   "rust",
	".cs":   "c_sharp",
}

// detectLanguage maps a file extension to a catalog language key, the same
// way the original RegexDetector._detect_language did.
func detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return "default"
}
