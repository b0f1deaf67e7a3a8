package report

import (
	"encoding/json"
	"io"
	"os"

	"github.com/taintgraph/taintgraph/pkg/search"
)

// JSONExporter exports findings as JSON, grounded on the teacher's
// output.JSONExporter (ExportToWriter/ExportToFile split, optional pretty
// printing).
type JSONExporter struct {
	PrettyPrint bool
	Indent      string
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(prettyPrint bool) *JSONExporter {
	return &JSONExporter{PrettyPrint: prettyPrint, Indent: "  "}
}

// ExportToWriter writes findings as a JSON array to w.
func (e *JSONExporter) ExportToWriter(findings []search.Finding, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if e.PrettyPrint {
		encoder.SetIndent("", e.Indent)
	}
	return encoder.Encode(findings)
}

// ExportToFile writes findings as JSON to the file at path.
func (e *JSONExporter) ExportToFile(findings []search.Finding, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.ExportToWriter(findings, f)
}
