package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/taintgraph/taintgraph/pkg/search"
)

// TextExporter writes one colored status line per finding, plus a note line
// for sanitized findings, grounded on
// code-pathfinder's colored CLI output convention (fatih/color for
// severity/status coloring rather than raw ANSI codes).
type TextExporter struct {
	NoColor bool
}

// NewTextExporter creates a text exporter.
func NewTextExporter(noColor bool) *TextExporter {
	return &TextExporter{NoColor: noColor}
}

// ExportToWriter writes findings as colored, human-readable lines.
func (e *TextExporter) ExportToWriter(findings []search.Finding, w io.Writer) error {
	sanitized := color.New(color.FgGreen)
	unsanitized := color.New(color.FgRed, color.Bold)
	dim := color.New(color.FgHiBlack)

	if e.NoColor {
		color.NoColor = true
	}

	for _, f := range findings {
		status := unsanitized.Sprint("UNSANITIZED")
		if f.Sanitized {
			status = sanitized.Sprint("SANITIZED")
		}
		fmt.Fprintf(w, "[%s] %s:%d -> %s:%d (%d nodes)\n",
			status, f.Source.File, f.Source.Line, f.Sink.File, f.Sink.Line, len(f.Nodes))
		if f.Sanitized {
			fmt.Fprintf(w, "  %s crossed %d sanitizer node(s)\n", dim.Sprint("note:"), len(f.SanitizersCrossed))
		}
	}
	return nil
}
