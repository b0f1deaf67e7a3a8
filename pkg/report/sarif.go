package report

import (
	"encoding/json"
	"fmt"
	"io"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/taintgraph/taintgraph/pkg/search"
)

const sarifToolName = "taintgraph"
const sarifToolURI = "https://github.com/taintgraph/taintgraph"

// SARIFExporter formats findings as SARIF 2.1.0, grounded on
// code-pathfinder's output.SARIFFormatter: one rule per distinct source
// rule name, one result per finding, each with a CodeFlow / ThreadFlow of
// two locations: the source and the sink. The intermediate Nodes are not
// written as locations; only their count appears in the code-flow message.
type SARIFExporter struct{}

// NewSARIFExporter creates a SARIF exporter.
func NewSARIFExporter() *SARIFExporter { return &SARIFExporter{} }

// ExportToWriter writes findings as a SARIF 2.1.0 log to w.
func (e *SARIFExporter) ExportToWriter(findings []search.Finding, w io.Writer) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}
	run := sarif.NewRunWithInformationURI(sarifToolName, sarifToolURI)

	seenRules := make(map[string]bool)
	for _, f := range findings {
		ruleID := f.Source.RuleName
		if ruleID == "" {
			ruleID = "taint-path"
		}
		if !seenRules[ruleID] {
			seenRules[ruleID] = true
			run.AddRule(ruleID).
				WithDescription(f.Source.Description).
				WithName(ruleID).
				WithHelpURI(sarifToolURI)
		}

		message := fmt.Sprintf("Tainted path from %s:%d to %s:%d", f.Source.File, f.Source.Line, f.Sink.File, f.Sink.Line)
		if f.Sanitized {
			message += fmt.Sprintf(" (crosses %d sanitizer node(s))", len(f.SanitizersCrossed))
		}

		result := run.CreateResultForRule(ruleID).WithMessage(sarif.NewTextMessage(message))
		result.AddLocation(locationFor(f.Sink.File, f.Sink.Line))
		result.WithCodeFlows([]*sarif.CodeFlow{codeFlowFor(f)})
	}

	report.AddRun(run)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func locationFor(file string, line int) *sarif.Location {
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(file)).
			WithRegion(sarif.NewRegion().WithStartLine(line)),
	)
}

func codeFlowFor(f search.Finding) *sarif.CodeFlow {
	locations := make([]*sarif.ThreadFlowLocation, 0, 2)
	locations = append(locations, sarif.NewThreadFlowLocation().
		WithLocation(locationFor(f.Source.File, f.Source.Line).WithMessage(sarif.NewTextMessage("taint source"))))
	locations = append(locations, sarif.NewThreadFlowLocation().
		WithLocation(locationFor(f.Sink.File, f.Sink.Line).WithMessage(sarif.NewTextMessage("taint sink"))))

	threadFlow := sarif.NewThreadFlow().WithLocations(locations)
	return sarif.NewCodeFlow().
		WithThreadFlows([]*sarif.ThreadFlow{threadFlow}).
		WithMessage(sarif.NewTextMessage(fmt.Sprintf("%d-node path", len(f.Nodes))))
}
