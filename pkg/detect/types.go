// Package detect defines the shared detection-record shape produced by
// source, sink, and sanitizer detectors and consumed by the orchestrator.
package detect

// Kind identifies which of the three detector streams a Detection came from.
type Kind string

const (
	KindSource    Kind = "source"
	KindSink      Kind = "sink"
	KindSanitizer Kind = "sanitizer"
)

// Detection is one regex (or other detector) hit against a line of source.
type Detection struct {
	Kind        Kind
	RuleName    string
	File        string
	Line        int
	MatchText   string
	Confidence  float64
	Description string
	LineContent string
}

// Valid reports whether d has the fields required to be located in a graph.
// Producers must not emit records failing this check; the orchestrator
// drops any that do (spec §4.1, §7).
func (d Detection) Valid() bool {
	return d.File != "" && d.Line > 0
}

// PairKey is the canonical identity of a source x sink pair used for
// at-most-once dispatch. It is comparable and usable directly as a map key.
type PairKey struct {
	SourceFile string
	SourceLine int
	SinkFile   string
	SinkLine   int
}

// KeyFor builds the PairKey for a (source, sink) detection pair.
func KeyFor(source, sink Detection) PairKey {
	return PairKey{
		SourceFile: source.File,
		SourceLine: source.Line,
		SinkFile:   sink.File,
		SinkLine:   sink.Line,
	}
}
