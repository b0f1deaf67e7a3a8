// Package metrics exposes prometheus/client_golang counters and gauges for
// the orchestrator's activity, following the package-level metric
// variables + registration-in-init() idiom used throughout AleutianLocal's
// per-package metrics.go files (e.g. services/trace/cache/metrics.go),
// adapted here to the plain client_golang API rather than the OpenTelemetry
// wrapper that repo layers on top, since taintgraph wires client_golang
// directly and does not carry an OpenTelemetry collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DispatchedSearches counts Path Search tasks the orchestrator has
	// scheduled, one per distinct source×sink pair.
	DispatchedSearches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taintgraph_dispatched_searches_total",
		Help: "Total number of path searches dispatched by the orchestrator.",
	})

	// EmittedFindings counts path findings forwarded to the outbound
	// channel.
	EmittedFindings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taintgraph_emitted_findings_total",
		Help: "Total number of path findings emitted.",
	})

	// CapsHit counts searches in which a path-count or depth cap was
	// reached, so the graph was not searched exhaustively. Each such
	// search is counted once.
	CapsHit = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taintgraph_caps_hit_total",
		Help: "Total number of searches that terminated due to a resource cap.",
	})

	// InFlightSearches gauges the number of path searches currently
	// running.
	InFlightSearches = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taintgraph_in_flight_searches",
		Help: "Number of path searches currently executing.",
	})
)

// Registry is a dedicated prometheus registry (rather than the global
// default) so cmd/taintgraph can expose exactly these metrics on /metrics
// without pulling in Go-runtime collectors by accident when embedded as a
// library.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(DispatchedSearches, EmittedFindings, CapsHit, InFlightSearches)
}
