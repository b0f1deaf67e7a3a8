// Package orchestrator implements the streaming path-discovery engine: it
// consumes three concurrent detector streams, maintains the running
// cross-product of distinct source x sink pairs, dispatches a bounded
// search per new pair, and multiplexes results onto an outbound finding
// channel.
//
// It is grounded on the original Paths/Orchestrator.py but drops the
// poll-with-timeout queue monitors in favor of a single select-based
// ingest loop, and replaces the hand-rolled task/cancellation bookkeeping
// with golang.org/x/sync/errgroup (spec §9: one concurrency substrate,
// no adapter layer).
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taintgraph/taintgraph/pkg/detect"
	"github.com/taintgraph/taintgraph/pkg/graph"
	"github.com/taintgraph/taintgraph/pkg/logging"
	"github.com/taintgraph/taintgraph/pkg/metrics"
	"github.com/taintgraph/taintgraph/pkg/search"
)

// Config configures an Orchestrator.
type Config struct {
	Sources    <-chan detect.Detection
	Sinks      <-chan detect.Detection
	Sanitizers <-chan detect.Detection
	Graph      graph.Handle
	Out        chan<- search.Finding

	Strategy search.Strategy // defaults to search.DFS{}
	Limits   search.Limits   // defaults to search.DefaultLimits()

	// MaxInFlight bounds concurrently running searches; 0 means unbounded.
	MaxInFlight int

	Logger *logging.Logger
}

// Orchestrator is the single source of truth for known sources, sinks, the
// cumulative sanitizer set, and the dispatched-pair set (spec §4.3).
type Orchestrator struct {
	cfg Config

	// RunID identifies this orchestrator instance in logs and reports; it
	// has no bearing on dispatch semantics.
	RunID string

	mu              sync.Mutex
	sources         []detect.Detection
	sinks           []detect.Detection
	sanitizers      []detect.Detection
	dispatchedPairs map[detect.PairKey]bool

	logicalClock uint64

	group  *errgroup.Group
	cancel context.CancelFunc
	done   chan struct{} // closed once group.Wait() returns

	sem chan struct{} // in-flight search semaphore, nil when unbounded
}

// New builds an Orchestrator from cfg, filling in defaults.
func New(cfg Config) *Orchestrator {
	if cfg.Strategy == nil {
		cfg.Strategy = search.DFS{}
	}
	if cfg.Limits.MaxPaths <= 0 {
		cfg.Limits = search.DefaultLimits()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	o := &Orchestrator{
		cfg:             cfg,
		RunID:           uuid.NewString(),
		dispatchedPairs: make(map[detect.PairKey]bool),
		done:            make(chan struct{}),
	}
	if cfg.MaxInFlight > 0 {
		o.sem = make(chan struct{}, cfg.MaxInFlight)
	}
	return o
}

// Start begins reading the three input channels and dispatching searches.
// It returns when all input channels are closed and drained, all
// dispatched searches have completed, or ctx is cancelled. It closes the
// outbound channel before returning (spec §4.3 shutdown semantics).
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	o.group = group
	defer close(o.cfg.Out)

	group.Go(func() error {
		return o.ingest(gctx)
	})

	err := group.Wait()
	cancel()
	close(o.done)
	return err
}

// Stop requests graceful shutdown: no new pairs are dispatched, in-flight
// searches are cancelled, and Stop blocks until they have drained (the
// same signal Start's caller waits on), so a caller that calls Stop can
// rely on quiescence the moment it returns.
func (o *Orchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	<-o.done
}

// ingest multiplexes the three detector channels, growing the known
// sources/sinks/sanitizers collections and dispatching new pairs as they're
// discovered (spec §4.3 steps 1-3).
func (o *Orchestrator) ingest(ctx context.Context) error {
	sources, sinks, sanitizers := o.cfg.Sources, o.cfg.Sinks, o.cfg.Sanitizers

	for sources != nil || sinks != nil || sanitizers != nil {
		select {
		case <-ctx.Done():
			return nil

		case d, ok := <-sources:
			if !ok {
				sources = nil
				continue
			}
			o.handleSource(ctx, d)

		case d, ok := <-sinks:
			if !ok {
				sinks = nil
				continue
			}
			o.handleSink(ctx, d)

		case d, ok := <-sanitizers:
			if !ok {
				sanitizers = nil
				continue
			}
			o.handleSanitizer(d)
		}
	}
	return nil
}

func (o *Orchestrator) handleSource(ctx context.Context, src detect.Detection) {
	if !src.Valid() {
		o.cfg.Logger.Debugf("dropping unusable source record: %+v", src)
		return
	}

	o.mu.Lock()
	o.sources = append(o.sources, src)
	sinks := append([]detect.Detection(nil), o.sinks...)
	o.mu.Unlock()

	for _, sink := range sinks {
		o.dispatchIfNew(ctx, src, sink)
	}
}

func (o *Orchestrator) handleSink(ctx context.Context, sink detect.Detection) {
	if !sink.Valid() {
		o.cfg.Logger.Debugf("dropping unusable sink record: %+v", sink)
		return
	}

	o.mu.Lock()
	o.sinks = append(o.sinks, sink)
	sources := append([]detect.Detection(nil), o.sources...)
	o.mu.Unlock()

	for _, src := range sources {
		o.dispatchIfNew(ctx, src, sink)
	}
}

func (o *Orchestrator) handleSanitizer(san detect.Detection) {
	if !san.Valid() {
		o.cfg.Logger.Debugf("dropping unusable sanitizer record: %+v", san)
		return
	}
	o.mu.Lock()
	o.sanitizers = append(o.sanitizers, san)
	o.mu.Unlock()
}

// dispatchIfNew dispatches a search for (src, sink) exactly once per pair
// key, for the lifetime of this orchestrator run (spec invariant 1).
func (o *Orchestrator) dispatchIfNew(ctx context.Context, src, sink detect.Detection) {
	key := detect.KeyFor(src, sink)

	o.mu.Lock()
	if o.dispatchedPairs[key] {
		o.mu.Unlock()
		return
	}
	o.dispatchedPairs[key] = true
	// Snapshot the sanitizer set at dispatch time (spec invariant 2): later
	// arrivals never retroactively modify this search's view.
	sanitizers := append([]detect.Detection(nil), o.sanitizers...)
	o.mu.Unlock()

	metrics.DispatchedSearches.Inc()
	o.group.Go(func() error {
		return o.runSearch(ctx, src, sink, sanitizers)
	})
}

func (o *Orchestrator) runSearch(ctx context.Context, src, sink detect.Detection, sanitizers []detect.Detection) error {
	if o.sem != nil {
		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-ctx.Done():
			return nil
		}
	}

	in := search.Input{
		Source:     src,
		Sink:       sink,
		Sanitizers: sanitizers,
		Graph:      o.cfg.Graph,
		Limits:     o.cfg.Limits,
	}

	metrics.InFlightSearches.Inc()
	defer metrics.InFlightSearches.Dec()

	findings := make(chan search.Finding)
	done := make(chan error, 1)
	go func() {
		done <- o.cfg.Strategy.Search(ctx, in, findings)
		close(findings)
	}()

	for f := range findings {
		f.ID = uuid.NewString()
		f.LogicalTime = atomic.AddUint64(&o.logicalClock, 1)
		metrics.EmittedFindings.Inc()
		select {
		case o.cfg.Out <- f:
		case <-ctx.Done():
		}
	}

	if err := <-done; err != nil && ctx.Err() == nil {
		o.cfg.Logger.Warnf("run %s: search %s->%s failed: %v", o.RunID, src.File, sink.File, err)
	}
	return nil
}
