package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/taintgraph/taintgraph/pkg/config"
	"github.com/taintgraph/taintgraph/pkg/detect"
	"github.com/taintgraph/taintgraph/pkg/detect/regex"
	"github.com/taintgraph/taintgraph/pkg/graph/sqlitegraph"
	"github.com/taintgraph/taintgraph/pkg/graphbuild"
	"github.com/taintgraph/taintgraph/pkg/logging"
	"github.com/taintgraph/taintgraph/pkg/orchestrator"
	"github.com/taintgraph/taintgraph/pkg/report"
	"github.com/taintgraph/taintgraph/pkg/search"
)

var scanCmd = &cobra.Command{
	Use:   "scan <repo>",
	Short: "Scan a repository for tainted source-to-sink paths",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

var (
	buildCommandFlag string
	workersFlag      int
	pathCapFlag      int
	depthCapFlag     int
	maxInFlightFlag  int
	outputFlag       string
	outputFileFlag   string
	watchFlag        bool
	serveFlag        string
)

func init() {
	scanCmd.Flags().StringVar(&buildCommandFlag, "build-command", "", "command to run before scanning (e.g. to generate sources)")
	scanCmd.Flags().IntVar(&workersFlag, "workers", 0, "detector worker count per rule kind (0 = use config/default)")
	scanCmd.Flags().IntVar(&pathCapFlag, "path-cap", 0, "maximum paths reported per source/sink pair (0 = use config/default)")
	scanCmd.Flags().IntVar(&depthCapFlag, "depth-cap", 0, "maximum traversal depth per search (0 = use config/default)")
	scanCmd.Flags().IntVar(&maxInFlightFlag, "max-in-flight", 0, "maximum concurrently running searches (0 = use config/default, which is unbounded)")
	scanCmd.Flags().StringVar(&outputFlag, "output", "", "report format: text|json|sarif (default text)")
	scanCmd.Flags().StringVar(&outputFileFlag, "output-file", "", "write the report to this file instead of stdout")
	scanCmd.Flags().BoolVar(&watchFlag, "watch", false, "re-run the scan whenever a source file changes")
	scanCmd.Flags().StringVar(&serveFlag, "serve", "", "expose live findings and metrics on this address (e.g. :8080)")
}

func loadConfig() (config.Config, error) {
	if configFlag == "" {
		return config.Default(), nil
	}
	return config.Load(configFlag)
}

func runScan(cmd *cobra.Command, args []string) error {
	repo := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(&cfg)
	if cfg.Verbose {
		logging.SetLevel(logging.LevelDebug)
	}

	if buildCommandFlag != "" {
		if err := runBuildCommand(cmd.Context(), buildCommandFlag, repo); err != nil {
			return fmt.Errorf("build-command: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *report.Server
	if serveFlag != "" {
		srv = report.NewServer()
		go func() {
			if err := srv.Run(ctx, serveFlag); err != nil {
				logging.Default().Warnf("serve: %v", err)
			}
		}()
	}

	if !watchFlag {
		return scanOnce(ctx, repo, cfg, srv)
	}
	return scanAndWatch(ctx, repo, cfg, srv)
}

func applyFlagOverrides(cfg *config.Config) {
	if workersFlag > 0 {
		cfg.Workers = workersFlag
	}
	if pathCapFlag > 0 {
		cfg.PathCap = pathCapFlag
	}
	if depthCapFlag > 0 {
		cfg.DepthCap = depthCapFlag
	}
	if maxInFlightFlag > 0 {
		cfg.MaxInFlight = maxInFlightFlag
	}
	if outputFlag != "" {
		cfg.Output = outputFlag
	}
	if verboseFlag {
		cfg.Verbose = true
	}
}

// scanOnce runs detectors, builds the graph, dispatches the orchestrator,
// and reports the resulting findings exactly once.
func scanOnce(ctx context.Context, repo string, cfg config.Config, srv *report.Server) error {
	graphCh := make(chan graphbuild.Status, 1)
	builder := graphbuild.NewBuilder()
	dbPath := filepath.Join(os.TempDir(), fmt.Sprintf("taintgraph-%d.db", time.Now().UnixNano()))
	builder.BuildAsync(ctx, repo, dbPath, graphCh)

	status, ok := <-graphCh
	if !ok || status.Status != "success" {
		if status.Error != "" {
			return fmt.Errorf("graph build failed for %s: %s", repo, status.Error)
		}
		return fmt.Errorf("graph build failed for %s", repo)
	}

	g, err := sqlitegraph.Open(status.DatabasePath)
	if err != nil {
		return fmt.Errorf("open graph database: %w", err)
	}
	defer g.Close()
	defer os.Remove(status.DatabasePath)

	sources, sinks, sanitizers, err := startDetectors(repo, cfg)
	if err != nil {
		return err
	}

	out := make(chan search.Finding, 64)
	orch := orchestrator.New(orchestrator.Config{
		Sources:     sources,
		Sinks:       sinks,
		Sanitizers:  sanitizers,
		Graph:       g,
		Out:         out,
		Limits:      search.Limits{MaxPaths: cfg.PathCap, MaxDepth: cfg.DepthCap},
		MaxInFlight: cfg.MaxInFlight,
	})

	var findings []search.Finding
	done := make(chan struct{})
	go func() {
		defer close(done)
		for f := range out {
			findings = append(findings, f)
			if srv != nil {
				srv.Broadcast(f)
			}
		}
	}()

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("scan %s: %w", repo, err)
	}
	<-done

	return writeReport(findings, cfg)
}

func scanAndWatch(ctx context.Context, repo string, cfg config.Config, srv *report.Server) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	if err := filepath.Walk(repo, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	if err := scanOnce(ctx, repo, cfg, srv); err != nil {
		logging.Default().Warnf("watch: initial scan failed: %v", err)
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			debounce.Reset(300 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Default().Warnf("watch: %v", err)
		case <-debounce.C:
			if err := scanOnce(ctx, repo, cfg, srv); err != nil {
				logging.Default().Warnf("watch: rescan failed: %v", err)
			}
		}
	}
}

func startDetectors(repo string, cfg config.Config) (chan detect.Detection, chan detect.Detection, chan detect.Detection, error) {
	sources := make(chan detect.Detection, 256)
	sinks := make(chan detect.Detection, 256)
	sanitizers := make(chan detect.Detection, 256)

	specs := []struct {
		purpose string
		file    string
		out     chan detect.Detection
	}{
		{string(detect.KindSource), "sources.json", sources},
		{string(detect.KindSink), "sinks.json", sinks},
		{string(detect.KindSanitizer), "sanitizers.json", sanitizers},
	}

	for _, s := range specs {
		scanner, err := regex.NewScanner(s.purpose, filepath.Join(cfg.RulesDir, s.file), cfg.Workers)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load %s rules: %w", s.purpose, err)
		}
		go func(sc *regex.Scanner, out chan detect.Detection) {
			if err := sc.Run(repo, out); err != nil {
				logging.Default().Warnf("scan %s rules: %v", sc.Purpose, err)
			}
		}(scanner, s.out)
	}

	return sources, sinks, sanitizers, nil
}

func writeReport(findings []search.Finding, cfg config.Config) error {
	w := os.Stdout
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer f.Close()
		return exportTo(findings, cfg.Output, f)
	}
	return exportTo(findings, cfg.Output, w)
}

func runBuildCommand(ctx context.Context, command, repo string) error {
	c := exec.CommandContext(ctx, "sh", "-c", command)
	c.Dir = repo
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func exportTo(findings []search.Finding, format string, w *os.File) error {
	switch format {
	case "json":
		return report.NewJSONExporter(true).ExportToWriter(findings, w)
	case "sarif":
		return report.NewSARIFExporter().ExportToWriter(findings, w)
	default:
		return report.NewTextExporter(false).ExportToWriter(findings, w)
	}
}
