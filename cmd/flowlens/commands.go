package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/config"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/render"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/watch"
	"github.com/rendis/flowlens/pkg/mcp"
	"github.com/rendis/flowlens/pkg/schema"
)

// fileAnalyzer analyzes files with configuration-derived options. It also
// satisfies the watch.SourceAnalyzer interface.
type fileAnalyzer struct {
	cfg    config.Config
	spans  bool
	assume bool
	logger *slog.Logger
}

func newFileAnalyzer(cfg config.Config, spans, assume bool, logger *slog.Logger) *fileAnalyzer {
	return &fileAnalyzer{cfg: cfg, spans: spans, assume: assume, logger: logger}
}

func (f *fileAnalyzer) newAnalyzer(path string) *analyzer.Analyzer {
	lib := analyzer.DefaultLibrary()
	if len(f.cfg.Modules) > 0 {
		lib.Modules = f.cfg.Modules
	}
	return analyzer.New(analyzer.Options{
		SourcePath:     path,
		IncludeSpans:   f.spans,
		AssumeImported: f.assume,
		Library:        &lib,
		Logger:         f.logger,
	})
}

// AnalyzeSource analyzes already-read content, as the watcher requires.
func (f *fileAnalyzer) AnalyzeSource(ctx context.Context, path string, content []byte) ([]*schema.AnalysisResult, error) {
	return f.newAnalyzer(path).Analyze(ctx, content)
}

// analyzeFile reads and analyzes one file, optionally selecting one entry point.
func (f *fileAnalyzer) analyzeFile(ctx context.Context, path, workflow string) ([]*schema.AnalysisResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	a := f.newAnalyzer(path)
	if workflow != "" {
		result, err := a.AnalyzeNamed(ctx, content, workflow)
		if err != nil {
			return nil, err
		}
		return []*schema.AnalysisResult{result}, nil
	}
	return a.Analyze(ctx, content)
}

// openStore opens the configured database and applies migrations.
func openStore(ctx context.Context, cfg config.Config) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	s, err := store.NewLibSQLStore(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func runAnalyze(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	path := fs.String("path", "", "source file to analyze")
	workflow := fs.String("workflow", "", "analyze only this entry point")
	spans := fs.Bool("spans", cfg.IncludeSpans, "attach source spans to nodes")
	assume := fs.Bool("assume-imported", cfg.AssumeImported, "treat library names as in scope without imports")
	save := fs.Bool("save", false, "record runs in the history database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("analyze: -path is required")
	}

	fa := newFileAnalyzer(cfg, *spans, *assume, logger)
	results, err := fa.analyzeFile(ctx, *path, *workflow)
	if err != nil {
		return err
	}

	if *save {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		history := store.NewHistory(s)
		for _, result := range results {
			if _, err := history.Append(ctx, result); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func runRender(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	path := fs.String("path", "", "source file to analyze")
	workflow := fs.String("workflow", "", "render only this entry point")
	format := fs.String("format", "mermaid", "output format: mermaid or outline")
	out := fs.String("o", "", "write output to a file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("render: -path is required")
	}

	fa := newFileAnalyzer(cfg, cfg.IncludeSpans, cfg.AssumeImported, logger)
	results, err := fa.analyzeFile(ctx, *path, *workflow)
	if err != nil {
		return err
	}

	var sections []string
	for _, result := range results {
		switch *format {
		case "mermaid":
			model, err := render.Build(result)
			if err != nil {
				return err
			}
			sections = append(sections, render.RenderMermaid(model))
		case "outline":
			sections = append(sections, render.RenderOutline(result))
		default:
			return fmt.Errorf("render: unsupported format %q", *format)
		}
	}
	text := strings.Join(sections, "\n\n") + "\n"

	if *out != "" {
		return os.WriteFile(*out, []byte(text), 0o644)
	}
	_, err = os.Stdout.WriteString(text)
	return err
}

func runQuery(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	path := fs.String("path", "", "source file to analyze")
	workflow := fs.String("workflow", "", "query only this entry point")
	expression := fs.String("e", "", "expression to evaluate")
	engineName := fs.String("engine", cfg.Engine, "expression engine: cel, expr or jq")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *expression == "" {
		return fmt.Errorf("query: -path and -e are required")
	}

	engine, err := expressions.NewEngine(*engineName)
	if err != nil {
		return err
	}

	fa := newFileAnalyzer(cfg, cfg.IncludeSpans, cfg.AssumeImported, logger)
	results, err := fa.analyzeFile(ctx, *path, *workflow)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, result := range results {
		value, err := engine.Evaluate(ctx, *expression, expressions.BuildScope(result))
		if err != nil {
			return fmt.Errorf("evaluate against %q: %w", result.Root.Name, err)
		}
		if err := enc.Encode(map[string]any{"workflow": result.Root.Name, "value": value}); err != nil {
			return err
		}
	}
	return nil
}

func runHistory(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	source := fs.String("source", "", "filter by source path")
	workflow := fs.String("workflow", "", "filter by workflow name")
	limit := fs.Int("limit", cfg.HistoryLimit, "maximum runs to list")
	diff := fs.Bool("diff", false, "diff the two latest runs (requires -source and -workflow)")
	prune := fs.Duration("prune", 0, "delete runs older than this duration instead of listing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if *prune > 0 {
		n, err := s.PruneRuns(ctx, time.Now().UTC().Add(-*prune))
		if err != nil {
			return err
		}
		logger.Info("pruned runs", slog.Int64("count", n))
		return s.Vacuum(ctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *diff {
		if *source == "" || *workflow == "" {
			return fmt.Errorf("history: -diff requires -source and -workflow")
		}
		d, err := store.NewHistory(s).Diff(ctx, *source, *workflow)
		if err != nil {
			return err
		}
		return enc.Encode(d)
	}

	runs, err := s.ListRuns(ctx, store.RunFilter{Source: *source, Workflow: *workflow, Limit: *limit})
	if err != nil {
		return err
	}
	for _, run := range runs {
		run.Result = nil // summaries only; fetch the payload by run ID
	}
	return enc.Encode(runs)
}

func runWatch(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	schedule := fs.String("schedule", cfg.WatchSchedule, "cron expression or descriptor such as @every 1m")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("watch: at least one file path is required")
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	fa := newFileAnalyzer(cfg, cfg.IncludeSpans, cfg.AssumeImported, logger)
	w, err := watch.NewWatcher(store.NewHistory(s), fa, *schedule, paths, logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := mcp.NewFlowlensServer(mcp.FlowlensServerDeps{
		Store:   s,
		History: store.NewHistory(s),
		Config:  cfg,
		Logger:  logger,
	})
	logger.Info("mcp server listening on stdio")
	return srv.Serve(ctx)
}
