// Package watch re-analyzes source files on a cron schedule and records
// each run in the history store, logging stat changes between runs.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// SourceAnalyzer is the interface the watcher uses to analyze a file.
// Satisfied by the analyzer (avoids import cycle).
type SourceAnalyzer interface {
	AnalyzeSource(ctx context.Context, path string, content []byte) ([]*schema.AnalysisResult, error)
}

// Watcher periodically re-analyzes a fixed set of files.
type Watcher struct {
	history  *store.History
	analyzer SourceAnalyzer
	schedule cron.Schedule
	paths    []string
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // paths currently being analyzed (dedup)
}

// NewWatcher creates a Watcher. The schedule accepts standard five-field
// cron expressions and descriptors such as "@every 1m".
func NewWatcher(history *store.History, analyzer SourceAnalyzer, schedule string, paths []string, logger *slog.Logger) (*Watcher, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse watch schedule %q: %w", schedule, err)
	}
	return &Watcher{
		history:  history,
		analyzer: analyzer,
		schedule: sched,
		paths:    paths,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}, nil
}

// Start launches the background watch loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.done != nil {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(watchCtx)
	w.logger.Info("watcher started", slog.Int("paths", len(w.paths)))
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	// Run an initial pass immediately.
	w.tick(ctx)

	for {
		next := w.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.tick(ctx)
		}
	}
}

// tick analyzes every watched path once.
func (w *Watcher) tick(ctx context.Context) {
	for _, path := range w.paths {
		if !w.tryAcquire(path) {
			continue // previous pass still running (dedup)
		}
		if err := w.runPath(ctx, path); err != nil {
			w.logger.Error("watch pass failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		w.release(path)
	}
}

// runPath analyzes one file, records the runs, and logs stat changes.
func (w *Watcher) runPath(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	results, err := w.analyzer.AnalyzeSource(ctx, path, content)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}

	for _, result := range results {
		run, err := w.history.Append(ctx, result)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		w.reportDiff(ctx, run)
	}
	return nil
}

// reportDiff logs the counter deltas against the previous run, if one exists.
func (w *Watcher) reportDiff(ctx context.Context, run *store.Run) {
	diff, err := w.history.Diff(ctx, run.Source, run.Workflow)
	if err != nil {
		var ferr *schema.FlowlensError
		if errors.As(err, &ferr) && ferr.Code == schema.ErrCodeNotFound {
			w.logger.Debug("first run recorded",
				slog.String("workflow", run.Workflow),
				slog.String("source", run.Source),
			)
			return
		}
		w.logger.Error("diff failed",
			slog.String("workflow", run.Workflow),
			slog.String("error", err.Error()),
		)
		return
	}

	if !diff.Changed() {
		w.logger.Debug("no stat changes",
			slog.String("workflow", run.Workflow),
			slog.String("source", run.Source),
		)
		return
	}

	attrs := []any{
		slog.String("workflow", run.Workflow),
		slog.String("source", run.Source),
	}
	for name, delta := range diff.Changes {
		attrs = append(attrs, slog.Int(name, delta))
	}
	w.logger.Info("workflow stats changed", attrs...)
}

// tryAcquire returns true and marks the path as in-flight if it is not already running.
func (w *Watcher) tryAcquire(path string) bool {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	if _, ok := w.inflight[path]; ok {
		return false
	}
	w.inflight[path] = struct{}{}
	return true
}

// release removes the path from the in-flight set.
func (w *Watcher) release(path string) {
	w.inflightMu.Lock()
	defer w.inflightMu.Unlock()
	delete(w.inflight, path)
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return nil
	}

	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil

	w.logger.Info("watcher stopped")
	return nil
}
