package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rendis/flowlens/pkg/schema"
)

// History provides sequenced run-history operations on top of a LibSQLStore.
// Each source/workflow pair gets a contiguous, monotonically increasing
// sequence of runs so later runs can be diffed against earlier ones.
type History struct {
	store *LibSQLStore
}

// NewHistory wraps a LibSQLStore to provide run-history operations.
func NewHistory(s *LibSQLStore) *History {
	return &History{store: s}
}

// Append persists an analysis result with a monotonically increasing
// per-source/workflow sequence. Returns the stored run.
func (h *History) Append(ctx context.Context, result *schema.AnalysisResult) (*Run, error) {
	run, err := NewRun(result)
	if err != nil {
		return nil, err
	}
	db := h.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Acquire the write lock up front. In WAL mode, BeginTx alone may start
	// a deferred transaction, allowing concurrent writers to interleave the
	// sequence read and write below.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return nil, fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM runs WHERE source = ? AND workflow = ?`,
		run.Source, run.Workflow,
	).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("get next sequence: %w", err)
	}
	run.Sequence = seq

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Workflow, run.Kind, run.Sequence, string(run.Result),
		run.Stats.TotalSteps, run.Stats.ParallelCount, run.Stats.RaceCount,
		run.Stats.ConditionalCount, run.Stats.SwitchCount, run.Stats.LoopCount,
		run.Stats.StreamCount, run.Stats.SagaStepCount, run.Stats.WorkflowRefCount,
		run.Stats.MaxDepth, run.Warnings, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// Timeline returns all runs for a source/workflow pair ordered by sequence.
// Returns an error if sequence gaps are detected.
func (h *History) Timeline(ctx context.Context, source, workflow string) ([]*Run, error) {
	rows, err := h.store.DB().QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE source = ? AND workflow = ?
		 ORDER BY sequence ASC`, source, workflow)
	if err != nil {
		return nil, fmt.Errorf("timeline query: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, r := range runs {
		expected := int64(i + 1)
		if r.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in history for %s/%s: expected %d, got %d",
				source, workflow, expected, r.Sequence)
		}
	}
	return runs, nil
}

// StatsDiff is the per-counter change between two consecutive runs.
type StatsDiff struct {
	Previous *Run           `json:"previous"`
	Current  *Run           `json:"current"`
	Changes  map[string]int `json:"changes"` // counter name -> delta, only nonzero entries
}

// Changed reports whether any counter moved between the two runs.
func (d *StatsDiff) Changed() bool { return len(d.Changes) > 0 }

// Diff compares the two most recent runs for a source/workflow pair.
// Returns a NOT_FOUND error when fewer than two runs exist.
func (h *History) Diff(ctx context.Context, source, workflow string) (*StatsDiff, error) {
	rows, err := h.store.DB().QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE source = ? AND workflow = ?
		 ORDER BY sequence DESC LIMIT 2`, source, workflow)
	if err != nil {
		return nil, fmt.Errorf("diff query: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"not enough history for %s/%s: need 2 runs, have %d", source, workflow, len(runs))
	}

	current, previous := runs[0], runs[1]
	return &StatsDiff{
		Previous: previous,
		Current:  current,
		Changes:  diffStats(previous.Stats, current.Stats, previous.Warnings, current.Warnings),
	}, nil
}

func diffStats(prev, curr schema.Stats, prevWarn, currWarn int) map[string]int {
	changes := make(map[string]int)
	add := func(name string, before, after int) {
		if after != before {
			changes[name] = after - before
		}
	}
	add("total_steps", prev.TotalSteps, curr.TotalSteps)
	add("parallel_count", prev.ParallelCount, curr.ParallelCount)
	add("race_count", prev.RaceCount, curr.RaceCount)
	add("conditional_count", prev.ConditionalCount, curr.ConditionalCount)
	add("switch_count", prev.SwitchCount, curr.SwitchCount)
	add("loop_count", prev.LoopCount, curr.LoopCount)
	add("stream_count", prev.StreamCount, curr.StreamCount)
	add("saga_step_count", prev.SagaStepCount, curr.SagaStepCount)
	add("workflow_ref_count", prev.WorkflowRefCount, curr.WorkflowRefCount)
	add("max_depth", prev.MaxDepth, curr.MaxDepth)
	add("warnings", prevWarn, currWarn)
	return changes
}
