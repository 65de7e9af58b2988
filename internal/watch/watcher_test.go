package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// fakeAnalyzer returns one fixed-shape result per call, with a step count
// that changes between passes.
type fakeAnalyzer struct {
	steps int
	calls int
}

func (f *fakeAnalyzer) AnalyzeSource(_ context.Context, path string, _ []byte) ([]*schema.AnalysisResult, error) {
	f.calls++
	return []*schema.AnalysisResult{{
		Root: &schema.WorkflowNode{Name: "checkout", Kind: schema.EntryWorkflow},
		Metadata: schema.Metadata{
			AnalyzedAt: time.Now().UTC(),
			RunID:      uuid.NewString(),
			Source:     path,
			Stats:      schema.Stats{TotalSteps: f.steps, MaxDepth: 1},
		},
	}}, nil
}

func newTestHistory(t *testing.T) *store.History {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.db")
	s, err := store.NewLibSQLStore(fmt.Sprintf("file:%s", path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return store.NewHistory(s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func watchedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkout.ts")
	require.NoError(t, os.WriteFile(path, []byte("// watched"), 0o644))
	return path
}

func TestNewWatcherRejectsBadSchedule(t *testing.T) {
	_, err := NewWatcher(newTestHistory(t), &fakeAnalyzer{}, "not a schedule", nil, testLogger())
	assert.Error(t, err)
}

func TestWatcherTickRecordsSequencedRuns(t *testing.T) {
	history := newTestHistory(t)
	analyzer := &fakeAnalyzer{steps: 2}
	path := watchedFile(t)

	w, err := NewWatcher(history, analyzer, "@every 1h", []string{path}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	w.tick(ctx)
	analyzer.steps = 3
	w.tick(ctx)

	assert.Equal(t, 2, analyzer.calls)

	runs, err := history.Timeline(ctx, path, "checkout")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].Sequence)
	assert.Equal(t, int64(2), runs[1].Sequence)
	assert.Equal(t, 3, runs[1].Stats.TotalSteps)

	diff, err := history.Diff(ctx, path, "checkout")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"total_steps": 1}, diff.Changes)
}

func TestWatcherTickSkipsMissingFile(t *testing.T) {
	history := newTestHistory(t)
	analyzer := &fakeAnalyzer{steps: 1}

	w, err := NewWatcher(history, analyzer, "@every 1h", []string{"/nope/missing.ts"}, testLogger())
	require.NoError(t, err)

	w.tick(context.Background())
	assert.Equal(t, 0, analyzer.calls)
}

func TestWatcherInflightDedup(t *testing.T) {
	w, err := NewWatcher(newTestHistory(t), &fakeAnalyzer{}, "@every 1h", nil, testLogger())
	require.NoError(t, err)

	assert.True(t, w.tryAcquire("a.ts"))
	assert.False(t, w.tryAcquire("a.ts"))
	w.release("a.ts")
	assert.True(t, w.tryAcquire("a.ts"))
}

func TestWatcherStartStop(t *testing.T) {
	history := newTestHistory(t)
	analyzer := &fakeAnalyzer{steps: 1}
	path := watchedFile(t)

	w, err := NewWatcher(history, analyzer, "@every 1h", []string{path}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx), "second start must fail")

	// The initial pass runs immediately on start.
	require.Eventually(t, func() bool {
		runs, err := history.Timeline(ctx, path, "checkout")
		return err == nil && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	// Stop is idempotent.
	require.NoError(t, w.Stop())
}
