package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/config"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

const checkoutSource = `
import { defineWorkflow } from "flowscript";
const checkout = defineWorkflow("checkout", { billing });
checkout(async (step) => {
	await step("charge", billing.charge);
	await step("notify", mailer.send);
});
`

func newTestServer(t *testing.T) (*FlowlensServer, *store.LibSQLStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewLibSQLStore(fmt.Sprintf("file:%s", path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	cfg := config.Default()
	srv := NewFlowlensServer(FlowlensServerDeps{
		Store:   s,
		History: store.NewHistory(s),
		Config:  cfg,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, s
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkout.ts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), target))
}

func historyResult(source, workflow string, steps int) *schema.AnalysisResult {
	return &schema.AnalysisResult{
		Root: &schema.WorkflowNode{Name: workflow, Kind: schema.EntryWorkflow},
		Metadata: schema.Metadata{
			AnalyzedAt: time.Now().UTC(),
			RunID:      uuid.NewString(),
			Source:     source,
			Stats:      schema.Stats{TotalSteps: steps, MaxDepth: 1},
		},
	}
}

// --- Tests ---

func TestAnalyzeTool(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.analyze", map[string]any{"path": path})
	result, err := srv.handleAnalyze(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Results []*schema.AnalysisResult `json:"results"`
	}
	unmarshalResult(t, result, &payload)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "checkout", payload.Results[0].Root.Name)
	assert.Equal(t, 2, payload.Results[0].Metadata.Stats.TotalSteps)
}

func TestAnalyzeToolSavesRuns(t *testing.T) {
	srv, s := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.analyze", map[string]any{"path": path, "save": "true"})
	result, err := srv.handleAnalyze(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	runs, err := s.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "checkout", runs[0].Workflow)
	assert.Equal(t, int64(1), runs[0].Sequence)
}

func TestAnalyzeToolMissingPath(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleAnalyze(context.Background(), buildRequest("flowlens.analyze", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAnalyzeToolUnknownWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.analyze", map[string]any{"path": path, "workflow": "missing"})
	result, err := srv.handleAnalyze(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRenderToolMermaid(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.render", map[string]any{"path": path, "format": "mermaid"})
	result, err := srv.handleRender(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractText(t, result)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "checkout (workflow)")
}

func TestRenderToolOutline(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.render", map[string]any{"path": path, "format": "outline"})
	result, err := srv.handleRender(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractText(t, result)
	assert.Contains(t, text, "workflow checkout (workflow)")
	assert.Contains(t, text, `step "charge" -> billing.charge`)
}

func TestRenderToolFromRunID(t *testing.T) {
	srv, s := newTestServer(t)
	history := store.NewHistory(s)

	run, err := history.Append(context.Background(), historyResult("checkout.ts", "checkout", 2))
	require.NoError(t, err)

	req := buildRequest("flowlens.render", map[string]any{"run_id": run.ID, "format": "outline"})
	result, err := srv.handleRender(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "workflow checkout")
}

func TestRenderToolMissingInputs(t *testing.T) {
	srv, _ := newTestServer(t)

	// No format.
	result, err := srv.handleRender(context.Background(), buildRequest("flowlens.render", map[string]any{"path": "x.ts"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	// Neither path nor run_id.
	result, err = srv.handleRender(context.Background(), buildRequest("flowlens.render", map[string]any{"format": "outline"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestQueryTool(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.query", map[string]any{
		"path":       path,
		"expression": "stats.total_steps == 2",
	})
	result, err := srv.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Results []struct {
			Workflow string `json:"workflow"`
			Value    any    `json:"value"`
		} `json:"results"`
	}
	unmarshalResult(t, result, &payload)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "checkout", payload.Results[0].Workflow)
	assert.Equal(t, true, payload.Results[0].Value)
}

func TestQueryToolJQEngine(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	req := buildRequest("flowlens.query", map[string]any{
		"path":       path,
		"engine":     "jq",
		"expression": ".steps | map(.id)",
	})
	result, err := srv.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Results []struct {
			Value []any `json:"value"`
		} `json:"results"`
	}
	unmarshalResult(t, result, &payload)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, []any{"charge", "notify"}, payload.Results[0].Value)
}

func TestQueryToolErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeSource(t, checkoutSource)

	// Missing expression.
	result, err := srv.handleQuery(context.Background(), buildRequest("flowlens.query", map[string]any{"path": path}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	// Unknown engine.
	req := buildRequest("flowlens.query", map[string]any{"path": path, "engine": "lua", "expression": "1"})
	result, err = srv.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHistoryToolList(t *testing.T) {
	srv, s := newTestServer(t)
	history := store.NewHistory(s)
	ctx := context.Background()

	_, err := history.Append(ctx, historyResult("checkout.ts", "checkout", 2))
	require.NoError(t, err)
	_, err = history.Append(ctx, historyResult("checkout.ts", "checkout", 3))
	require.NoError(t, err)

	result, err := srv.handleHistory(ctx, buildRequest("flowlens.history", map[string]any{"source": "checkout.ts"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Runs []map[string]any `json:"runs"`
	}
	unmarshalResult(t, result, &payload)
	require.Len(t, payload.Runs, 2)
	// Trimmed summaries never embed the full result payload.
	_, hasResult := payload.Runs[0]["result"]
	assert.False(t, hasResult)
}

func TestHistoryToolDiff(t *testing.T) {
	srv, s := newTestServer(t)
	history := store.NewHistory(s)
	ctx := context.Background()

	_, err := history.Append(ctx, historyResult("checkout.ts", "checkout", 2))
	require.NoError(t, err)
	_, err = history.Append(ctx, historyResult("checkout.ts", "checkout", 3))
	require.NoError(t, err)

	req := buildRequest("flowlens.history", map[string]any{
		"source":   "checkout.ts",
		"workflow": "checkout",
		"diff":     "true",
	})
	result, err := srv.handleHistory(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var diff store.StatsDiff
	unmarshalResult(t, result, &diff)
	assert.Equal(t, map[string]int{"total_steps": 1}, diff.Changes)
}

func TestHistoryToolDiffRequiresSourceAndWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)

	req := buildRequest("flowlens.history", map[string]any{"diff": "true", "source": "checkout.ts"})
	result, err := srv.handleHistory(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
