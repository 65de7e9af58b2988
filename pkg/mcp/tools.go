package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/render"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// handleAnalyze analyzes a source file and returns the per-entry-point results.
func (s *FlowlensServer) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path is required"), nil
	}
	workflow := req.GetString("workflow", "")
	spans := boolParam(req, "include_spans", s.cfg.IncludeSpans)
	assume := boolParam(req, "assume_imported", s.cfg.AssumeImported)
	save := boolParam(req, "save", false)

	results, analyzeErr := s.analyzePath(ctx, path, workflow, spans, assume)
	if analyzeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", analyzeErr)), nil
	}

	if save && s.history != nil {
		for _, result := range results {
			if _, saveErr := s.history.Append(ctx, result); saveErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to record run: %v", saveErr)), nil
			}
		}
	}

	return marshalResult(map[string]any{"results": results})
}

// handleRender renders a workflow as Mermaid or a text outline.
func (s *FlowlensServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}

	results, resErr := s.resolveResults(ctx, req)
	if resErr != nil {
		return mcp.NewToolResultError(resErr.Error()), nil
	}

	var sections []string
	for _, result := range results {
		switch format {
		case "mermaid":
			model, buildErr := render.Build(result)
			if buildErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", buildErr)), nil
			}
			sections = append(sections, render.RenderMermaid(model))
		case "outline":
			sections = append(sections, render.RenderOutline(result))
		default:
			return mcp.NewToolResultError("unsupported format"), nil
		}
	}

	return mcp.NewToolResultText(strings.Join(sections, "\n\n")), nil
}

// handleQuery evaluates an expression against analysis results.
func (s *FlowlensServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	engineName := req.GetString("engine", s.cfg.Engine)

	engine, engErr := expressions.NewEngine(engineName)
	if engErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("engine setup failed: %v", engErr)), nil
	}

	results, resErr := s.resolveResults(ctx, req)
	if resErr != nil {
		return mcp.NewToolResultError(resErr.Error()), nil
	}

	var values []map[string]any
	for _, result := range results {
		value, evalErr := engine.Evaluate(ctx, expression, expressions.BuildScope(result))
		if evalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("evaluation failed for %q: %v", result.Root.Name, evalErr)), nil
		}
		values = append(values, map[string]any{
			"workflow": result.Root.Name,
			"value":    value,
		})
	}

	return marshalResult(map[string]any{"results": values})
}

// handleHistory lists recorded runs or diffs the two most recent ones.
func (s *FlowlensServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("history store is not configured"), nil
	}

	source := req.GetString("source", "")
	workflow := req.GetString("workflow", "")

	if boolParam(req, "diff", false) {
		if source == "" || workflow == "" {
			return mcp.NewToolResultError("diff requires both source and workflow"), nil
		}
		diff, diffErr := s.history.Diff(ctx, source, workflow)
		if diffErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("diff failed: %v", diffErr)), nil
		}
		return marshalResult(diff)
	}

	limit := 20
	if v := req.GetString("limit", ""); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			limit = n
		}
	}

	runs, listErr := s.store.ListRuns(ctx, store.RunFilter{
		Source:   source,
		Workflow: workflow,
		Limit:    limit,
	})
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", listErr)), nil
	}

	// Trim the embedded result payloads; agents fetch them via run_id.
	summaries := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, map[string]any{
			"id":         run.ID,
			"source":     run.Source,
			"workflow":   run.Workflow,
			"kind":       run.Kind,
			"sequence":   run.Sequence,
			"stats":      run.Stats,
			"warnings":   run.Warnings,
			"created_at": run.CreatedAt,
		})
	}
	return marshalResult(map[string]any{"runs": summaries})
}

// --- Helpers ---

// resolveResults loads results from a recorded run or by analyzing a file.
func (s *FlowlensServer) resolveResults(ctx context.Context, req mcp.CallToolRequest) ([]*schema.AnalysisResult, error) {
	runID := req.GetString("run_id", "")
	path := req.GetString("path", "")

	if runID == "" && path == "" {
		return nil, fmt.Errorf("one of path or run_id is required")
	}

	if runID != "" {
		if s.store == nil {
			return nil, fmt.Errorf("history store is not configured")
		}
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("run lookup failed: %w", err)
		}
		result, err := run.Unmarshal()
		if err != nil {
			return nil, fmt.Errorf("run decode failed: %w", err)
		}
		return []*schema.AnalysisResult{result}, nil
	}

	workflow := req.GetString("workflow", "")
	return s.analyzePath(ctx, path, workflow, s.cfg.IncludeSpans, s.cfg.AssumeImported)
}

// analyzePath reads and analyzes one file, optionally selecting one entry point.
func (s *FlowlensServer) analyzePath(ctx context.Context, path, workflow string, spans, assume bool) ([]*schema.AnalysisResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lib := analyzer.DefaultLibrary()
	if len(s.cfg.Modules) > 0 {
		lib.Modules = s.cfg.Modules
	}
	a := analyzer.New(analyzer.Options{
		SourcePath:     path,
		IncludeSpans:   spans,
		AssumeImported: assume,
		Library:        &lib,
		Logger:         s.logger,
	})

	if workflow != "" {
		result, err := a.AnalyzeNamed(ctx, content, workflow)
		if err != nil {
			return nil, err
		}
		return []*schema.AnalysisResult{result}, nil
	}
	return a.Analyze(ctx, content)
}

// boolParam reads a string tool argument as a boolean with a default.
func boolParam(req mcp.CallToolRequest, key string, def bool) bool {
	switch req.GetString(key, "") {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
