// Package mcp exposes flowlens analysis over the Model Context Protocol.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlens/internal/config"
	"github.com/rendis/flowlens/internal/store"
)

// FlowlensServerDeps holds the dependencies for creating a FlowlensServer.
type FlowlensServerDeps struct {
	Store   store.Store
	History *store.History
	Config  config.Config
	Logger  *slog.Logger
}

// FlowlensServer wraps an MCP server with flowlens-specific tool handlers.
type FlowlensServer struct {
	store     store.Store
	history   *store.History
	cfg       config.Config
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowlensServer creates a new FlowlensServer with all 4 tools registered.
func NewFlowlensServer(deps FlowlensServerDeps) *FlowlensServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &FlowlensServer{
		store:   deps.Store,
		history: deps.History,
		cfg:     deps.Config,
		logger:  logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowlens",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowlens statically reconstructs workflow control flow from JavaScript and TypeScript sources. Use flowlens.analyze to extract workflow structure from a file, flowlens.render to draw it as a Mermaid flowchart or text outline, flowlens.query to evaluate expressions against analysis results, and flowlens.history to inspect recorded runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowlensServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowlensServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *FlowlensServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: analyzeTool(), Handler: s.handleAnalyze},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func analyzeTool() mcp.Tool {
	return mcp.NewTool("flowlens.analyze",
		mcp.WithDescription("Analyze a JavaScript/TypeScript file and return the workflow structure of each entry point"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the source file to analyze")),
		mcp.WithString("workflow", mcp.Description("Analyze only the entry point with this name")),
		mcp.WithString("include_spans", mcp.Description("Attach source spans to nodes (default from configuration)")),
		mcp.WithString("assume_imported", mcp.Description("Treat library names as in scope without imports (default from configuration)")),
		mcp.WithString("save", mcp.Description("Record the runs in the history database (default: false)")),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("flowlens.render",
		mcp.WithDescription("Render an analyzed workflow as a Mermaid flowchart or a text outline"),
		mcp.WithString("path", mcp.Description("Source file to analyze and render")),
		mcp.WithString("run_id", mcp.Description("Recorded run to render instead of analyzing a file")),
		mcp.WithString("workflow", mcp.Description("Render only the entry point with this name")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("mermaid", "outline"),
			mcp.Description("Output format: mermaid (flowchart syntax) or outline (indented text)"),
		),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("flowlens.query",
		mcp.WithDescription("Evaluate an expression against analysis results. The scope exposes workflow, stats, steps, deps and warnings"),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Expression to evaluate")),
		mcp.WithString("engine", mcp.Enum("cel", "expr", "jq"), mcp.Description("Expression engine (default from configuration)")),
		mcp.WithString("path", mcp.Description("Source file to analyze and query")),
		mcp.WithString("run_id", mcp.Description("Recorded run to query instead of analyzing a file")),
		mcp.WithString("workflow", mcp.Description("Query only the entry point with this name")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("flowlens.history",
		mcp.WithDescription("List recorded analysis runs or diff the two most recent runs of a workflow"),
		mcp.WithString("source", mcp.Description("Filter by source path")),
		mcp.WithString("workflow", mcp.Description("Filter by workflow name")),
		mcp.WithString("limit", mcp.Description("Maximum number of runs to return (default 20)")),
		mcp.WithString("diff", mcp.Description("Return the stat diff of the two latest runs; requires source and workflow")),
	)
}
