package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/flowlens/internal/config"
	"github.com/rendis/flowlens/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "version" {
		printVersion()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowlens: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "analyze":
		err = runAnalyze(ctx, cfg, logger, args)
	case "render":
		err = runRender(ctx, cfg, logger, args)
	case "query":
		err = runQuery(ctx, cfg, logger, args)
	case "history":
		err = runHistory(ctx, cfg, logger, args)
	case "watch":
		err = runWatch(ctx, cfg, logger, args)
	case "serve":
		err = runServe(ctx, cfg, logger, args)
	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "flowlens: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: flowlens <command> [flags]

Commands:
  analyze   extract workflow structure from a source file
  render    draw an analyzed workflow as Mermaid or a text outline
  query     evaluate an expression against analysis results
  history   list or diff recorded analysis runs
  watch     re-analyze files on a schedule and record runs
  serve     run the MCP stdio server
  version   print the version

Run "flowlens <command> -h" for command flags.
`)
}

// newLogger builds the process logger with correlation-aware context injection.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
