// gen-diagrams generates sample render outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/render"
)

func main() {
	path := filepath.Join("examples", "order-pipeline.ts")
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		os.Exit(1)
	}

	a := analyzer.New(analyzer.Options{SourcePath: path, IncludeSpans: true})
	results, err := a.Analyze(context.Background(), content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis error: %v\n", err)
		os.Exit(1)
	}

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	var mermaids, outlines []string
	for _, result := range results {
		model, buildErr := render.Build(result)
		if buildErr != nil {
			fmt.Fprintf(os.Stderr, "build error: %v\n", buildErr)
			os.Exit(1)
		}
		mermaids = append(mermaids, render.RenderMermaid(model))
		outlines = append(outlines, render.RenderOutline(result))
	}

	mermaid := strings.Join(mermaids, "\n\n")
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	outline := strings.Join(outlines, "\n\n")
	os.WriteFile(filepath.Join(outDir, "diagram-outline.txt"), []byte(outline+"\n"), 0o644)
	fmt.Println("=== Outline ===")
	fmt.Println(outline)
}
