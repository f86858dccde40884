package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tomoru1741/Bloxd-Tools/internal/coverage"
	"github.com/tomoru1741/Bloxd-Tools/internal/output"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

var styles = map[string]lipgloss.Style{
	"red":    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	"green":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	"yellow": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	"cyan":   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	"dim":    lipgloss.NewStyle().Faint(true),
	"bold":   lipgloss.NewStyle().Bold(true),
}

func clr(color, text string) string {
	if noColor {
		return text
	}
	s, ok := styles[color]
	if !ok {
		return text
	}
	return s.Render(text)
}

func printBanner() {
	logo := `
  ┳┓┓     ┓┏┓┓     ┓
  ┣┫┃┏┓┓┏┏┫┃ ┣┓┏┓┏┃┏
  ┻┛┗┗┛┛┗┗┻┗┛┛┗┗ ┗┛┗`
	fmt.Println(clr("cyan", logo))
	fmt.Printf("  %s  %s\n", clr("dim", "Bloxd item list and translation coverage checker"), clr("dim", "v"+version))
	fmt.Printf("  %s\n", clr("dim", strings.Repeat("─", 58)))
}

func handleEvent(event plugin.RunEvent) {
	switch event.Type {
	case plugin.EventRunStarted:
		fmt.Printf("\n  %s %s\n\n", clr("cyan", "Manifest:"), event.URL)

	case plugin.EventManifestResolved:
		fmt.Printf("  %s %s\n", clr("green", "●"), event.Message)

	case plugin.EventChunkFetched:
		fmt.Printf("  %s %s\n", clr("green", "●"), event.Message)

	case plugin.EventStrategyResult:
		if verbose {
			fmt.Printf("      %s %d\n", clr("dim", "├─ "+event.Strategy+" ("+event.Message+"):"), event.Count)
		}

	case plugin.EventChunkDone:
		mark := clr("green", "✓")
		if event.Count == 0 {
			mark = clr("yellow", "!")
		}
		fmt.Printf("  %s %s\n", mark, event.Message)

	case plugin.EventChunkSkipped:
		fmt.Printf("  %s %s\n", clr("yellow", "!"), event.Message)

	case plugin.EventChunkError:
		fmt.Printf("  %s %s\n", clr("red", "✗"), event.Message)

	case plugin.EventRunFinished:
		fmt.Printf("  %s %s\n", clr("green", "✓"), event.Message)

	case plugin.EventRunFailed:
		fmt.Printf("  %s %s\n", clr("red", "✗"), event.Message)
	}
}

func printRunSummary(run *pipeline.Run) {
	if run == nil {
		return
	}
	extracted := 0
	for _, c := range run.Chunks {
		if c.Status == pipeline.ChunkExtracted {
			extracted++
		}
	}
	fmt.Println()
	fmt.Printf("  %s\n", strings.Repeat("─", 50))
	fmt.Printf("    Chunks: %s planned, %s extracted\n",
		clr("cyan", fmt.Sprintf("%d", len(run.Chunks))),
		clr("cyan", fmt.Sprintf("%d", extracted)),
	)
	fmt.Printf("    Items:  %s in %s\n",
		clr("yellow", fmt.Sprintf("%d", len(run.Items))),
		output.FormatDuration(run.Duration()),
	)
}

func printCoverage(r *coverage.Report) {
	color := "green"
	switch {
	case r.Coverage < 50:
		color = "red"
	case r.Coverage < 90:
		color = "yellow"
	}
	fmt.Printf("    Coverage: %s  %s translated, %s missing, %s orphan\n",
		clr(color, fmt.Sprintf("%.1f%%", r.Coverage)),
		clr("cyan", fmt.Sprintf("%d/%d", r.Translated, r.Total)),
		clr("red", fmt.Sprintf("%d", r.Missing)),
		clr("dim", fmt.Sprintf("%d", len(r.Orphans))),
	)
}

func printEntries(entries []coverage.Entry) {
	for _, e := range entries {
		switch {
		case e.Orphan:
			fmt.Printf("  %s %s %s\n", clr("dim", "○"), e.Name, clr("dim", "→ "+e.Translation+" (not in game)"))
		case e.Translated:
			fmt.Printf("  %s %s %s\n", clr("green", "●"), e.Name, clr("dim", "→ "+e.Translation))
		default:
			fmt.Printf("  %s %s\n", clr("red", "✗"), e.Name)
		}
	}
}

func warn(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", clr("yellow", "!"), fmt.Sprintf(format, args...))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", clr("red", "ERROR:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}
