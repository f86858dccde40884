// Package output writes run reports to files.
package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tomoru1741/Bloxd-Tools/internal/coverage"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// Summary is everything the report footer needs.
type Summary struct {
	ManifestURL string
	StartedAt   time.Time
	Run         *pipeline.Run
	RunErr      error
	Report      *coverage.Report
	DictErr     error
}

// TextWriter writes a run report to a plain text file,
// mirroring the terminal output (without ANSI color codes).
type TextWriter struct {
	path  string
	lines []string
	mu    sync.Mutex
}

// NewTextWriter creates a new plain-text output writer.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path}
}

func (w *TextWriter) Name() string { return "text" }

// WriteChunk records the outcome of one planned chunk.
func (w *TextWriter) WriteChunk(c pipeline.ChunkOutcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	via := ""
	if c.Relay != "" {
		via = " via " + c.Relay
	}
	w.lines = append(w.lines, fmt.Sprintf("  [%s] chunk %s%s %s", c.Status, c.ChunkID, via, chunkCounts(c)))

	for _, a := range c.Attempts {
		line := fmt.Sprintf("      +-- %s: %s (%d)", a.Strategy, a.Outcome, a.Count)
		if a.Error != "" {
			line += " " + a.Error
		}
		w.lines = append(w.lines, line)
	}
	if c.Error != "" {
		w.lines = append(w.lines, "      +-- error: "+c.Error)
	}

	return nil
}

// Finalize writes the report file.
func (w *TextWriter) Finalize(s *Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder

	// Banner
	b.WriteString("\n  BLOXDCHECK v1.0.0\n")
	b.WriteString("  Bloxd item list and translation coverage checker\n")
	b.WriteString("  " + strings.Repeat("-", 58) + "\n\n")

	// Target info
	b.WriteString(fmt.Sprintf("  Manifest: %s\n", s.ManifestURL))
	b.WriteString(fmt.Sprintf("  Started: %s\n\n", s.StartedAt.Format(time.RFC1123)))

	// Chunk results
	for _, line := range w.lines {
		b.WriteString(line + "\n")
	}

	// Summary
	b.WriteString("\n  " + strings.Repeat("-", 50) + "\n")
	if s.RunErr != nil {
		b.WriteString("  Extraction failed\n")
		b.WriteString(fmt.Sprintf("    Cause:  %s\n", plugin.Diagnose(s.RunErr)))
	} else {
		b.WriteString("  Extraction complete\n")
	}

	if s.Run != nil {
		b.WriteString(fmt.Sprintf("    Chunks: %d planned, %d extracted\n", len(s.Run.Chunks), extractedChunks(s.Run.Chunks)))
		b.WriteString(fmt.Sprintf("    Items:  %d extracted in %s\n", len(s.Run.Items), FormatDuration(s.Run.Duration())))
	}

	if s.DictErr != nil {
		b.WriteString(fmt.Sprintf("    Dictionary: %s\n", plugin.Diagnose(s.DictErr)))
	}
	if r := s.Report; r != nil {
		b.WriteString(fmt.Sprintf("    Coverage: %.1f%% (%d/%d translated, %d missing, %d orphan)\n",
			r.Coverage, r.Translated, r.Total, r.Missing, len(r.Orphans)))
		if len(r.MissingNames) > 0 {
			b.WriteString("\n  Missing items:\n")
			for _, name := range r.MissingNames {
				b.WriteString("    " + name + "\n")
			}
		}
	}
	b.WriteString("\n")

	return os.WriteFile(w.path, []byte(b.String()), 0644)
}

// ---------- helpers ----------

func chunkCounts(c pipeline.ChunkOutcome) string {
	if c.Strategy == "" {
		return ""
	}
	return fmt.Sprintf("[%s:%d]", c.Strategy, c.Count)
}

func extractedChunks(chunks []pipeline.ChunkOutcome) int {
	n := 0
	for _, c := range chunks {
		if c.Status == pipeline.ChunkExtracted {
			n++
		}
	}
	return n
}

// FormatDuration renders d the way the terminal report does.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
