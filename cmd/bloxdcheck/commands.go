package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomoru1741/Bloxd-Tools/internal/coverage"
	"github.com/tomoru1741/Bloxd-Tools/internal/output"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"github.com/tomoru1741/Bloxd-Tools/internal/storage"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

var (
	jsonOut    bool
	outputPath string
	viewFilter string
	viewQuery  string
	viewSort   string
	tmplFormat string
	tmplOut    string
	historyMax int
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Extract the canonical item list from the game bundle",
	RunE:  runItems,
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Compare the item list with the translation dictionary",
	Long: `Loads the item list and the dictionary, then prints the coverage summary
and the entries selected by --filter, --search and --sort.`,
	RunE: runCoverage,
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print a dictionary template for the untranslated items",
	Long: `Formats:
  json  a JSON object of every missing name with an empty value
  text  fragments grouped by insertion point, each headed by a comment
        naming the entry to insert after and the 1-based item number`,
	RunE: runTemplate,
}

var texturesCmd = &cobra.Command{
	Use:   "textures",
	Short: "List the texture assignment of every block definition in the bundle",
	RunE:  runTextures,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent refreshes recorded by serve",
	RunE:  runHistory,
}

func init() {
	itemsCmd.Flags().BoolVar(&jsonOut, "json", false, "print the list as a JSON array")
	itemsCmd.Flags().StringVarP(&outputPath, "output", "o", "", "save the run report to a text file")

	coverageCmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	coverageCmd.Flags().StringVarP(&outputPath, "output", "o", "", "save the run report to a text file")
	coverageCmd.Flags().StringVar(&viewFilter, "filter", "missing", "entries to list: all, missing, translated, orphan")
	coverageCmd.Flags().StringVar(&viewQuery, "search", "", "case-insensitive substring of name or translation")
	coverageCmd.Flags().StringVar(&viewSort, "sort", "original", "order: original, name-asc, name-desc, status")

	templateCmd.Flags().StringVar(&tmplFormat, "format", "text", "template format: json, text")
	templateCmd.Flags().StringVarP(&tmplOut, "out", "O", "", "write the template to a file instead of stdout")

	texturesCmd.Flags().BoolVar(&jsonOut, "json", false, "print the textures as JSON")

	historyCmd.Flags().IntVarP(&historyMax, "limit", "n", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&jsonOut, "json", false, "print the runs as JSON")
}

// startEvents prints run events until the returned stop function is called.
func startEvents() (chan<- plugin.RunEvent, func()) {
	ch := make(chan plugin.RunEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range ch {
			if !silent && !jsonOut {
				handleEvent(event)
			}
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}

func runItems(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if !silent && !jsonOut {
		printBanner()
	}
	events, stop := startEvents()
	a, err := newApp(cfg, logger, nil, events)
	if err != nil {
		stop()
		return err
	}
	defer a.Close()

	started := time.Now()
	run, runErr := a.pipeline.ExtractCanonicalItemList(ctx)
	stop()

	if outputPath != "" {
		if err := writeReport(started, run, runErr, nil, nil); err != nil {
			warn("could not write report: %v", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s", plugin.Diagnose(runErr))
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), run.Items)
	}
	if !silent {
		printRunSummary(run)
		fmt.Println()
	}
	for i, name := range run.Items {
		fmt.Fprintf(cmd.OutOrStdout(), "%5d  %s\n", i+1, name)
	}
	return nil
}

// loadSession runs one full refresh and returns the loaded session.
func loadSession(cmd *cobra.Command) (*session.Session, *session.Outcome, error) {
	ctx, cancel := signalContext()
	defer cancel()

	if !silent && !jsonOut {
		printBanner()
	}
	events, stop := startEvents()
	a, err := newApp(cfg, logger, nil, events)
	if err != nil {
		stop()
		return nil, nil, err
	}
	defer a.Close()

	sess := a.newSession(logger)
	out, _ := sess.Refresh(ctx)
	stop()
	return sess, out, nil
}

func runCoverage(cmd *cobra.Command, args []string) error {
	opts, err := coverage.ParseViewOptions(viewFilter, viewQuery, viewSort)
	if err != nil {
		return err
	}

	sess, out, err := loadSession(cmd)
	if err != nil {
		return err
	}
	if outputPath != "" {
		rep := sess.Coverage()
		if err := writeReport(out.StartedAt, out.Run, out.ItemsErr, rep, out.DictErr); err != nil {
			warn("could not write report: %v", err)
		}
	}
	if err := requireBoth(out); err != nil {
		return err
	}

	rep := sess.Coverage()
	entries := coverage.View(rep, sess.Snapshot().Dictionary, opts)
	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"report":  rep,
			"entries": entries,
		})
	}

	if !silent {
		printRunSummary(out.Run)
		printCoverage(rep)
		fmt.Println()
	}
	printEntries(entries)
	return nil
}

func runTemplate(cmd *cobra.Command, args []string) error {
	if tmplFormat != "json" && tmplFormat != "text" {
		return fmt.Errorf("unknown template format %q", tmplFormat)
	}
	// keep stdout clean for redirection
	if tmplOut == "" {
		silent = true
	}

	sess, out, err := loadSession(cmd)
	if err != nil {
		return err
	}
	if err := requireBoth(out); err != nil {
		return err
	}

	var body []byte
	if tmplFormat == "json" {
		body = coverage.TemplateJSON(sess.Coverage().MissingNames)
	} else {
		body = []byte(coverage.TemplateText(sess.Groups()))
	}

	if tmplOut == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return err
	}
	if err := os.WriteFile(tmplOut, append(body, '\n'), 0644); err != nil {
		return err
	}
	if !silent {
		fmt.Printf("\n    Template: %s\n\n", clr("green", tmplOut))
	}
	return nil
}

func runTextures(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	mined, err := a.pipeline.MineTextures(ctx)
	if err != nil {
		return fmt.Errorf("%s", plugin.Diagnose(err))
	}

	names := make([]string, 0, len(mined))
	for name := range mined {
		names = append(names, name)
	}
	sort.Strings(names)

	if jsonOut {
		list := make([]interface{}, 0, len(names))
		for _, n := range names {
			list = append(list, mined[n])
		}
		return writeJSON(cmd.OutOrStdout(), list)
	}

	w := cmd.OutOrStdout()
	for _, n := range names {
		bt := mined[n]
		top, left, right := bt.Faces()
		switch {
		case bt.Ref != "":
			fmt.Fprintf(w, "  %s %s\n", n, clr("dim", "→ shared "+bt.Ref))
		default:
			half := ""
			if bt.HalfHeight {
				half = clr("dim", " (half height)")
			}
			fmt.Fprintf(w, "  %s %s%s\n", n, clr("dim", fmt.Sprintf("top=%s left=%s right=%s", top, left, right)), half)
		}
	}
	fmt.Fprintf(w, "\n  %s block definitions\n", clr("cyan", fmt.Sprintf("%d", len(names))))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), historyMax)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "  no runs recorded")
		return nil
	}

	w := cmd.OutOrStdout()
	for _, r := range runs {
		mark := clr("green", "✓")
		switch r.Outcome {
		case storage.OutcomePartial:
			mark = clr("yellow", "!")
		case storage.OutcomeFailure:
			mark = clr("red", "✗")
		}
		fmt.Fprintf(w, "  %s %s  #%d %-10s items:%d dict:%d  %s\n",
			mark,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Generation,
			r.Kind,
			r.ItemCount,
			r.DictCount,
			clr("dim", output.FormatDuration(r.FinishedAt.Sub(r.StartedAt))),
		)
		if r.Error != "" {
			fmt.Fprintf(w, "      %s %s\n", clr("dim", "├─ "+r.Stage+":"), r.Error)
		}
	}
	return nil
}

// requireBoth fails unless both the item list and the dictionary loaded.
func requireBoth(out *session.Outcome) error {
	if out.ItemsErr != nil {
		return fmt.Errorf("%s", plugin.Diagnose(out.ItemsErr))
	}
	if out.DictErr != nil {
		return fmt.Errorf("%s", plugin.Diagnose(out.DictErr))
	}
	return nil
}

func writeReport(started time.Time, run *pipeline.Run, runErr error, rep *coverage.Report, dictErr error) error {
	w := output.NewTextWriter(outputPath)
	if run != nil {
		for _, c := range run.Chunks {
			if err := w.WriteChunk(c); err != nil {
				return err
			}
		}
	}
	err := w.Finalize(&output.Summary{
		ManifestURL: cfg.Pipeline.ManifestURL,
		StartedAt:   started,
		Run:         run,
		RunErr:      runErr,
		Report:      rep,
		DictErr:     dictErr,
	})
	if err == nil && !silent && !jsonOut {
		fmt.Printf("    Output: %s\n", clr("green", outputPath))
	}
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
