// Package report renders stored assessment results as a table, markdown or
// JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/score"
)

// Generate reads the per-task results stored under runDir and writes a
// summary report.
func Generate(runDir, format string, w io.Writer) error {
	results, err := result.CollectResults(runDir)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no results found in %s", runDir)
	}

	summary, err := result.ReadSummary(runDir)
	if err != nil {
		// A run that was interrupted before the summary was written can
		// still be reported from its task results; timing is lost.
		summary = result.Summarize(results, 0)
	}

	switch format {
	case "markdown":
		return writeMarkdown(summary, w)
	case "json":
		return writeJSON(summary, w)
	default:
		return writeTable(summary, w)
	}
}

func sortedCategories(s *result.Summary) []string {
	cats := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

func writeTable(s *result.Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTASKS\tPASS RATE\tAVG SCORE")
	fmt.Fprintln(tw, strings.Repeat("-", 60))
	for _, cat := range sortedCategories(s) {
		cs := s.ByCategory[cat]
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.1f\n", cat, cs.Count, cs.PassRate*100, cs.AvgScore)
	}
	fmt.Fprintln(tw, strings.Repeat("-", 60))
	fmt.Fprintf(tw, "TOTAL\t%d\t%.0f%%\t%.1f\n", s.TotalTasks, s.PassRate*100, s.AvgScore)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "DIMENSION\tAVG")
	for _, d := range score.Dimensions {
		fmt.Fprintf(tw, "%s\t%.1f\n", d, s.DimensionAverages[d])
	}
	if s.Timing.TotalSeconds > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Timing: total %.1fs, agent %.1fs (%.1f%%), overhead %.1fs\n",
			s.Timing.TotalSeconds, s.Timing.AgentSeconds, s.Timing.AgentPercent, s.Timing.OverheadSeconds)
	}
	if s.Aborted {
		fmt.Fprintln(tw, "NOTE: run was aborted; results are partial")
	}
	return tw.Flush()
}

func writeMarkdown(s *result.Summary, w io.Writer) error {
	fmt.Fprintln(w, "| Category | Tasks | Pass Rate | Avg Score |")
	fmt.Fprintln(w, "|---|---|---|---|")
	for _, cat := range sortedCategories(s) {
		cs := s.ByCategory[cat]
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.1f |\n", cat, cs.Count, cs.PassRate*100, cs.AvgScore)
	}
	fmt.Fprintf(w, "| **total** | %d | %.0f%% | %.1f |\n", s.TotalTasks, s.PassRate*100, s.AvgScore)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Dimension | Avg |")
	fmt.Fprintln(w, "|---|---|")
	for _, d := range score.Dimensions {
		fmt.Fprintf(w, "| %s | %.1f |\n", d, s.DimensionAverages[d])
	}
	return nil
}

func writeJSON(s *result.Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
