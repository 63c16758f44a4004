package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/score"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [run-dir]",
		Short: "Re-score an existing run",
		Long:  "Walk a run directory, recompute each task's composite score from its stored dimension scores with the current weights, and rewrite the results and summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]
			results, err := result.CollectResults(runDir)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("no task results found in %s", runDir)
			}

			for _, r := range results {
				if len(r.Dimensions) == 0 {
					log.Printf("skipping %s: no dimension scores", r.TaskID)
					continue
				}
				old := r.TotalScore
				r.TotalScore = score.Total(r.Dimensions)
				if err := result.WriteTaskResult(runDir, r); err != nil {
					log.Printf("  failed to write %s: %v", r.TaskID, err)
					continue
				}
				if r.TotalScore != old {
					fmt.Printf("%s: %.2f -> %.2f\n", r.TaskID, old, r.TotalScore)
				}
			}

			summary := result.Summarize(results, time.Duration(0))
			if prior, err := result.ReadSummary(runDir); err == nil {
				summary.Timing = prior.Timing
				summary.Aborted = prior.Aborted
			}
			if err := result.WriteSummary(runDir, summary); err != nil {
				return err
			}
			fmt.Printf("Re-scored %d tasks: avg %.2f, pass rate %.1f%%\n",
				summary.TotalTasks, summary.AvgScore, summary.PassRate*100)
			return nil
		},
	}
}
