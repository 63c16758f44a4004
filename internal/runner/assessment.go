package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/entropix/gauntlet/internal/agent"
	"github.com/entropix/gauntlet/internal/corpus"
	"github.com/entropix/gauntlet/internal/entropy"
	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/score"
)

// Options configures a full assessment run.
type Options struct {
	Corpus    *corpus.Corpus
	Client    agent.Client
	Entropy   entropy.Config
	Selection corpus.Selection
	Baselines *score.Table // nil uses defaults for every category
	MaxSteps  int
	Timeout   time.Duration
	// Concurrency bounds simultaneous agent round-trips. Tasks are
	// independent, so any value >= 1 is safe.
	Concurrency int
	Seed        int64
	RunDir      string    // when set, per-task results and the summary are persisted
	Progress    io.Writer // when set, per-task progress lines are written
}

// Assessment is a completed run: per-task results plus the aggregate.
type Assessment struct {
	Results []*result.TaskResult
	Summary *result.Summary
}

// RunAssessment executes the selected tasks against the agent and aggregates
// a summary. Configuration problems abort before anything runs; per-task
// failures are contained in their results. Cancelling ctx stops dispatch and
// in-flight waits, and the summary of whatever completed is returned with
// Aborted set.
func RunAssessment(ctx context.Context, opts *Options) (*Assessment, error) {
	if opts.Corpus == nil {
		return nil, fmt.Errorf("invalid config: no corpus")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("invalid config: no agent client")
	}
	if err := opts.Entropy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.MaxSteps < 1 {
		return nil, fmt.Errorf("invalid config: max_steps must be at least 1")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("invalid config: timeout must be positive")
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	tasks, err := opts.Corpus.Select(opts.Selection, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("invalid config: selection matched no tasks")
	}

	start := time.Now()
	total := len(tasks)

	jobs := make([]Job, 0, total)
	for i := range tasks {
		task := tasks[i]
		seq := i + 1
		jobs = append(jobs, func() *result.TaskResult {
			if ctx.Err() != nil {
				return &result.TaskResult{
					TaskID:   task.ID,
					Category: task.Category,
					Status:   result.StatusCancelled,
					Error:    ctx.Err().Error(),
				}
			}
			if opts.Progress != nil {
				fmt.Fprintf(opts.Progress, "[%d/%d] running task %s (%s)\n", seq, total, task.ID, task.Category)
			}
			r := RunTask(ctx, &TaskOpts{
				Task:      &task,
				Entropy:   opts.Entropy,
				Client:    opts.Client,
				Baselines: opts.Baselines.For(task.Category),
				MaxSteps:  opts.MaxSteps,
				Timeout:   opts.Timeout,
				Seed:      opts.Seed,
			})
			if opts.RunDir != "" {
				if err := result.WriteTaskResult(opts.RunDir, r); err != nil {
					log.Printf("warning: persisting result for task %s: %v", r.TaskID, err)
				}
			}
			if opts.Progress != nil {
				fmt.Fprintf(opts.Progress, "[%d/%d] %s task %s: score=%.1f (%.1fs)\n",
					seq, total, r.Status, r.TaskID, r.TotalScore, r.TotalSeconds)
			}
			return r
		})
	}

	results := RunPool(concurrency, jobs)
	result.SortByTaskID(results)

	summary := result.Summarize(results, time.Since(start))
	if ctx.Err() != nil {
		summary.Aborted = true
	}
	if opts.RunDir != "" {
		if err := result.WriteSummary(opts.RunDir, summary); err != nil {
			log.Printf("warning: persisting summary: %v", err)
		}
	}

	kept := results[:0]
	for _, r := range results {
		if r.Status != result.StatusCancelled {
			kept = append(kept, r)
		}
	}
	return &Assessment{Results: kept, Summary: summary}, nil
}
