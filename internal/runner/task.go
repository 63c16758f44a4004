package runner

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/entropix/gauntlet/internal/agent"
	"github.com/entropix/gauntlet/internal/corpus"
	"github.com/entropix/gauntlet/internal/entropy"
	"github.com/entropix/gauntlet/internal/evaluate"
	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/score"
)

// TaskOpts configures a single task execution.
type TaskOpts struct {
	Task      *corpus.Task
	Entropy   entropy.Config
	Client    agent.Client
	Baselines score.Baselines
	MaxSteps  int
	Timeout   time.Duration
	Seed      int64 // run seed; the per-task seed is derived from it
}

// RunTask executes one task end-to-end: perturb, submit once, evaluate,
// score. Per-task failures are contained: the returned result carries a
// failure status and zeroed scores instead of an error.
//
// The task is submitted exactly once. There is no continuation loop and no
// re-submission on a slow or partial response; a task gets one
// request-response round-trip.
func RunTask(ctx context.Context, opts *TaskOpts) *result.TaskResult {
	start := time.Now()
	task := opts.Task

	seed := entropy.TaskSeed(task.ID, opts.Seed)
	pt, err := entropy.Perturb(task, opts.Entropy, seed)
	if err != nil {
		// Entropy config is validated before any task runs, so this is a
		// defensive path only.
		return failedResult(task, result.StatusInvalidConfig, err, opts.Baselines, start, 0)
	}

	delivery := &agent.Delivery{
		Type:            "crm_task",
		TaskID:          task.ID,
		TaskCategory:    task.Category,
		Prompt:          pt.Prompt,
		Persona:         task.Persona,
		RequiredContext: pt.RequiredContext,
		Config: agent.DeliveryConfig{
			OrgType:  opts.Entropy.OrgType,
			MaxSteps: opts.MaxSteps,
		},
		Entropy: agent.DeliveryEntropy{
			DriftLevel: string(opts.Entropy.Drift),
			RotLevel:   string(opts.Entropy.Rot),
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	agentStart := time.Now()
	resp, err := opts.Client.Send(sendCtx, delivery)
	agentSeconds := time.Since(agentStart).Seconds()

	if err != nil {
		status := classifySendError(ctx, sendCtx, err)
		r := failedResult(task, status, err, opts.Baselines, start, agentSeconds)
		r.RenamedFields = len(pt.FieldRenameMap)
		r.DistractorCount = pt.DistractorCount
		return r
	}
	if err := agent.Validate(delivery, resp); err != nil {
		r := failedResult(task, result.StatusProtocolViolation, err, opts.Baselines, start, agentSeconds)
		r.RenamedFields = len(pt.FieldRenameMap)
		r.DistractorCount = pt.DistractorCount
		return r
	}

	verdict, err := evaluate.Evaluate(task, resp.Answer)
	if err != nil {
		r := failedResult(task, result.StatusUnsupportedMetric, err, opts.Baselines, start, agentSeconds)
		r.RenamedFields = len(pt.FieldRenameMap)
		r.DistractorCount = pt.DistractorCount
		return r
	}

	scores := score.Score(score.Inputs{
		Reward:         verdict.Reward,
		Passed:         verdict.Passed,
		Answered:       true,
		Drift:          opts.Entropy.Drift,
		Tokens:         resp.Metrics.Tokens,
		Queries:        resp.Metrics.Queries,
		ToolCalls:      resp.Metrics.ToolCalls,
		InvalidCalls:   resp.Metrics.InvalidToolCalls,
		StaleFieldRefs: entropy.StaleReferences(resp.RawTrace, pt.FieldRenameMap),
		AgentErrors:    resp.Metrics.Errors,
	}, opts.Baselines)

	return &result.TaskResult{
		TaskID:          task.ID,
		Category:        task.Category,
		Status:          result.StatusCompleted,
		Reward:          verdict.Reward,
		Passed:          verdict.Passed,
		Answer:          truncate(resp.Answer, 500),
		Dimensions:      scores,
		TotalScore:      score.Total(scores),
		RenamedFields:   len(pt.FieldRenameMap),
		DistractorCount: pt.DistractorCount,
		AgentSeconds:    agentSeconds,
		TotalSeconds:    time.Since(start).Seconds(),
	}
}

// classifySendError maps a submission failure to a task status. A run-level
// cancel outranks the per-task deadline.
func classifySendError(runCtx, sendCtx context.Context, err error) string {
	if runCtx.Err() != nil {
		return result.StatusCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || sendCtx.Err() == context.DeadlineExceeded {
		return result.StatusTimeout
	}
	return result.StatusProtocolViolation
}

// failedResult builds a contained zero-reward result for a task that never
// produced a usable answer. All dimension scores degrade to zero.
func failedResult(task *corpus.Task, status string, err error, b score.Baselines, start time.Time, agentSeconds float64) *result.TaskResult {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	scores := score.Score(score.Inputs{Answered: false}, b)
	return &result.TaskResult{
		TaskID:       task.ID,
		Category:     task.Category,
		Status:       status,
		Error:        errText,
		Dimensions:   scores,
		TotalScore:   0,
		AgentSeconds: agentSeconds,
		TotalSeconds: time.Since(start).Seconds(),
	}
}

// truncate cuts s to at most n bytes, backing up so a multi-byte rune is
// never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s… [%d more bytes]", s[:cut], len(s)-cut)
}
