package result

import (
	"sort"
	"time"

	"github.com/entropix/gauntlet/internal/score"
)

// Task statuses. Everything except StatusCompleted is a contained failure:
// it zeroes the task's reward but never aborts the batch.
const (
	StatusCompleted         = "completed"
	StatusTimeout           = "timeout"
	StatusProtocolViolation = "protocol_violation"
	StatusUnsupportedMetric = "unsupported_metric"
	StatusCancelled         = "cancelled"
	// StatusInvalidConfig should not appear in practice: configuration is
	// validated before any task runs. The runner records it defensively.
	StatusInvalidConfig = "invalid_config"
)

// TaskResult records one task's outcome. It is never mutated after the
// runner produces it.
type TaskResult struct {
	TaskID   string `json:"task_id"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`

	Reward float64 `json:"crm_reward"`
	Passed bool    `json:"passed"`
	Answer string  `json:"answer,omitempty"`

	Dimensions map[score.Dimension]float64 `json:"dimension_scores"`
	TotalScore float64                     `json:"total_score"`

	RenamedFields   int `json:"renamed_fields"`
	DistractorCount int `json:"distractor_count"`

	AgentSeconds float64 `json:"agent_seconds"`
	TotalSeconds float64 `json:"total_seconds"`
}

// Timing is the run-level wall-clock breakdown. Overhead is everything the
// harness spent outside agent round-trips and should stay near zero.
type Timing struct {
	TotalSeconds    float64 `json:"total_seconds"`
	AgentSeconds    float64 `json:"agent_seconds"`
	OverheadSeconds float64 `json:"overhead_seconds"`
	AgentPercent    float64 `json:"agent_percent"`
}

// CategoryStats is the per-category slice of a summary.
type CategoryStats struct {
	Count    int     `json:"count"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
	AvgScore float64 `json:"avg_score"`
}

// Summary aggregates a whole run. Computed once, immutable, and independent
// of the order results completed in.
type Summary struct {
	TotalTasks        int                         `json:"total_tasks"`
	TotalPassed       int                         `json:"total_passed"`
	PassRate          float64                     `json:"pass_rate"`
	AvgScore          float64                     `json:"avg_score"`
	DimensionAverages map[score.Dimension]float64 `json:"dimension_averages"`
	ByCategory        map[string]CategoryStats    `json:"by_category"`
	Timing            Timing                      `json:"timing"`
	Aborted           bool                        `json:"aborted,omitempty"`
}

// Summarize folds results into a Summary. Only commutative accumulation is
// used, so any permutation of the same results yields the same summary.
// Cancelled placeholders are excluded; Aborted records that some were.
func Summarize(results []*TaskResult, wall time.Duration) *Summary {
	s := &Summary{
		DimensionAverages: map[score.Dimension]float64{},
		ByCategory:        map[string]CategoryStats{},
	}

	var scoreSum, agentSeconds float64
	dimSums := map[score.Dimension]float64{}
	type catAccum struct {
		count  int
		passed int
		score  float64
	}
	byCat := map[string]*catAccum{}

	for _, r := range results {
		if r.Status == StatusCancelled {
			s.Aborted = true
			continue
		}
		s.TotalTasks++
		if r.Reward > 0 {
			s.TotalPassed++
		}
		scoreSum += r.TotalScore
		agentSeconds += r.AgentSeconds
		for d, v := range r.Dimensions {
			dimSums[d] += v
		}
		a, ok := byCat[r.Category]
		if !ok {
			a = &catAccum{}
			byCat[r.Category] = a
		}
		a.count++
		a.score += r.TotalScore
		if r.Reward > 0 {
			a.passed++
		}
	}

	if s.TotalTasks > 0 {
		s.PassRate = float64(s.TotalPassed) / float64(s.TotalTasks)
		s.AvgScore = scoreSum / float64(s.TotalTasks)
		for d, sum := range dimSums {
			s.DimensionAverages[d] = sum / float64(s.TotalTasks)
		}
	}
	for cat, a := range byCat {
		s.ByCategory[cat] = CategoryStats{
			Count:    a.count,
			Passed:   a.passed,
			PassRate: float64(a.passed) / float64(a.count),
			AvgScore: a.score / float64(a.count),
		}
	}

	total := wall.Seconds()
	s.Timing = Timing{
		TotalSeconds:    round2(total),
		AgentSeconds:    round2(agentSeconds),
		OverheadSeconds: round2(total - agentSeconds),
	}
	if total > 0 {
		s.Timing.AgentPercent = round2(agentSeconds / total * 100)
	}
	return s
}

// SortByTaskID orders results for stable persistence and display.
// Aggregation itself never depends on order.
func SortByTaskID(results []*TaskResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].TaskID < results[j].TaskID
	})
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int(v*100-0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
