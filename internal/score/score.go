// Package score computes the seven per-task quality dimensions and their
// weighted total. Every dimension is a value in [0,100]; weights are applied
// only when combining, never when scoring.
package score

import (
	"github.com/entropix/gauntlet/internal/entropy"
)

// Dimension names one of the seven quality measures.
type Dimension string

const (
	Functional           Dimension = "FUNCTIONAL"
	DriftAdaptation      Dimension = "DRIFT_ADAPTATION"
	TokenEfficiency      Dimension = "TOKEN_EFFICIENCY"
	QueryEfficiency      Dimension = "QUERY_EFFICIENCY"
	ErrorRecovery        Dimension = "ERROR_RECOVERY"
	TrajectoryEfficiency Dimension = "TRAJECTORY_EFFICIENCY"
	HallucinationRate    Dimension = "HALLUCINATION_RATE"
)

// Dimensions lists all seven in report order.
var Dimensions = []Dimension{
	Functional,
	DriftAdaptation,
	TokenEfficiency,
	QueryEfficiency,
	ErrorRecovery,
	TrajectoryEfficiency,
	HallucinationRate,
}

// Weights combine dimension scores into the per-task total.
var Weights = map[Dimension]float64{
	Functional:           0.30,
	DriftAdaptation:      0.20,
	TokenEfficiency:      0.12,
	QueryEfficiency:      0.12,
	ErrorRecovery:        0.08,
	TrajectoryEfficiency: 0.10,
	HallucinationRate:    0.08,
}

// Inputs carries everything the scorer needs for one task.
type Inputs struct {
	Reward   float64
	Passed   bool
	Answered bool // false on timeout, protocol violation or unsupported metric
	Drift    entropy.Level

	Tokens         int
	Queries        int
	ToolCalls      int
	InvalidCalls   int // invalid calls self-reported by the agent
	StaleFieldRefs int // pre-drift field names referenced in the trace
	AgentErrors    int // internal errors the agent recovered from
}

// Score computes all seven dimensions. A task that never produced a usable
// answer scores zero everywhere.
func Score(in Inputs, b Baselines) map[Dimension]float64 {
	scores := make(map[Dimension]float64, len(Dimensions))
	if !in.Answered {
		for _, d := range Dimensions {
			scores[d] = 0
		}
		return scores
	}
	scores[Functional] = clamp(in.Reward * 100)
	scores[DriftAdaptation] = driftAdaptation(in)
	scores[TokenEfficiency] = budgetCurve(in.Tokens, b.Tokens)
	scores[QueryEfficiency] = budgetCurve(in.Queries, b.Queries)
	scores[ErrorRecovery] = errorRecovery(in)
	scores[TrajectoryEfficiency] = trajectoryEfficiency(in, b)
	scores[HallucinationRate] = hallucination(in)
	return scores
}

// Total is the weighted combination of a full dimension set.
func Total(scores map[Dimension]float64) float64 {
	var sum, weights float64
	for d, w := range Weights {
		sum += scores[d] * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return clamp(sum / weights)
}

// driftAdaptation gives full credit for passing despite drift, a bonus-free
// baseline without drift, and a penalty for failing while drift was active.
func driftAdaptation(in Inputs) float64 {
	base := 0.0
	if in.Passed {
		base = 100
	}
	if in.Drift == entropy.None {
		return base
	}
	if in.Passed {
		return 100
	}
	// Failed under active drift: deeper penalty than a plain miss.
	return clamp(base - 40*in.Drift.RenameFraction()*2)
}

// budgetCurve saturates at 100 for usage at or under the baseline, falls
// linearly to 30 at twice the baseline, then decays to zero by four times.
func budgetCurve(used, baseline int) float64 {
	if baseline <= 0 {
		baseline = 1
	}
	if used <= baseline {
		return 100
	}
	ratio := float64(used) / float64(baseline)
	if ratio <= 2 {
		return clamp(100 - (ratio-1)*70)
	}
	return clamp(30 - (ratio-2)*15)
}

func errorRecovery(in Inputs) float64 {
	return clamp(100 - 15*float64(in.AgentErrors))
}

// trajectoryEfficiency compares tool-call count against the expected minimal
// path for the category.
func trajectoryEfficiency(in Inputs, b Baselines) float64 {
	expected := b.ToolCalls
	if expected <= 0 {
		expected = 1
	}
	if in.ToolCalls <= expected {
		return 100
	}
	return clamp(100 * float64(expected) / float64(in.ToolCalls))
}

// hallucination penalizes calls that referenced nonexistent (post-drift)
// schema entities. With no calls at all there is nothing to judge, so the
// score is a neutral 80.
func hallucination(in Inputs) float64 {
	total := in.ToolCalls + in.Queries
	if total == 0 {
		return 80
	}
	invalid := in.InvalidCalls + in.StaleFieldRefs
	if invalid > total {
		invalid = total
	}
	rate := float64(invalid) / float64(total)
	switch {
	case rate == 0:
		return 100
	case rate < 0.05:
		return clamp(95 - rate*100)
	case rate < 0.15:
		return clamp(80 - (rate-0.05)*200)
	default:
		return clamp(60 - rate*100)
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
