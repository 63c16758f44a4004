package corpus

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
)

// Task is a single benchmark task, loaded once from the corpus cache and
// never mutated afterwards.
type Task struct {
	ID               string   `json:"task_id"`
	Category         string   `json:"category"`
	Prompt           string   `json:"prompt"`
	Persona          string   `json:"persona"`
	RequiredContext  string   `json:"required_context"`
	ReferenceAnswers []string `json:"reference_answers"`
	RewardMetric     string   `json:"reward_metric"`
	ProtectedValues  []string `json:"protected_values,omitempty"`
}

// Categories lists every task category the corpus may contain.
var Categories = []string{
	"activity_priority",
	"best_region_identification",
	"case_routing",
	"confidential_company_knowledge",
	"conversion_rate_comprehension",
	"handle_time",
	"internal_operation_data",
	"invalid_config",
	"knowledge_qa",
	"lead_qualification",
	"lead_routing",
	"monthly_trend_analysis",
	"named_entity_disambiguation",
	"policy_violation_identification",
	"private_customer_information",
	"quote_approval",
	"sales_amount_understanding",
	"sales_cycle_understanding",
	"sales_insight_mining",
	"top_issue_identification",
	"transfer_count",
	"wrong_stage_rectification",
}

// Corpus is a read-only handle over the loaded task set. It is safe to share
// across concurrent task executions.
type Corpus struct {
	orgType string
	tasks   []Task
	byID    map[string]int
}

// Load reads the task cache at path. orgType must be "b2b" or "b2c".
func Load(path, orgType string) (*Corpus, error) {
	if orgType != "b2b" && orgType != "b2c" {
		return nil, fmt.Errorf("org_type must be b2b or b2c, got %q", orgType)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("corpus %s contains no tasks", path)
	}
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("corpus %s: task %d has no task_id", path, i)
		}
		if t.RewardMetric == "" {
			return nil, fmt.Errorf("corpus %s: task %s has no reward_metric", path, t.ID)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("corpus %s: duplicate task_id %s", path, t.ID)
		}
		byID[t.ID] = i
	}
	return &Corpus{orgType: orgType, tasks: tasks, byID: byID}, nil
}

func (c *Corpus) OrgType() string { return c.orgType }

func (c *Corpus) Len() int { return len(c.tasks) }

// Task returns the task with the given id.
func (c *Corpus) Task(id string) (*Task, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.tasks[i], true
}

// Tasks returns a copy of the full task list.
func (c *Corpus) Tasks() []Task {
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Selection controls which tasks an assessment runs. Exactly one rule family
// is authoritative: explicit ids beat categories, which beat the limit cap,
// which beats percentage sampling.
type Selection struct {
	TaskIDs    []string
	Categories []string
	Limit      int
	Percentage float64
}

// Select resolves a Selection against the corpus. The percentage sample is
// deterministic for a given seed.
func (c *Corpus) Select(sel Selection, seed int64) ([]Task, error) {
	if len(sel.TaskIDs) > 0 {
		var out []Task
		for _, id := range sel.TaskIDs {
			t, ok := c.Task(id)
			if !ok {
				return nil, fmt.Errorf("unknown task_id %q", id)
			}
			out = append(out, *t)
		}
		return out, nil
	}

	if len(sel.Categories) > 0 {
		known := make(map[string]bool, len(Categories))
		for _, cat := range Categories {
			known[cat] = true
		}
		want := make(map[string]bool, len(sel.Categories))
		for _, cat := range sel.Categories {
			if !known[cat] {
				return nil, fmt.Errorf("unknown task category %q", cat)
			}
			want[cat] = true
		}
		var out []Task
		for _, t := range c.tasks {
			if want[t.Category] {
				out = append(out, t)
			}
		}
		if sel.Limit > 0 && len(out) > sel.Limit {
			out = out[:sel.Limit]
		}
		return out, nil
	}

	if sel.Limit > 0 {
		n := sel.Limit
		if n > len(c.tasks) {
			n = len(c.tasks)
		}
		out := make([]Task, n)
		copy(out, c.tasks[:n])
		return out, nil
	}

	if sel.Percentage <= 0 || sel.Percentage > 100 {
		return nil, fmt.Errorf("task_percentage must be in (0,100], got %v", sel.Percentage)
	}
	n := int(float64(len(c.tasks))*sel.Percentage/100 + 0.5)
	if n < 1 {
		n = 1
	}
	if n > len(c.tasks) {
		n = len(c.tasks)
	}
	sample := c.Tasks()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(sample), func(i, j int) {
		sample[i], sample[j] = sample[j], sample[i]
	})
	sample = sample[:n]
	sort.Slice(sample, func(i, j int) bool { return sample[i].ID < sample[j].ID })
	return sample, nil
}
