package entropy_test

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/entropix/gauntlet/internal/corpus"
	"github.com/entropix/gauntlet/internal/entropy"
)

func sampleTask() *corpus.Task {
	return &corpus.Task{
		ID:       "task-001",
		Category: "lead_routing",
		Prompt:   "Find the lead whose status is open and report its owner_id, priority and amount.",
		RequiredContext: strings.Join([]string{
			"id: 1 | name: Acme Corp | status: open | owner_id: 7 | priority: high | amount: 1200 | region: west",
			"id: 2 | name: Globex | status: closed | owner_id: 9 | priority: low | amount: 300 | region: east",
			"id: 3 | name: Initech | status: open | owner_id: 4 | priority: medium | amount: 800 | region: south",
		}, "\n"),
		ReferenceAnswers: []string{"Acme Corp"},
		RewardMetric:     "exact_match",
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"none", "low", "medium", "high"} {
		if _, err := entropy.ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	_, err := entropy.ParseLevel("extreme")
	if !errors.Is(err, entropy.ErrInvalidLevel) {
		t.Errorf("ParseLevel(extreme) = %v, want ErrInvalidLevel", err)
	}
}

func TestPerturbDeterministic(t *testing.T) {
	task := sampleTask()
	cfg := entropy.Config{Drift: entropy.High, Rot: entropy.Medium, OrgType: "b2b"}

	a, err := entropy.Perturb(task, cfg, 12345)
	if err != nil {
		t.Fatalf("Perturb: %v", err)
	}
	b, err := entropy.Perturb(task, cfg, 12345)
	if err != nil {
		t.Fatalf("Perturb: %v", err)
	}

	if a.Prompt != b.Prompt {
		t.Errorf("prompts differ:\n%s\n%s", a.Prompt, b.Prompt)
	}
	if a.RequiredContext != b.RequiredContext {
		t.Errorf("contexts differ")
	}
	if !reflect.DeepEqual(a.FieldRenameMap, b.FieldRenameMap) {
		t.Errorf("rename maps differ: %v vs %v", a.FieldRenameMap, b.FieldRenameMap)
	}
	if a.DistractorCount != b.DistractorCount {
		t.Errorf("distractor counts differ: %d vs %d", a.DistractorCount, b.DistractorCount)
	}
}

func TestPerturbNoneIsIdentity(t *testing.T) {
	task := sampleTask()
	pt, err := entropy.Perturb(task, entropy.Config{Drift: entropy.None, Rot: entropy.None}, 7)
	if err != nil {
		t.Fatalf("Perturb: %v", err)
	}
	if pt.Prompt != task.Prompt || pt.RequiredContext != task.RequiredContext {
		t.Errorf("perturbation at level none changed the task text")
	}
	if len(pt.FieldRenameMap) != 0 || pt.DistractorCount != 0 {
		t.Errorf("perturbation at level none recorded changes: %v, %d", pt.FieldRenameMap, pt.DistractorCount)
	}
}

func TestDriftRenamesHalfTheFields(t *testing.T) {
	task := sampleTask()
	// Fields present as whole words: id, name, status, owner_id, priority,
	// amount, region.
	pt, err := entropy.Perturb(task, entropy.Config{Drift: entropy.High, Rot: entropy.None}, 99)
	if err != nil {
		t.Fatalf("Perturb: %v", err)
	}

	const detected = 7
	want := 4 // round(0.5 * 7)
	if len(pt.FieldRenameMap) != want {
		t.Fatalf("renamed %d of %d fields, want %d: %v", len(pt.FieldRenameMap), detected, want, pt.FieldRenameMap)
	}

	seen := map[string]bool{}
	text := pt.Prompt + "\n" + pt.RequiredContext
	for old, alias := range pt.FieldRenameMap {
		if alias == old {
			t.Errorf("field %q renamed to itself", old)
		}
		if seen[alias] {
			t.Errorf("alias %q used for more than one field", alias)
		}
		seen[alias] = true
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(old) + `\b`)
		if re.MatchString(text) {
			t.Errorf("old name %q still present after drift", old)
		}
		if !strings.Contains(text, alias) {
			t.Errorf("alias %q missing from perturbed text", alias)
		}
	}
}

func TestDriftLevelsAreMonotonic(t *testing.T) {
	task := sampleTask()
	counts := map[entropy.Level]int{}
	for _, level := range []entropy.Level{entropy.Low, entropy.Medium, entropy.High} {
		pt, err := entropy.Perturb(task, entropy.Config{Drift: level, Rot: entropy.None}, 5)
		if err != nil {
			t.Fatalf("Perturb(%s): %v", level, err)
		}
		counts[level] = len(pt.FieldRenameMap)
	}
	if counts[entropy.Low] > counts[entropy.Medium] || counts[entropy.Medium] > counts[entropy.High] {
		t.Errorf("rename counts not monotonic: %v", counts)
	}
}

func TestRotInjectsDistractors(t *testing.T) {
	task := sampleTask()
	cases := []struct {
		level  entropy.Level
		lo, hi int
	}{
		{entropy.Low, 1, 2},
		{entropy.Medium, 3, 4},
		{entropy.High, 5, 7},
	}
	for _, tc := range cases {
		pt, err := entropy.Perturb(task, entropy.Config{Drift: entropy.None, Rot: tc.level}, 31)
		if err != nil {
			t.Fatalf("Perturb(%s): %v", tc.level, err)
		}
		if pt.DistractorCount < tc.lo || pt.DistractorCount > tc.hi {
			t.Errorf("%s: %d distractors, want %d..%d", tc.level, pt.DistractorCount, tc.lo, tc.hi)
		}

		before := len(strings.Split(task.RequiredContext, "\n"))
		after := len(strings.Split(pt.RequiredContext, "\n"))
		if after != before+pt.DistractorCount {
			t.Errorf("%s: %d records after rot, want %d", tc.level, after, before+pt.DistractorCount)
		}

		// Distractors must never introduce a new copy of the answer.
		hits := strings.Count(strings.ToLower(pt.RequiredContext), "acme corp")
		if hits != 1 {
			t.Errorf("%s: answer appears %d times after rot, want 1", tc.level, hits)
		}
	}
}

func TestRotHandlesMultiByteReferenceAnswers(t *testing.T) {
	// İ (U+0130) shrinks from 2 bytes to 1 when lowercased, so any
	// byte-offset matching against a lowercased copy would slice out of
	// range while building distractors.
	task := &corpus.Task{
		ID:       "task-tr",
		Category: "named_entity_disambiguation",
		Prompt:   "Which account has the open case?",
		RequiredContext: strings.Join([]string{
			"account: İstanbul Holdings | status: open | amount: 500",
			"account: Globex | status: closed | amount: 900",
		}, "\n"),
		ReferenceAnswers: []string{"İstanbul Holdings"},
		RewardMetric:     "exact_match",
	}

	for seed := int64(0); seed < 20; seed++ {
		pt, err := entropy.Perturb(task, entropy.Config{Drift: entropy.None, Rot: entropy.Low}, seed)
		if err != nil {
			t.Fatalf("Perturb(seed=%d): %v", seed, err)
		}
		if pt.DistractorCount == 0 {
			t.Fatalf("seed %d: no distractors injected", seed)
		}
		hits := strings.Count(strings.ToLower(pt.RequiredContext), "istanbul holdings")
		if hits != 1 {
			t.Errorf("seed %d: answer appears %d times after rot, want 1", seed, hits)
		}
	}
}

func TestTaskSeed(t *testing.T) {
	a := entropy.TaskSeed("task-001", 42)
	b := entropy.TaskSeed("task-001", 42)
	c := entropy.TaskSeed("task-002", 42)
	d := entropy.TaskSeed("task-001", 43)
	if a != b {
		t.Errorf("same task and run seed produced different seeds")
	}
	if a == c {
		t.Errorf("different tasks produced the same seed")
	}
	if a == d {
		t.Errorf("different run seeds produced the same seed")
	}
}

func TestStaleReferences(t *testing.T) {
	renames := map[string]string{"owner_id": "assignee", "status": "state"}
	trace := "SELECT owner_id FROM leads WHERE status = 'open' AND owner_id > 0"
	if got := entropy.StaleReferences(trace, renames); got != 3 {
		t.Errorf("StaleReferences = %d, want 3", got)
	}
	if got := entropy.StaleReferences("SELECT assignee FROM leads", renames); got != 0 {
		t.Errorf("StaleReferences on clean trace = %d, want 0", got)
	}
	if got := entropy.StaleReferences("", renames); got != 0 {
		t.Errorf("StaleReferences on empty trace = %d, want 0", got)
	}
}
