package result_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/score"
)

func sampleResults() []*result.TaskResult {
	return []*result.TaskResult{
		{
			TaskID: "t1", Category: "lead_routing", Status: result.StatusCompleted,
			Reward: 1, Passed: true, TotalScore: 90,
			Dimensions:   map[score.Dimension]float64{score.Functional: 100},
			AgentSeconds: 2,
		},
		{
			TaskID: "t2", Category: "lead_routing", Status: result.StatusCompleted,
			TotalScore:   40,
			Dimensions:   map[score.Dimension]float64{score.Functional: 0},
			AgentSeconds: 3,
		},
		{
			TaskID: "t3", Category: "knowledge_qa", Status: result.StatusTimeout,
			Dimensions:   map[score.Dimension]float64{score.Functional: 0},
			AgentSeconds: 10,
		},
	}
}

func TestSummarize(t *testing.T) {
	s := result.Summarize(sampleResults(), 20*time.Second)
	if s.TotalTasks != 3 || s.TotalPassed != 1 {
		t.Errorf("totals = %d/%d, want 1/3", s.TotalPassed, s.TotalTasks)
	}
	if s.PassRate < 0.33 || s.PassRate > 0.34 {
		t.Errorf("PassRate = %v", s.PassRate)
	}
	cat := s.ByCategory["lead_routing"]
	if cat.Count != 2 || cat.Passed != 1 {
		t.Errorf("lead_routing stats = %+v", cat)
	}
	if s.Timing.TotalSeconds != 20 || s.Timing.AgentSeconds != 15 {
		t.Errorf("timing = %+v", s.Timing)
	}
	if s.Aborted {
		t.Errorf("summary marked aborted without cancelled results")
	}
}

func TestSummarizeIsOrderIndependent(t *testing.T) {
	base := result.Summarize(sampleResults(), time.Minute)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := sampleResults()
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		s := result.Summarize(shuffled, time.Minute)
		if s.TotalTasks != base.TotalTasks || s.PassRate != base.PassRate || s.AvgScore != base.AvgScore {
			t.Fatalf("summary differs under permutation: %+v vs %+v", s, base)
		}
		for d, v := range base.DimensionAverages {
			if s.DimensionAverages[d] != v {
				t.Fatalf("dimension %s differs under permutation", d)
			}
		}
	}
}

func TestSummarizeExcludesCancelled(t *testing.T) {
	results := append(sampleResults(), &result.TaskResult{
		TaskID: "t4", Category: "knowledge_qa", Status: result.StatusCancelled,
	})
	s := result.Summarize(results, time.Minute)
	if s.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, cancelled result was counted", s.TotalTasks)
	}
	if !s.Aborted {
		t.Errorf("summary with cancelled results not marked aborted")
	}
}

func TestStorageRoundTrip(t *testing.T) {
	runDir, err := result.CreateRunDir(t.TempDir())
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}

	for _, r := range sampleResults() {
		if err := result.WriteTaskResult(runDir, r); err != nil {
			t.Fatalf("WriteTaskResult: %v", err)
		}
	}
	results, err := result.CollectResults(runDir)
	if err != nil {
		t.Fatalf("CollectResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("collected %d results, want 3", len(results))
	}

	summary := result.Summarize(results, time.Minute)
	if err := result.WriteSummary(runDir, summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	read, err := result.ReadSummary(runDir)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if read.TotalTasks != summary.TotalTasks || read.AvgScore != summary.AvgScore {
		t.Errorf("summary round-trip mismatch: %+v vs %+v", read, summary)
	}
}

func TestCreateRunDirUpdatesLatest(t *testing.T) {
	base := t.TempDir()
	runDir, err := result.CreateRunDir(base)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	latest, err := os.Readlink(filepath.Join(base, "latest"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if filepath.Base(latest) != filepath.Base(runDir) {
		t.Errorf("latest points to %s, want %s", latest, runDir)
	}
}

func TestSortByTaskID(t *testing.T) {
	results := []*result.TaskResult{{TaskID: "t3"}, {TaskID: "t1"}, {TaskID: "t2"}}
	result.SortByTaskID(results)
	for i, want := range []string{"t1", "t2", "t3"} {
		if results[i].TaskID != want {
			t.Fatalf("position %d = %s, want %s", i, results[i].TaskID, want)
		}
	}
}
