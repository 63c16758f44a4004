package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CreateRunDir makes a timestamped directory for one assessment run and
// repoints the latest symlink at it.
func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(runDir, "tasks"), 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

func taskPath(runDir, taskID string) string {
	return filepath.Join(runDir, "tasks", taskID+".json")
}

func WriteTaskResult(runDir string, r *TaskResult) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result for task %s: %w", r.TaskID, err)
	}
	return os.WriteFile(taskPath(runDir, r.TaskID), data, 0o644)
}

func ReadTaskResult(path string) (*TaskResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	var r TaskResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing result %s: %w", path, err)
	}
	return &r, nil
}

func WriteSummary(runDir string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, "summary.json"), data, 0o644)
}

func ReadSummary(runDir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "summary.json"))
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &s, nil
}

// CollectResults loads every per-task result stored under a run directory.
func CollectResults(runDir string) ([]*TaskResult, error) {
	entries, err := os.ReadDir(filepath.Join(runDir, "tasks"))
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	var results []*TaskResult
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		r, err := ReadTaskResult(filepath.Join(runDir, "tasks", e.Name()))
		if err != nil {
			continue
		}
		results = append(results, r)
	}
	SortByTaskID(results)
	return results, nil
}
