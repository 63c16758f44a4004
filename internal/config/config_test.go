package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/entropix/gauntlet/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gauntlet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
corpus:
  path: tasks.json
agent:
  endpoint: http://localhost:9009/task
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a := cfg.Assessment
	if a.TaskPercentage != 5.0 {
		t.Errorf("task_percentage = %v, want 5.0", a.TaskPercentage)
	}
	if a.DriftLevel != "none" || a.RotLevel != "none" {
		t.Errorf("entropy defaults = %s/%s", a.DriftLevel, a.RotLevel)
	}
	if a.OrgType != "b2b" {
		t.Errorf("org_type = %s, want b2b", a.OrgType)
	}
	if a.MaxSteps != 15 || a.Timeout != 300 || a.Concurrency != 1 {
		t.Errorf("defaults = steps %d, timeout %d, concurrency %d", a.MaxSteps, a.Timeout, a.Concurrency)
	}
	if cfg.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Seed)
	}
	if cfg.Results.Dir != "results" {
		t.Errorf("results dir = %s, want results", cfg.Results.Dir)
	}
	if cfg.Corpus.OrgType != "b2b" {
		t.Errorf("corpus org_type = %s, want b2b", cfg.Corpus.OrgType)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
corpus:
  path: tasks.json
  org_type: b2c
agent:
  image: crm-agent:latest
assessment:
  drift_level: medium
  rot_level: high
  task_categories: [lead_routing]
  concurrency: 4
  timeout: 120
results:
  dir: out
baselines:
  path: baselines.yaml
seed: 7
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assessment.DriftLevel != "medium" || cfg.Assessment.RotLevel != "high" {
		t.Errorf("entropy = %s/%s", cfg.Assessment.DriftLevel, cfg.Assessment.RotLevel)
	}
	if cfg.Agent.ContainerPort != 9009 {
		t.Errorf("container_port default = %d, want 9009", cfg.Agent.ContainerPort)
	}
	if cfg.Seed != 7 {
		t.Errorf("seed = %d", cfg.Seed)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing corpus path", `
agent:
  endpoint: http://localhost:9009/task
`},
		{"bad drift level", `
corpus:
  path: tasks.json
agent:
  endpoint: http://localhost:9009/task
assessment:
  drift_level: extreme
`},
		{"bad org type", `
corpus:
  path: tasks.json
  org_type: b2x
agent:
  endpoint: http://localhost:9009/task
`},
		{"percentage over 100", `
corpus:
  path: tasks.json
agent:
  endpoint: http://localhost:9009/task
assessment:
  task_percentage: 150
`},
		{"unknown key", `
corpus:
  path: tasks.json
agent:
  endpoint: http://localhost:9009/task
assessment:
  task_pct: 5
`},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.content)
		if _, err := config.Load(path); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestAssessmentValidate(t *testing.T) {
	a := config.Assessment{}
	a.ApplyDefaults()
	if err := a.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}

	a.Concurrency = -1
	if err := a.Validate(); err == nil {
		t.Errorf("expected error for negative concurrency")
	}
}
