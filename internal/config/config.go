// Package config holds the harness configuration: the YAML file the CLI
// loads and the assessment settings that also arrive as JSON on the HTTP
// surface. Defaults are applied at construction; anything invalid is
// rejected before a single task runs.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entropix/gauntlet/internal/entropy"
)

type Config struct {
	Corpus     Corpus     `yaml:"corpus"`
	Agent      Agent      `yaml:"agent"`
	Assessment Assessment `yaml:"assessment"`
	Results    Results    `yaml:"results"`
	Baselines  Baselines  `yaml:"baselines"`
	Seed       int64      `yaml:"seed"`
}

type Corpus struct {
	Path    string `yaml:"path"`
	OrgType string `yaml:"org_type"`
}

// Agent locates the subject under test: either an already-running endpoint
// or an image the harness starts itself.
type Agent struct {
	Endpoint      string  `yaml:"endpoint"`
	Image         string  `yaml:"image"`
	ContainerPort int     `yaml:"container_port"`
	TaskPath      string  `yaml:"task_path"`
	CPULimit      float64 `yaml:"cpu_limit"`
	MemoryLimit   int64   `yaml:"memory_limit"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Baselines struct {
	Path string `yaml:"path"`
}

// Assessment is the per-run settings block. The same shape is accepted as
// the config object of an inbound assessment request.
type Assessment struct {
	TaskIDs        []string `yaml:"task_ids" json:"task_ids,omitempty"`
	TaskCategories []string `yaml:"task_categories" json:"task_categories,omitempty"`
	TaskLimit      int      `yaml:"task_limit" json:"task_limit,omitempty"`
	TaskPercentage float64  `yaml:"task_percentage" json:"task_percentage,omitempty"`
	DriftLevel     string   `yaml:"drift_level" json:"drift_level,omitempty"`
	RotLevel       string   `yaml:"rot_level" json:"rot_level,omitempty"`
	OrgType        string   `yaml:"org_type" json:"org_type,omitempty"`
	MaxSteps       int      `yaml:"max_steps" json:"max_steps,omitempty"`
	Timeout        int      `yaml:"timeout" json:"timeout,omitempty"` // seconds per task
	Concurrency    int      `yaml:"concurrency" json:"concurrency,omitempty"`
}

// ApplyDefaults fills unset assessment fields with the documented defaults.
func (a *Assessment) ApplyDefaults() {
	if a.TaskPercentage == 0 {
		a.TaskPercentage = 5.0
	}
	if a.DriftLevel == "" {
		a.DriftLevel = "none"
	}
	if a.RotLevel == "" {
		a.RotLevel = "none"
	}
	if a.OrgType == "" {
		a.OrgType = "b2b"
	}
	if a.MaxSteps == 0 {
		a.MaxSteps = 15
	}
	if a.Timeout == 0 {
		a.Timeout = 300
	}
	if a.Concurrency == 0 {
		a.Concurrency = 1
	}
}

// Validate rejects bad assessment settings. Call after ApplyDefaults.
func (a *Assessment) Validate() error {
	if _, err := entropy.ParseLevel(a.DriftLevel); err != nil {
		return fmt.Errorf("drift_level: %w", err)
	}
	if _, err := entropy.ParseLevel(a.RotLevel); err != nil {
		return fmt.Errorf("rot_level: %w", err)
	}
	if a.OrgType != "b2b" && a.OrgType != "b2c" {
		return fmt.Errorf("org_type must be b2b or b2c, got %q", a.OrgType)
	}
	if a.TaskLimit < 0 {
		return fmt.Errorf("task_limit must not be negative")
	}
	if a.TaskPercentage <= 0 || a.TaskPercentage > 100 {
		return fmt.Errorf("task_percentage must be in (0,100], got %v", a.TaskPercentage)
	}
	if a.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1")
	}
	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second")
	}
	if a.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

// Entropy converts the validated settings to an entropy config.
func (a *Assessment) Entropy() entropy.Config {
	return entropy.Config{
		Drift:   entropy.Level(a.DriftLevel),
		Rot:     entropy.Level(a.RotLevel),
		OrgType: a.OrgType,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	// Unknown keys are rejected here for the same reason the HTTP surface
	// rejects them: a typoed setting must not silently fall back to its
	// default.
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Corpus.Path == "" {
		return fmt.Errorf("corpus path is required")
	}
	if cfg.Corpus.OrgType == "" {
		cfg.Corpus.OrgType = "b2b"
	}
	if cfg.Corpus.OrgType != "b2b" && cfg.Corpus.OrgType != "b2c" {
		return fmt.Errorf("corpus org_type must be b2b or b2c, got %q", cfg.Corpus.OrgType)
	}
	if cfg.Agent.Image != "" && cfg.Agent.ContainerPort == 0 {
		cfg.Agent.ContainerPort = 9009
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	cfg.Assessment.ApplyDefaults()
	if err := cfg.Assessment.Validate(); err != nil {
		return err
	}
	return nil
}
