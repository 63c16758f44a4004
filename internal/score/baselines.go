package score

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Baselines holds the expected resource usage for a task category. Usage at
// or under the baseline earns full efficiency credit.
type Baselines struct {
	Tokens    int `yaml:"tokens"`
	Queries   int `yaml:"queries"`
	ToolCalls int `yaml:"tool_calls"`
}

// DefaultBaselines applies when a category has no tuned entry.
var DefaultBaselines = Baselines{
	Tokens:    10000,
	Queries:   20,
	ToolCalls: 5,
}

// Table maps task categories to baselines.
type Table struct {
	Categories map[string]Baselines
}

// LoadTable reads a category baselines file so budgets can be tuned without
// rebuilding.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baselines file: %w", err)
	}
	var categories map[string]Baselines
	if err := yaml.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("parsing baselines file: %w", err)
	}
	return &Table{Categories: categories}, nil
}

// For returns the baselines for a category, filling unset values from the
// defaults. A nil table yields the defaults.
func (t *Table) For(category string) Baselines {
	b := DefaultBaselines
	if t == nil {
		return b
	}
	entry, ok := t.Categories[category]
	if !ok {
		return b
	}
	if entry.Tokens > 0 {
		b.Tokens = entry.Tokens
	}
	if entry.Queries > 0 {
		b.Queries = entry.Queries
	}
	if entry.ToolCalls > 0 {
		b.ToolCalls = entry.ToolCalls
	}
	return b
}
