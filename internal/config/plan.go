package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/churn-dev/churn/internal/types"
)

// planFile is the on-disk plan document
type planFile struct {
	Units []planUnit `yaml:"units"`
}

// planUnit is one unit entry in a plan file
type planUnit struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	DependsOn []string `yaml:"depends_on"`
	Notes     string   `yaml:"notes"`
}

// LoadPlan reads a YAML plan file and returns the units in file order,
// all pending. Ids must be unique and dependencies must name units
// declared in the same file.
func LoadPlan(path string) ([]types.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	var doc planFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}
	if len(doc.Units) == 0 {
		return nil, fmt.Errorf("plan file %s declares no units", path)
	}

	seen := make(map[string]bool, len(doc.Units))
	for i, u := range doc.Units {
		if u.ID == "" {
			return nil, fmt.Errorf("plan file %s: unit %d has no id", path, i+1)
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("plan file %s: duplicate unit id %q", path, u.ID)
		}
		seen[u.ID] = true
	}

	units := make([]types.Unit, 0, len(doc.Units))
	for _, u := range doc.Units {
		for _, dep := range u.DependsOn {
			if dep == u.ID {
				return nil, fmt.Errorf("plan file %s: unit %q depends on itself", path, u.ID)
			}
			if !seen[dep] {
				return nil, fmt.Errorf("plan file %s: unit %q depends on unknown unit %q",
					path, u.ID, dep)
			}
		}
		units = append(units, types.Unit{
			ID:        u.ID,
			Title:     u.Title,
			Status:    types.UnitPending,
			DependsOn: u.DependsOn,
			Notes:     u.Notes,
		})
	}
	return units, nil
}
