package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DuplicateScenarioError is returned when two files of a suite declare the
// same scenario name. Names key golden files, so they must be unique.
type DuplicateScenarioError struct {
	Name  string
	First string
	Again string
}

// Error implements the error interface.
func (e *DuplicateScenarioError) Error() string {
	return fmt.Sprintf("scenario %q is declared by both %s and %s", e.Name, e.First, e.Again)
}

// LoadSuite loads every *.yaml scenario in dir, ordered by file name.
func LoadSuite(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("failed to read suite: %w", err)
		}
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if first, dup := seen[s.Name]; dup {
			return nil, &DuplicateScenarioError{Name: s.Name, First: first, Again: filepath.Base(path)}
		}
		seen[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
