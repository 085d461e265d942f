package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a classification scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Surface is an inline VM surface snapshot.
	Surface yaml.Node `yaml:"surface"`

	// Assertions validate the module info and the run's counters.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Module is the exposed module name. Skipped assertions for modules
	// whose name could not be read use the module id.
	Module string `yaml:"module,omitempty"`

	// Function is the function name (function).
	Function string `yaml:"function,omitempty"`

	// Expect holds expected record fields (function, module_type).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Stage is the expected skip stage (skipped).
	Stage string `yaml:"stage,omitempty"`

	// Field and Count select a counter and its expected value (count).
	Field string `yaml:"field,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFunction     = "function"
	AssertModuleType   = "module_type"
	AssertModuleAbsent = "module_absent"
	AssertSkipped      = "skipped"
	AssertCount        = "count"
)

// Counter names accepted by count assertions.
var counters = map[string]bool{
	"modules":     true,
	"indexed":     true,
	"functions":   true,
	"unknown":     true,
	"corrected":   true,
	"definitions": true,
	"unresolved":  true,
	"structural":  true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// surfaceYAML re-encodes the inline surface for the snapshot parser.
func (s *Scenario) surfaceYAML() ([]byte, error) {
	return yaml.Marshal(&s.Surface)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Surface.Kind != yaml.MappingNode {
		return fmt.Errorf("surface is required and must be a mapping")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFunction:
		if a.Module == "" || a.Function == "" {
			return fmt.Errorf("assertions[%d]: module and function are required for function", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for function", index)
		}
	case AssertModuleType:
		if a.Module == "" {
			return fmt.Errorf("assertions[%d]: module is required for module_type", index)
		}
		if _, ok := a.Expect["type"]; !ok {
			return fmt.Errorf("assertions[%d]: expect.type is required for module_type", index)
		}
	case AssertModuleAbsent:
		if a.Module == "" {
			return fmt.Errorf("assertions[%d]: module is required for module_absent", index)
		}
	case AssertSkipped:
		if a.Module == "" || a.Stage == "" {
			return fmt.Errorf("assertions[%d]: module and stage are required for skipped", index)
		}
	case AssertCount:
		if !counters[a.Field] {
			return fmt.Errorf("assertions[%d]: unknown counter %q", index, a.Field)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
