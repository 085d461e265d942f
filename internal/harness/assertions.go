package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/udonmeta/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertFunction:
		return assertFunction(r, a)
	case AssertModuleType:
		return assertModuleType(r, a)
	case AssertModuleAbsent:
		if _, ok := r.Index[a.Module]; ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no module %s", a.Module), Actual: "module present"}
		}
		return nil
	case AssertSkipped:
		return assertSkipped(r, a)
	case AssertCount:
		if got := r.counter(a.Field); got != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s = %d", a.Field, a.Count), Actual: fmt.Sprintf("%d", got)}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertFunction(r *Result, a Assertion) error {
	module, ok := r.Index[a.Module]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("module %s", a.Module), Actual: "module missing"}
	}
	fn, ok := module.Function(a.Function)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("function %s.%s", a.Module, a.Function),
			Actual:   fmt.Sprintf("functions %v", functionNames(module.Functions)),
		}
	}

	actual, err := asFields(fn)
	if err != nil {
		return err
	}
	if mismatch := matchFields(actual, a.Expect); mismatch != "" {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s.%s %s", a.Module, a.Function, mismatch), Actual: describe(actual)}
	}
	return nil
}

func assertModuleType(r *Result, a Assertion) error {
	module, ok := r.Index[a.Module]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("module %s", a.Module), Actual: "module missing"}
	}
	actual, err := asFields(struct {
		Type any `json:"type"`
	}{Type: module.Type})
	if err != nil {
		return err
	}
	if mismatch := matchFields(actual, map[string]any{"type": a.Expect["type"]}); mismatch != "" {
		return &AssertionError{Type: a.Type, Expected: mismatch, Actual: describe(actual)}
	}
	return nil
}

func assertSkipped(r *Result, a Assertion) error {
	var stages []string
	for _, skipped := range r.Report.Skipped {
		if skipped.Module != a.Module {
			continue
		}
		if skipped.Stage == a.Stage {
			return nil
		}
		stages = append(stages, skipped.Stage)
	}
	actual := "not skipped"
	if len(stages) > 0 {
		actual = "skipped at " + strings.Join(stages, ", ")
	}
	return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("module %s skipped at %s", a.Module, a.Stage), Actual: actual}
}

// asFields renders v through its JSON form so records compare by their
// document field names.
func asFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// matchFields checks expected against actual with subset semantics and
// returns a description of the first mismatch, or "".
func matchFields(actual, expected map[string]any) string {
	normalized, err := asFields(expected)
	if err != nil {
		return fmt.Sprintf("unusable expectation: %v", err)
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			return fmt.Sprintf("field %s (not in record)", k)
		}
		if !reflect.DeepEqual(got, normalized[k]) {
			return fmt.Sprintf("%s = %s", k, describeValue(normalized[k]))
		}
	}
	return ""
}

func describe(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("%v", fields)
	}
	return string(data)
}

func describeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func functionNames(fns []ir.FunctionDefinition) []string {
	names := make([]string, len(fns))
	for i, fn := range fns {
		names[i] = fn.Name
	}
	return names
}
