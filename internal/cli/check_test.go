package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: util_method
description: An unlisted function classifies as a static void method
surface:
  root:
    name: Root
  modules:
    - id: m1
      name: Util
      functions:
        - {name: __Run__SystemVoid, parameterCount: 0}
assertions:
  - type: function
    module: Util
    function: __Run__SystemVoid
    expect:
      defType: METHOD_INFO
      isStatic: true
`

const failingScenario = `
name: wrong_count
description: Expects a module that is not there
surface:
  root:
    name: Root
  modules: []
assertions:
  - type: count
    field: indexed
    count: 1
`

func TestCheckScenarios(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	writeFile(t, filepath.Join(scenarios, "a.yaml"), passingScenario)
	writeFile(t, filepath.Join(scenarios, "b.yaml"), failingScenario)

	stdout, _, err := execute(t, dir, "check", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeCheck)
	assert.Contains(t, stdout, "✓ util_method")
	assert.Contains(t, stdout, "✗ wrong_count")
	assert.Contains(t, stdout, "count: expected indexed = 1, got 0")
	assert.Contains(t, stdout, "1 passed, 1 failed, 2 total")
}

func TestCheckFilterJSON(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	writeFile(t, filepath.Join(scenarios, "a.yaml"), passingScenario)
	writeFile(t, filepath.Join(scenarios, "b.yaml"), failingScenario)

	stdout, _, err := execute(t, dir, "--format", "json", "check", "--filter", "util_*", scenarios)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "util_method", resp.Data.Scenarios[0].Name)
}

func TestCheckMalformedScenario(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	writeFile(t, filepath.Join(scenarios, "bad.yaml"), "name: bad\nassertion: []\n")

	_, _, err := execute(t, dir, "check", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, dir, "check", filepath.Join(dir, "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
