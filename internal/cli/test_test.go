package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const failingScenario = `name: always_fails
steps:
  - add_wall: {id: wall-1, from: [0, 0], to: [10, 0]}
  - activate: true
  - tick: 1
assertions:
  - type: sweep_count
    count: 7
`

const passingScenario = `name: quiet_wall
steps:
  - add_wall: {id: wall-1, from: [0, 0], to: [10, 0]}
  - activate: true
  - tick: 1
assertions:
  - type: sweep_count
    owner: wall-1
    count: 1
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandHarnessScenariosPass(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ wall_move_relights")
	assert.Contains(t, out, "✓ All scenarios passed")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommandJSON(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), harnessScenarios)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, resp.Data.Total, resp.Data.Passed)
	assert.Len(t, resp.Data.Scenarios, resp.Data.Total)
	assert.Positive(t, resp.Data.Total)
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), harnessScenarios, "--filter", "wall_*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "wall_move_relights", resp.Data.Scenarios[0].Name)
}

func TestTestCommandBadFilter(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"fails.yaml": failingScenario})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ always_fails")
	assert.Contains(t, out, "Expected: 7 sweeps")
	assert.Contains(t, out, "1 failed")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"fails.yaml": failingScenario})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandEmptyDir(t *testing.T) {
	dir := writeScenarios(t, nil)

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"broken.yaml": "name: broken\nsteps: []\n"})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"quiet.yaml": passingScenario})
	goldenPath := filepath.Join(filepath.Dir(dir), "golden", "quiet_wall.golden")

	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"quiet_wall"`)

	// A second run compares against the file it just wrote.
	_, _, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"quiet.yaml": passingScenario})
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "quiet_wall.golden"), []byte("{}\n"), 0o644))

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/wall_move.yaml", "a/light.yml", "a/wall_x.yaml"}

	got, err := filterScenarios(files, "wall_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/wall_move.yaml", "a/wall_x.yaml"}, got)

	got, err = filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)
}
