package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../../testdata/scenarios"

// writeScenario writes content next to a placeholder product file.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product.cue"), []byte("// placeholder"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
product: product.cue
initial_variation: 7
steps:
  - select_attribute: {attribute: 1, value: 2}
    expect:
      variation: 8
      notices: []
  - probe_unit: 3
    expect:
      valid: true
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "product.cue"), s.Product)
	assert.Equal(t, int64(7), s.InitialVariation)
	require.Len(t, s.Steps, 2)

	assert.Equal(t, StepSelectAttribute, s.Steps[0].Kind())
	assert.Equal(t, AttributeTarget{Attribute: 1, Value: 2}, *s.Steps[0].SelectAttribute)
	assert.Equal(t, int64(8), *s.Steps[0].Expect.Variation)
	assert.NotNil(t, s.Steps[0].Expect.Notices)
	assert.Empty(t, s.Steps[0].Expect.Notices)

	assert.Equal(t, StepProbeUnit, s.Steps[1].Kind())
	assert.True(t, s.Steps[1].IsProbe())
	assert.True(t, *s.Steps[1].Expect.Valid)
}

func TestLoadScenario_RepositoryScenarios(t *testing.T) {
	files, err := FindScenarios(scenariosDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: d\nproduct: product.cue\nstep: []\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			content: "description: d\nproduct: product.cue\nsteps:\n  - select_unit: 1\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nproduct: product.cue\nsteps:\n  - select_unit: 1\n",
			wantErr: "description is required",
		},
		{
			name:    "missing product",
			content: "name: x\ndescription: d\nsteps:\n  - select_unit: 1\n",
			wantErr: "product is required",
		},
		{
			name:    "no steps",
			content: "name: x\ndescription: d\nproduct: product.cue\n",
			wantErr: "steps list is required",
		},
		{
			name:    "two actions in one step",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - select_unit: 1\n    probe_unit: 1\n",
			wantErr: "steps[0]: exactly one of",
		},
		{
			name:    "probe without valid",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - probe_unit: 1\n",
			wantErr: "probes require expect.valid",
		},
		{
			name:    "probe with variation",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - probe_unit: 1\n    expect: {valid: true, variation: 3}\n",
			wantErr: "probes only support",
		},
		{
			name:    "valid on selection",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - select_unit: 1\n    expect: {valid: true}\n",
			wantErr: "only supported on probes",
		},
		{
			name:    "error with variation",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - select_unit: 1\n    expect: {error: INVALID_TARGET, variation: 3}\n",
			wantErr: "expect.error excludes",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - select_unit: 1\nassertions:\n  - type: trace_contains\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "empty final_state",
			content: "name: x\ndescription: d\nproduct: product.cue\nsteps:\n  - select_unit: 1\nassertions:\n  - type: final_state\n",
			wantErr: "final_state requires",
		},
		{
			name:    "missing product file",
			content: "name: x\ndescription: d\nproduct: other.cue\nsteps:\n  - select_unit: 1\n",
			wantErr: "product file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.cue"), []byte("// placeholder"), 0o644))
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ndescription: d\nproduct: p.cue\nsteps:\n  - select_unit: 1\n"), 0o644))

	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p.cue"), s.Product)
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)

	files, err = FindScenarios(filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = FindScenarios(filepath.Join(dir, "missing"))
	var nf *ScenarioNotFoundError
	assert.ErrorAs(t, err, &nf)
}
