package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args, capturing stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	_, _, err := execute(t, "validate", "testdata/valid", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestValidateValidDefinitions(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/valid")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 prototype(s), 2 expression(s) valid")
}

func TestValidateInvalidDefinitionsJSON(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/invalid", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E211", resp.Error.Code)
}

func TestValidateMissingDirectory(t *testing.T) {
	_, _, err := execute(t, "validate", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateSaveThenLoadRegistry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "defs.db")

	_, _, err := execute(t, "validate", "testdata/valid", "--save", dbPath)
	require.NoError(t, err)

	// Analysis commands accept the registry file in place of a directory.
	stdout, _, err := execute(t, "witness", dbPath, "smile", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, `witness found for "smile"`)
}

func TestWitnessFound(t *testing.T) {
	stdout, _, err := execute(t, "witness", "testdata/valid", "smile", "--seed", "1", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	witness, ok := doc["witness"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, witness["found"])
	assert.Equal(t, "smile", doc["subject"])
	assert.NotEmpty(t, doc["run_id"])
}

func TestWitnessExhaustionExitsNonzero(t *testing.T) {
	stdout, _, err := execute(t, "witness", "testdata/valid", "impossible",
		"--seed", "1", "--max-iterations", "200")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, `no witness for "impossible"`)
}

func TestWitnessUnknownExpression(t *testing.T) {
	_, _, err := execute(t, "witness", "testdata/valid", "frown")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `expression "frown" not defined`)
}

func TestFeasibilityClassifiesClauses(t *testing.T) {
	stdout, _, err := execute(t, "feasibility", "testdata/valid", "impossible",
		"--seed", "2", "--samples", "150", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	results, ok := doc["feasibility"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "THEORETICALLY_IMPOSSIBLE", first["classification"])
}

func TestFeasibilityOKExitsZero(t *testing.T) {
	stdout, _, err := execute(t, "feasibility", "testdata/valid", "smile", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "OK")
}

func TestOverlapReportsPairs(t *testing.T) {
	stdout, _, err := execute(t, "overlap", "testdata/valid",
		"--seed", "3", "--samples", "300", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	overlap, ok := doc["overlap"].(map[string]any)
	require.True(t, ok)
	pairs, ok := overlap["pairs"].([]any)
	require.True(t, ok)
	require.Len(t, pairs, 1)
	assert.NotNil(t, overlap["closest_pair"])
}

func TestOverlapNeedsTwoPrototypes(t *testing.T) {
	_, _, err := execute(t, "overlap", "testdata/invalid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateAggregates(t *testing.T) {
	stdout, _, err := execute(t, "simulate", "testdata/valid",
		"--seed", "4", "--samples", "100", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	sim, ok := doc["simulation"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 100, sim["samples"], 0.1)
	means, ok := sim["emotion_mean"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, means, "joy")
	assert.Contains(t, means, "delight")
}

func TestSimulateWithDistribution(t *testing.T) {
	stdout, _, err := execute(t, "simulate", "testdata/valid",
		"--seed", "4", "--samples", "200", "--prototype", "joy", "--threshold", "0.4")
	require.NoError(t, err)
	assert.Contains(t, stdout, `prototype "joy" intensity`)
}
