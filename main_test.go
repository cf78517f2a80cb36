package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/utils"
)

func TestMain(m *testing.M) {
	utils.SetColorize(false)
	os.Exit(m.Run())
}

func runCLI(t *testing.T, args ...string) (string, error) {
	cmd := rootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--modulepath", "examples/src"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestValuesCommand(t *testing.T) {
	out, err := runCLI(t, "examples/values/branches")
	require.NoError(t, err, out)

	assert.Contains(t, out, "branches.choose")
	assert.Contains(t, out, "returns {1, 2}")
	assert.Contains(t, out, "branches.negate")
}

func TestSingleFunction(t *testing.T) {
	out, err := runCLI(t, "-f", "unsafe", "--metrics", "examples/values/panics")
	require.NoError(t, err, out)

	assert.Contains(t, out, "panics.unsafe")
	assert.NotContains(t, out, "panics.safe")
	assert.Contains(t, out, "may panic")
	assert.Contains(t, out, "goat_flow_blocks_processed_total")

	_, err = runCLI(t, "-f", "missing", "examples/values/panics")
	assert.Error(t, err)
}

func TestNullnessCommand(t *testing.T) {
	out, err := runCLI(t, "-a", "nullness", "examples/nullness/locals")
	require.NoError(t, err, out)

	lines := strings.Split(out, "\n")
	var derefs []string
	for _, l := range lines {
		if strings.Contains(l, "receiver of") {
			derefs = append(derefs, l)
		}
	}
	require.Len(t, derefs, 1, out)
	assert.Contains(t, derefs[0], "main.go:15")
	assert.Contains(t, derefs[0], "is nil")
}

func TestUnknownAnalysis(t *testing.T) {
	_, err := runCLI(t, "-a", "liveness", "examples/values/branches")
	assert.Error(t, err)
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printMetrics(&buf, dataflow.NewMetrics()))
	assert.Contains(t, buf.String(), "goat_flow_blocks_processed_total 0")
	assert.Contains(t, buf.String(), "goat_flow_activation_duration_seconds 0 samples")
}
