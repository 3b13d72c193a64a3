// -- cmd/cmd_test.go --
package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotweb/pilot-cli/internal/automator"
)

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	in := automator.Summary{
		RunID:        "run-1",
		Instructions: 3,
		Succeeded:    2,
		Failed:       1,
		Executions:   5,
		Success:      false,
	}

	require.NoError(t, writeSummary(in, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out automator.Summary
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestRunCommand_RequiresInput(t *testing.T) {
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetOut(&stderr)
	rootCmd.SetArgs([]string{"run"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction file")
}

func TestRootCommand_Version(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}
