package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/store"
	"github.com/roach88/stepwise/internal/testutil"
)

func TestRun_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tiny.yaml", tinyScenario)

	out, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tiny [serial]")
	assert.Contains(t, out, "steps: 3  end: 60")
	assert.Contains(t, out, "chain: ")
}

func TestRun_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tiny.yaml", tinyScenario)

	out, err := execute(t, "--format", "json", "run", "--strategy", "distributed", "--nodes", "2", path)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "distributed", resp.Data.Strategy)
	assert.Equal(t, 2, resp.Data.Nodes)
	assert.Equal(t, 3, resp.Data.Steps)
	assert.Equal(t, int64(60), resp.Data.End)
	assert.True(t, resp.Data.Pass)
	assert.Len(t, resp.Data.Chain, 64)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := strings.Replace(tinyScenario, "end: 80", "end: 100", 1)
	path := writeFile(t, t.TempDir(), "tiny.yaml", scenario)

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tiny")
	assert.Contains(t, out, "end 80")
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_Database(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tiny.yaml", tinyScenario)
	dbPath := filepath.Join(dir, "runs.db")

	buf := &bytes.Buffer{}
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		RunIDs:      testutil.NewFixedRunIDGenerator("run-tiny"),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	require.NoError(t, runScenarioFile(opts, path, cmd))
	assert.Contains(t, buf.String(), "run run-tiny")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "run-tiny")
	require.NoError(t, err)
	assert.Equal(t, "tiny", run.Scenario)
	assert.Equal(t, int64(3), run.Steps)

	records, err := st.ReadSummaries(context.Background(), "run-tiny")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
