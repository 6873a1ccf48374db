package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/testutil"
)

// storedRun runs the tiny scenario into a fresh database and returns its
// path.
func storedRun(t *testing.T, runID string) string {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "tiny.yaml", tinyScenario)
	dbPath := filepath.Join(dir, "runs.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		RunIDs:      testutil.NewFixedRunIDGenerator(runID),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	require.NoError(t, runScenarioFile(opts, path, cmd))
	return dbPath
}

func TestReport_ListRuns(t *testing.T) {
	dbPath := storedRun(t, "run-a")

	out, err := execute(t, "report", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "tiny")
	assert.Contains(t, out, "steps=3")
}

func TestReport_VerifyRun(t *testing.T) {
	dbPath := storedRun(t, "run-a")

	out, err := execute(t, "report", "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "step   1")
	assert.Contains(t, out, "step   3")
	assert.Contains(t, out, "✓ verified")
}

func TestReport_VerifyRun_JSON(t *testing.T) {
	dbPath := storedRun(t, "run-a")

	out, err := execute(t, "--format", "json", "report", "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Verified)
	assert.Len(t, resp.Data.Records, 3)
	assert.Equal(t, resp.Data.Run.FinalChain, resp.Data.Recomputed)
}

func TestReport_TamperedDigest(t *testing.T) {
	dbPath := storedRun(t, "run-a")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.ExecContext(context.Background(),
		`UPDATE timestep_summaries SET digest = 'bad' WHERE run_id = 'run-a' AND step = 2`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := execute(t, "report", "--db", dbPath, "--run", "run-a")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "digest mismatch at step 2")
}

func TestReport_FindDigest(t *testing.T) {
	dbPath := storedRun(t, "run-a")

	out, err := execute(t, "--format", "json", "report", "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)
	var resp struct {
		Data RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	digest := resp.Data.Records[0].Digest

	out, err = execute(t, "report", "--db", dbPath, "--digest", digest)
	require.NoError(t, err)
	assert.Equal(t, "run-a\n", out)
}

func TestReport_Errors(t *testing.T) {
	dbPath := storedRun(t, "run-a")

	_, err := execute(t, "report", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "report", "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run nope not found")

	_, err = execute(t, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
