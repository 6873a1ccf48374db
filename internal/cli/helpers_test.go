package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// tinyScenario: every agent receives 2 outcomes per step after the first,
// every location 4 visits per step.
const tinyScenario = `
name: tiny
description: "8 agents over 4 locations"
agents: 8
locations: 4
visits_per_step: 2
reports_per_step: 1
seed_every: 3
steps: 3
step_duration: 20
assertions:
  - type: outcome_count
    expect: 4
  - type: visit_count
    expect: 12
  - type: timestep
    start: 60
    end: 80
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns its stdout. Logs go
// to a separate buffer. The default logger is restored when the test ends.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
