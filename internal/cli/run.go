package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/config"
	"github.com/roach88/stepwise/internal/engine"
	"github.com/roach88/stepwise/internal/harness"
	"github.com/roach88/stepwise/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Strategy string
	Workers  int
	Nodes    int

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunOutput is the payload of the run command.
type RunOutput struct {
	Scenario string   `json:"scenario"`
	RunID    string   `json:"run_id"`
	Strategy string   `json:"strategy"`
	Workers  int      `json:"workers,omitempty"`
	Nodes    int      `json:"nodes"`
	Steps    int      `json:"steps"`
	End      int64    `json:"end"` // simulated time reached
	Chain    string   `json:"chain"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario",
		Long: `Run a scenario file and check its assertions.

Flags override the scenario, and the config file fills in what the
scenario leaves unset. With --db (or [store] path in the config file) the run and
every timestep summary are written to a SQLite database.

Example:
  stepwise run ./scenarios/reference.yaml
  stepwise run --db ./runs.db --strategy parallel --workers 8 ./scenarios/reference.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "serial | parallel | distributed")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker pool size (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.Nodes, "nodes", 0, "loopback cluster size (distributed only)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}

	runOpts := runOptionsFor(opts.config(), scenario, opts.Strategy, opts.Workers, opts.Nodes)
	runOpts.RunIDs = opts.RunIDs
	runOpts.Logger = logger

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.config().Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return fail(formatter, ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts.Store = st
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter.VerboseLog("running %s (%d agents, %d locations, %d steps)",
		scenario.Name, scenario.Agents, scenario.Locations, scenario.Steps)

	result, err := harness.Run(ctx, scenario, runOpts)
	if err != nil {
		return fail(formatter, ExitFailure, ErrCodeRun, "run failed", err)
	}

	out := RunOutput{
		Scenario: scenario.Name,
		RunID:    result.RunID,
		Strategy: result.Strategy,
		Workers:  result.Workers,
		Nodes:    result.Nodes,
		Steps:    len(result.Records),
		End:      result.Final.Start,
		Chain:    result.Chain,
		Pass:     result.Pass,
		Errors:   result.Errors,
	}

	err = formatter.Emit(out, func(w io.Writer) {
		mark := "✓"
		if !out.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s [%s] run %s\n", mark, out.Scenario, out.Strategy, out.RunID)
		fmt.Fprintf(w, "  steps: %d  end: %d\n", out.Steps, out.End)
		fmt.Fprintf(w, "  chain: %s\n", out.Chain)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	})
	if err != nil {
		return err
	}

	if !out.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s [%s] run %s\n", mark, out.Scenario, out.Strategy, out.RunID)
		fmt.Fprintf(w, "  steps: %d  end: %d\n", out.Steps, out.End)
		fmt.Fprintf(w, "  chain: %s\n", out.Chain)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(out.Errors)))
	}
	return nil
}

// runOptionsFor resolves execution settings: flags first, then the
// scenario, then cfg. Chunk and buffer sizes missing from the scenario are
// filled in from cfg.
func runOptionsFor(cfg config.Config, s *harness.Scenario, strategy string, workers, nodes int) harness.RunOptions {
	if s.ChunkSize == 0 {
		s.ChunkSize = cfg.Engine.ChunkSize
	}
	if s.BufferSize == 0 {
		s.BufferSize = cfg.Engine.BufferSize
	}

	opts := harness.RunOptions{Strategy: strategy, Workers: workers, Nodes: nodes}
	if opts.Strategy == "" && s.Strategy == "" {
		opts.Strategy = cfg.Engine.Strategy
	}
	if opts.Workers == 0 && s.Workers == 0 {
		opts.Workers = cfg.Engine.Workers
	}
	if opts.Nodes == 0 && s.Nodes == 0 {
		opts.Nodes = cfg.Engine.Nodes
	}
	return opts
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// fail reports err through the formatter and returns it as an ExitError.
func fail(f *OutputFormatter, code int, errCode, message string, err error) error {
	if f.JSON() {
		if outErr := f.Error(errCode, message, err.Error()); outErr != nil {
			return outErr
		}
	}
	return WrapExitError(code, message, err)
}
