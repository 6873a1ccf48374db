package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/observer"
	"github.com/roach88/stepwise/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	RunID    string
	Digest   string
}

// RunReport is the payload of report --run.
type RunReport struct {
	Run        store.Run         `json:"run"`
	Records    []observer.Record `json:"records"`
	Verified   bool              `json:"verified"`
	Mismatch   int64             `json:"first_mismatch,omitempty"`
	Recomputed string            `json:"recomputed_chain"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect and verify stored runs",
		Long: `Inspect runs stored by "stepwise run --db".

Without --run, lists every stored run. With --run, prints the run's
timestep summaries and recomputes their digests and chain; a stored digest
that does not match is a verification failure. With --digest, lists the
runs that produced a timestep with that summary digest.

Exit codes:
  0 - Success
  1 - Stored digests do not verify
  2 - Command error (database or run not found, etc.)

Examples:
  stepwise report --db ./runs.db
  stepwise report --db ./runs.db --run 0190f6c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to verify")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "find runs containing this summary digest")
	_ = cmd.MarkFlagRequired("db")
	cmd.MarkFlagsMutuallyExclusive("run", "digest")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.logger().Error("error closing database", "error", closeErr)
		}
	}()

	switch {
	case opts.RunID != "":
		return reportRun(opts, st, formatter, cmd)
	case opts.Digest != "":
		return reportDigest(opts, st, formatter, cmd)
	default:
		return reportRuns(opts, st, formatter, cmd)
	}
}

func reportRuns(opts *ReportOptions, st *store.Store, formatter *OutputFormatter, cmd *cobra.Command) error {
	runs, err := st.ListRuns(commandContext(cmd))
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}

	return formatter.Emit(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs found.")
			return
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %-16s %-12s nodes=%d steps=%d chain=%s\n",
				r.ID, r.Scenario, r.Strategy, r.Nodes, r.Steps, r.FinalChain)
		}
	})
}

func reportRun(opts *ReportOptions, st *store.Store, formatter *OutputFormatter, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(formatter, ExitCommandError, ErrCodeStore, fmt.Sprintf("run %s not found", opts.RunID), err)
	}
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "failed to read run", err)
	}
	records, err := st.ReadSummaries(ctx, opts.RunID)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "failed to read summaries", err)
	}
	v, err := st.VerifyRun(ctx, opts.RunID)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "failed to verify run", err)
	}

	report := RunReport{
		Run:        run,
		Records:    records,
		Verified:   v.OK(),
		Mismatch:   v.FirstMismatch,
		Recomputed: v.Chain,
	}

	err = formatter.Emit(report, func(w io.Writer) {
		fmt.Fprintf(w, "run %s: %s on %s (nodes=%d, step=%d)\n",
			run.ID, run.Scenario, run.Strategy, run.Nodes, run.StepDuration)
		for _, rec := range records {
			s := rec.Summary
			fmt.Fprintf(w, "  step %3d  t=%-6d outcomes=%-6d visits=%-6d reports=%-6d digest=%s\n",
				s.Step, s.Window.Start, s.Outcomes, s.Visits, s.Reports, rec.Digest)
		}
		if report.Verified {
			fmt.Fprintf(w, "✓ verified, chain %s\n", v.Chain)
		} else {
			fmt.Fprintf(w, "✗ digest mismatch at step %d\n", v.FirstMismatch)
		}
	})
	if err != nil {
		return err
	}

	if !report.Verified {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: digest mismatch at step %d", run.ID, v.FirstMismatch))
	}
	return nil
}

func reportDigest(opts *ReportOptions, st *store.Store, formatter *OutputFormatter, cmd *cobra.Command) error {
	ids, err := st.FindRunsWithDigest(commandContext(cmd), opts.Digest)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeStore, "failed to search digests", err)
	}

	return formatter.Emit(ids, func(w io.Writer) {
		if len(ids) == 0 {
			fmt.Fprintln(w, "No runs found.")
			return
		}
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
	})
}
