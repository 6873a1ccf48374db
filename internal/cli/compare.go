package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/config"
	"github.com/roach88/stepwise/internal/harness"
)

// defaultCompareNodes is the cluster size compare uses when neither the
// flags, the scenario, nor the config file ask for more than one node.
const defaultCompareNodes = 3

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Workers int
	Nodes   int
}

// StrategyRun is one execution in a comparison.
type StrategyRun struct {
	Strategy string `json:"strategy"`
	Workers  int    `json:"workers,omitempty"`
	Nodes    int    `json:"nodes"`
	Steps    int    `json:"steps"`
	Chain    string `json:"chain"`
}

// CompareOutput is the payload of the compare command.
type CompareOutput struct {
	Scenario string        `json:"scenario"`
	Match    bool          `json:"match"`
	Runs     []StrategyRun `json:"runs"`

	// FirstDivergence is the first step whose digest differs from the serial
	// run, or 0.
	FirstDivergence int `json:"first_divergence,omitempty"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <scenario>",
		Short: "Run a scenario on every strategy and compare digests",
		Long: `Run a scenario on the serial, parallel, and distributed engines and
compare their per-timestep summary digests. Any difference is a bug.

Exit codes:
  0 - All strategies produced the same digests
  1 - Digests differ
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker pool size (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.Nodes, "nodes", 0, "loopback cluster size of the distributed run")

	return cmd
}

func runCompare(opts *CompareOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.config()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}

	nodes := opts.Nodes
	if nodes == 0 {
		nodes = max(scenario.Nodes, cfg.Engine.Nodes)
	}
	if nodes < 2 {
		nodes = defaultCompareNodes
	}

	out := CompareOutput{Scenario: scenario.Name, Match: true}
	var reference *harness.Result
	for _, strategy := range []string{config.StrategySerial, config.StrategyParallel, config.StrategyDistributed} {
		runOpts := runOptionsFor(cfg, scenario, strategy, opts.Workers, nodes)
		runOpts.Logger = opts.logger()

		formatter.VerboseLog("running %s on %s", scenario.Name, strategy)
		result, err := harness.Run(commandContext(cmd), scenario, runOpts)
		if err != nil {
			return fail(formatter, ExitFailure, ErrCodeRun, strategy+" run failed", err)
		}

		out.Runs = append(out.Runs, StrategyRun{
			Strategy: result.Strategy,
			Workers:  result.Workers,
			Nodes:    result.Nodes,
			Steps:    len(result.Records),
			Chain:    result.Chain,
		})

		if reference == nil {
			reference = result
			continue
		}
		if result.Chain != reference.Chain {
			out.Match = false
			step := firstDivergence(reference, result)
			if out.FirstDivergence == 0 || step < out.FirstDivergence {
				out.FirstDivergence = step
			}
		}
	}

	err = formatter.Emit(out, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", out.Scenario)
		for _, r := range out.Runs {
			fmt.Fprintf(w, "  %-12s nodes=%d steps=%d chain=%s\n", r.Strategy, r.Nodes, r.Steps, r.Chain)
		}
		if out.Match {
			fmt.Fprintln(w, "✓ all strategies match")
		} else {
			fmt.Fprintf(w, "✗ digests diverge at step %d\n", out.FirstDivergence)
		}
	})
	if err != nil {
		return err
	}

	if !out.Match {
		return NewExitError(ExitFailure, fmt.Sprintf("digests diverge at step %d", out.FirstDivergence))
	}
	return nil
}

// firstDivergence returns the 1-based step of the first differing summary
// digest. A shorter trace diverges just past its end.
func firstDivergence(a, b *harness.Result) int {
	n := min(len(a.Records), len(b.Records))
	for i := range n {
		if a.Records[i].Digest != b.Records[i].Digest {
			return i + 1
		}
	}
	return n + 1
}
