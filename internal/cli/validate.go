package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/harness"
)

// ValidationResult holds the validation result of one scenario file.
type ValidationResult struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema.

Checks YAML syntax, unknown fields, schema constraints, and the population
shape without running the simulation.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	results := make([]ValidationResult, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		r := ValidationResult{Path: path, Valid: true}
		s, err := harness.LoadScenario(path)
		if err != nil {
			r.Valid = false
			r.Errors = validationMessages(err)
			invalid++
		} else {
			r.Name = s.Name
			formatter.VerboseLog("%s: %d agents, %d locations, %d assertions",
				s.Name, s.Agents, s.Locations, len(s.Assertions))
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if invalid > 0 {
			if err := formatter.Error(ErrCodeScenario, fmt.Sprintf("%d invalid scenario(s)", invalid), results); err != nil {
				return err
			}
		} else if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s\n", r.Path)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", r.Path)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario(s)", invalid))
	}
	return nil
}

// validationMessages splits a load error into one message per problem.
func validationMessages(err error) []string {
	var schemaErr *harness.SchemaError
	if errors.As(err, &schemaErr) {
		return strings.Split(schemaErr.Details, "\n")
	}
	return strings.Split(err.Error(), "\n")
}
