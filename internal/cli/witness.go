package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/report"
	"github.com/hollis-b/affectlens/internal/sample"
	"github.com/hollis-b/affectlens/internal/search"
)

// NewWitnessCommand creates the witness command.
func NewWitnessCommand(rootOpts *RootOptions) *cobra.Command {
	var seed int64
	var maxIterations int

	cmd := &cobra.Command{
		Use:   "witness <defs> <expression-id>",
		Short: "Search for a context satisfying an expression's prerequisites",
		Long: `Search randomized affect contexts for one that satisfies every
prerequisite of the named expression. When no witness is found within the
iteration budget, the nearest miss and its violated clauses are reported.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWitness(rootOpts, args[0], args[1], seed, maxIterations, cmd)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for context generation")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", search.DefaultMaxIterations, "iteration budget")
	return cmd
}

func runWitness(opts *RootOptions, source, exprID string, seed int64, maxIterations int, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadDefinitions(cmd.Context(), source)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	expr, err := findExpression(loaded.Definitions, exprID)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	domains := mergedDomains(loaded.Definitions)
	finder := search.NewFinder(
		sample.NewGenerator(seed, sample.WithDomains(domains)),
		model.NewNormalizer(domains),
		opts.Logger())

	var progress func(done, total int)
	if opts.Verbose {
		progress = func(done, total int) {
			formatter.VerboseLog("searched %d/%d iterations", done, total)
		}
	}
	result, err := finder.FindWitness(cmd.Context(), expr, search.Options{
		MaxIterations: maxIterations,
		OnProgress:    progress,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	d := &report.Diagnostic{
		RunID:   report.UUIDv7Source{}.Generate(),
		Subject: exprID,
		Seed:    seed,
		Witness: result,
	}
	if err := emitDiagnostic(formatter, d, func() error {
		printWitnessText(formatter, exprID, result)
		return nil
	}); err != nil {
		return err
	}

	if !result.Found {
		return NewExitError(ExitFailure, fmt.Sprintf("no witness for %q in %d iterations", exprID, result.IterationsUsed))
	}
	return nil
}

func printWitnessText(f *OutputFormatter, exprID string, r *search.Result) {
	if r.Found {
		fmt.Fprintf(f.Writer, "✓ witness found for %q after %d iteration(s)\n", exprID, r.IterationsUsed)
		return
	}
	fmt.Fprintf(f.Writer, "✗ no witness for %q in %d iteration(s) (best fitness %.4f)\n",
		exprID, r.IterationsUsed, r.BestFitness)
	for _, v := range r.ViolatedClauses {
		if !v.Resolved {
			fmt.Fprintf(f.Writer, "  %s %s %g: variable unresolved\n", v.Clause.Path, v.Clause.Op, v.Clause.Threshold)
			continue
		}
		fmt.Fprintf(f.Writer, "  %s %s %g: nearest value %g\n", v.Clause.Path, v.Clause.Op, v.Clause.Threshold, v.Observed)
	}
}
