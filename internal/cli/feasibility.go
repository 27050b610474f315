package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollis-b/affectlens/internal/feasibility"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/report"
	"github.com/hollis-b/affectlens/internal/sample"
)

const defaultPoolSize = 500

// NewFeasibilityCommand creates the feasibility command.
func NewFeasibilityCommand(rootOpts *RootOptions) *cobra.Command {
	var seed int64
	var samples int

	cmd := &cobra.Command{
		Use:   "feasibility <defs> <expression-id>",
		Short: "Classify each prerequisite clause as reachable or not",
		Long: `Scan a randomized context pool and classify every threshold clause of
the named expression: OK when some context satisfies it,
THEORETICALLY_IMPOSSIBLE when the axis domain proves it unreachable, and
EMPIRICALLY_UNREACHABLE when the pool merely never reached it.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeasibility(rootOpts, args[0], args[1], seed, samples, cmd)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for context generation")
	cmd.Flags().IntVar(&samples, "samples", defaultPoolSize, "context pool size")
	return cmd
}

func runFeasibility(opts *RootOptions, source, exprID string, seed int64, samples int, cmd *cobra.Command) error {
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
	pool := sample.NewGenerator(seed, sample.WithDomains(domains)).Pool(samples)
	results := feasibility.NewAnalyzer(model.NewNormalizer(domains), opts.Logger()).
		Analyze(expr.Prerequisites, pool, expr.ID)

	d := &report.Diagnostic{
		RunID:       report.UUIDv7Source{}.Generate(),
		Subject:     exprID,
		Seed:        seed,
		Samples:     samples,
		Feasibility: results,
	}
	if err := emitDiagnostic(formatter, d, func() error {
		printFeasibilityText(formatter, exprID, results)
		return nil
	}); err != nil {
		return err
	}

	for _, r := range results {
		if r.Classification != feasibility.ClassOK {
			return NewExitError(ExitFailure, fmt.Sprintf("expression %q has unsatisfiable clauses", exprID))
		}
	}
	return nil
}

func printFeasibilityText(f *OutputFormatter, exprID string, results []feasibility.Result) {
	fmt.Fprintf(f.Writer, "expression %q: %d clause(s)\n", exprID, len(results))
	for _, r := range results {
		marker := "✓"
		if r.Classification != feasibility.ClassOK {
			marker = "✗"
		}
		fmt.Fprintf(f.Writer, "  %s %s %s %g [%s]: pass rate %.3f",
			marker, r.Clause.Path, r.Clause.Op, r.Clause.Threshold, r.Clause.Signal, r.PassRate)
		if r.Observations > 0 {
			fmt.Fprintf(f.Writer, ", observed [%g, %g]", r.MinValue, r.MaxValue)
		}
		fmt.Fprintf(f.Writer, ": %s\n", r.Classification)
	}
}
