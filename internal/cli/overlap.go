package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/overlap"
	"github.com/hollis-b/affectlens/internal/report"
	"github.com/hollis-b/affectlens/internal/sample"
)

// NewOverlapCommand creates the overlap command.
func NewOverlapCommand(rootOpts *RootOptions) *cobra.Command {
	var seed int64
	var samples int

	cmd := &cobra.Command{
		Use:   "overlap <defs>",
		Short: "Detect redundant prototype pairs",
		Long: `Compare every prototype pair: a cheap static filter on weight maps
selects candidates, behavior over a randomized context pool quantifies
their agreement, and each surviving pair is classified as a merge,
conversion, nesting or keep-distinct recommendation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverlap(rootOpts, args[0], seed, samples, cmd)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for context generation")
	cmd.Flags().IntVar(&samples, "samples", defaultPoolSize, "context pool size")
	return cmd
}

func runOverlap(opts *RootOptions, source string, seed int64, samples int, cmd *cobra.Command) error {
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
	if len(loaded.Definitions.Prototypes) < 2 {
		msg := fmt.Sprintf("need at least 2 prototypes, have %d", len(loaded.Definitions.Prototypes))
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	domains := mergedDomains(loaded.Definitions)
	pool := sample.NewGenerator(seed, sample.WithDomains(domains)).Pool(samples)

	analyzer := overlap.NewAnalyzer(
		overlap.WithNormalizer(model.NewNormalizer(domains)),
		overlap.WithLogger(opts.Logger()))

	var progress func(processed, total int)
	if opts.Verbose {
		progress = func(processed, total int) {
			formatter.VerboseLog("evaluated %d/%d contexts", processed, total)
		}
	}
	rep, err := analyzer.Analyze(cmd.Context(), loaded.Definitions.Prototypes, pool, progress)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	d := &report.Diagnostic{
		RunID:   report.UUIDv7Source{}.Generate(),
		Seed:    seed,
		Samples: samples,
		Overlap: rep,
	}
	return emitDiagnostic(formatter, d, func() error {
		printOverlapText(formatter, rep)
		return nil
	})
}

func printOverlapText(f *OutputFormatter, rep *overlap.Report) {
	fmt.Fprintf(f.Writer, "%d pair(s) considered, %d analyzed\n", rep.TotalPairs, len(rep.Pairs))
	for _, pr := range rep.Pairs {
		fmt.Fprintf(f.Writer, "  (%s, %s) score %.3f: %s\n",
			pr.Pair.A, pr.Pair.B, pr.CompositeScore, pr.Primary())
	}
	if cp := rep.ClosestPair; cp != nil {
		fmt.Fprintf(f.Writer, "closest pair: (%s, %s) score %.3f\n", cp.A, cp.B, cp.CompositeScore)
	}
}
