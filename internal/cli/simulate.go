package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hollis-b/affectlens/internal/gate"
	"github.com/hollis-b/affectlens/internal/intensity"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/report"
	"github.com/hollis-b/affectlens/internal/sample"
	"github.com/hollis-b/affectlens/internal/simulate"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	var seed int64
	var samples int
	var retain bool
	var protoID string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "simulate <defs>",
		Short: "Monte-Carlo the reference calculator over random contexts",
		Long: `Draw randomized affect contexts and aggregate emotion outputs over
them. The built-in reference calculator treats each prototype's gated,
weighted intensity as one emotion channel; library consumers inject
their own calculator instead.

With --prototype, the run also reports the intensity distribution of
that prototype over the pool.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, args[0], simulateParams{
				seed:      seed,
				samples:   samples,
				retain:    retain,
				protoID:   protoID,
				threshold: threshold,
			}, cmd)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for context generation")
	cmd.Flags().IntVar(&samples, "samples", simulate.DefaultSamples, "number of contexts to draw")
	cmd.Flags().BoolVar(&retain, "retain", false, "keep raw samples on the summary")
	cmd.Flags().StringVar(&protoID, "prototype", "", "also report this prototype's intensity distribution")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "distribution threshold for --prototype")
	return cmd
}

type simulateParams struct {
	seed      int64
	samples   int
	retain    bool
	protoID   string
	threshold float64
}

func runSimulate(opts *RootOptions, source string, p simulateParams, cmd *cobra.Command) error {
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
	defs := loaded.Definitions

	domains := mergedDomains(defs)
	norm := model.NewNormalizer(domains)
	logger := opts.Logger()
	checker := gate.NewChecker(logger)
	calc := intensity.NewCalculator(norm, checker)

	sim := simulate.NewSimulator(
		newProtoCalculator(defs.Prototypes, norm, checker, calc),
		sample.NewGenerator(p.seed, sample.WithDomains(domains)),
		logger)
	summary, err := sim.Run(cmd.Context(), simulate.Options{
		Samples:       p.samples,
		RetainSamples: p.retain,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	d := &report.Diagnostic{
		RunID:      report.UUIDv7Source{}.Generate(),
		Seed:       p.seed,
		Samples:    summary.Samples,
		Simulation: summary,
	}
	if p.protoID != "" {
		proto, err := findPrototype(defs, p.protoID)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		pool := sample.NewGenerator(p.seed, sample.WithDomains(domains)).Pool(p.samples)
		dist := calc.ComputeDistribution(proto, pool, p.threshold)
		d.Subject = p.protoID
		d.Distribution = &dist
	}

	return emitDiagnostic(formatter, d, func() error {
		printSimulateText(formatter, d)
		return nil
	})
}

func printSimulateText(f *OutputFormatter, d *report.Diagnostic) {
	s := d.Simulation
	fmt.Fprintf(f.Writer, "%d sample(s), %d failed\n", s.Samples, s.FailedSamples)

	names := make([]string, 0, len(s.EmotionMean))
	for name := range s.EmotionMean {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(f.Writer, "  %s: mean %.4f, max %.4f\n", name, s.EmotionMean[name], s.EmotionMax[name])
	}
	fmt.Fprintf(f.Writer, "arousal: mean %.4f, max %.4f\n", s.ArousalMean, s.ArousalMax)

	if dist := d.Distribution; dist != nil {
		fmt.Fprintf(f.Writer, "prototype %q intensity over %d passing context(s): min %.4f p50 %.4f p90 %.4f max %.4f, above threshold %.3f\n",
			d.Subject, dist.SampleCount, dist.Min, dist.P50, dist.P90, dist.Max, dist.PAboveThreshold)
	}
}

// protoCalculator derives emotion outputs from the prototype definitions
// themselves: each prototype's gated, weighted intensity is one emotion
// channel. It stands in for the injected production calculator, whose
// formula is outside this module.
type protoCalculator struct {
	norm    *model.Normalizer
	checker *gate.Checker
	calc    *intensity.Calculator
	protos  []model.Prototype
	parsed  []gate.Parsed
}

func newProtoCalculator(protos []model.Prototype, norm *model.Normalizer, checker *gate.Checker, calc *intensity.Calculator) *protoCalculator {
	parsed := make([]gate.Parsed, len(protos))
	for i, p := range protos {
		parsed[i] = checker.Parse(p.Gates)
	}
	return &protoCalculator{norm: norm, checker: checker, calc: calc, protos: protos, parsed: parsed}
}

func (c *protoCalculator) CalculateEmotions(ctx *model.AffectContext) (map[string]float64, error) {
	flat := model.Flatten(ctx)
	out := make(map[string]float64, len(c.protos))
	for i, p := range c.protos {
		if !c.checker.PassFlat(c.parsed[i], flat) {
			out[p.ID] = 0
			continue
		}
		out[p.ID] = c.calc.Compute(p.Weights, flat)
	}
	return out, nil
}

func (c *protoCalculator) CalculateSexualArousal(ctx *model.AffectContext) (float64, error) {
	axes := ctx.Axes(model.GroupSexual)
	if len(axes) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range axes {
		n := c.norm.Normalize(model.GroupSexual, v)
		if n < 0 {
			n = -n
		}
		sum += n
	}
	return sum / float64(len(axes)), nil
}

func (c *protoCalculator) CalculateSexualStates(ctx *model.AffectContext) (map[string]float64, error) {
	axes := ctx.Axes(model.GroupSexual)
	out := make(map[string]float64, len(axes))
	for name, v := range axes {
		out[name] = c.norm.Normalize(model.GroupSexual, v)
	}
	return out, nil
}
