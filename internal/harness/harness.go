package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cuelang.org/go/cue/cuecontext"

	"github.com/hollis-b/affectlens/internal/compiler"
	"github.com/hollis-b/affectlens/internal/feasibility"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/overlap"
	"github.com/hollis-b/affectlens/internal/registry"
	"github.com/hollis-b/affectlens/internal/sample"
	"github.com/hollis-b/affectlens/internal/search"
)

const defaultSamples = 200

// Result is the outcome of one scenario run.
type Result struct {
	Scenario *Scenario `json:"-"`

	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`

	// Witness holds the witness search result per expression id.
	Witness map[string]*search.Result `json:"witness,omitempty"`
	// Feasibility holds per-clause results per expression id.
	Feasibility map[string][]feasibility.Result `json:"feasibility,omitempty"`
	// Overlap is the prototype overlap report, when that pipeline ran.
	Overlap *overlap.Report `json:"overlap,omitempty"`
}

// Run executes a scenario against the real diagnostic pipelines.
//
// The scenario's CUE definitions are compiled and validated, a seeded
// context pool is generated, and each requested pipeline runs over it.
// Assertion failures are collected, not fail-fast, so a run reports every
// violated expectation at once. An error return means the scenario could
// not be executed at all; assertion failures are not errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	defs, err := compiler.Compile(cuecontext.New().CompileString(scenario.Definitions))
	if err != nil {
		return nil, fmt.Errorf("compile definitions: %w", err)
	}
	if errs := compiler.Validate(defs); len(errs) > 0 {
		return nil, fmt.Errorf("invalid definitions:\n%s", compiler.FormatErrors(errs))
	}

	reg := registry.NewMemory()
	if err := registry.Load(ctx, reg, defs.Prototypes, defs.Expressions); err != nil {
		return nil, fmt.Errorf("seed registry: %w", err)
	}

	norm := model.NewNormalizer(defs.Domains)
	samples := scenario.Samples
	if samples <= 0 {
		samples = defaultSamples
	}
	pool := sample.NewGenerator(scenario.Seed, sample.WithDomains(normDomains(defs))).Pool(samples)

	res := &Result{Scenario: scenario}

	expressions, err := selectExpressions(ctx, reg, scenario.Expressions)
	if err != nil {
		return nil, err
	}

	if scenario.runs(PipelineWitness) && len(expressions) > 0 {
		res.Witness = map[string]*search.Result{}
		for _, expr := range expressions {
			// Each search gets its own generator so scenario outcomes do
			// not depend on pipeline ordering.
			finder := search.NewFinder(
				sample.NewGenerator(scenario.Seed, sample.WithDomains(normDomains(defs))),
				norm, logger)
			sr, err := finder.FindWitness(ctx, expr, search.Options{MaxIterations: scenario.MaxIterations})
			if err != nil {
				return nil, fmt.Errorf("witness search for %q: %w", expr.ID, err)
			}
			res.Witness[expr.ID] = sr
		}
	}

	if scenario.runs(PipelineFeasibility) && len(expressions) > 0 {
		res.Feasibility = map[string][]feasibility.Result{}
		analyzer := feasibility.NewAnalyzer(norm, logger)
		for _, expr := range expressions {
			res.Feasibility[expr.ID] = analyzer.Analyze(expr.Prerequisites, pool, expr.ID)
		}
	}

	if scenario.runs(PipelineOverlap) {
		prototypes, err := reg.Prototypes(ctx)
		if err != nil {
			return nil, err
		}
		if len(prototypes) > 1 {
			analyzer := overlap.NewAnalyzer(
				overlap.WithNormalizer(norm),
				overlap.WithLogger(logger))
			rep, err := analyzer.Analyze(ctx, prototypes, pool, nil)
			if err != nil {
				return nil, fmt.Errorf("overlap analysis: %w", err)
			}
			res.Overlap = rep
		}
	}

	res.Failures = evaluateAssertions(scenario, res)
	res.Passed = len(res.Failures) == 0
	return res, nil
}

func normDomains(defs *compiler.Definitions) map[model.AxisGroup]model.Domain {
	if len(defs.Domains) == 0 {
		return model.DefaultDomains()
	}
	domains := model.DefaultDomains()
	for g, d := range defs.Domains {
		domains[g] = d
	}
	return domains
}

func selectExpressions(ctx context.Context, reg registry.Registry, ids []string) ([]model.Expression, error) {
	if len(ids) == 0 {
		return reg.Expressions(ctx)
	}
	out := make([]model.Expression, 0, len(ids))
	for _, id := range ids {
		e, err := reg.Expression(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
