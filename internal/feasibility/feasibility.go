// Package feasibility classifies threshold clauses of an expression as
// satisfiable, structurally impossible, or merely unobserved.
//
// The distinction matters for authors: a clause that can never pass because
// the axis domain cannot reach its threshold is a defect in the expression,
// while a clause that simply never passed in a sampled pool may just need a
// larger sample or describe a rare state. Reporting the two identically
// would send authors chasing phantom bugs.
//
// CONSISTENCY: classification is derived from the pass rate and the static
// domain proof alone, so a report can never claim a clause is both passing
// and impossible. That property is structural, not filtered after the fact.
package feasibility

import (
	"io"
	"log/slog"

	"github.com/hollis-b/affectlens/internal/model"
)

// Classification is the three-tier feasibility verdict for one clause.
type Classification string

const (
	// ClassOK: empirical evidence of satisfiability exists (passRate > 0).
	// Tight versus loose bounds are not distinguished here.
	ClassOK Classification = "OK"

	// ClassTheoreticallyImpossible: a static domain-bound check proves the
	// clause cannot reach its threshold regardless of sampling.
	ClassTheoreticallyImpossible Classification = "THEORETICALLY_IMPOSSIBLE"

	// ClassEmpiricallyUnreachable: no sampled context passed, and the only
	// evidence is the observed ceiling/floor of this pool - a ceiling
	// effect, not a structural proof.
	ClassEmpiricallyUnreachable Classification = "EMPIRICALLY_UNREACHABLE"
)

// ClauseSpec is one normalized threshold clause extracted from an
// expression's prerequisites.
type ClauseSpec struct {
	Signal    model.Signal    `json:"signal"`
	Path      string          `json:"variable_path"`
	Op        model.CompareOp `json:"operator"`
	Threshold float64         `json:"threshold"`
}

// ExtractClauses walks the prerequisites and returns every threshold
// comparison, in syntactic order. Boolean structure is deliberately
// discarded: feasibility is assessed clause by clause.
func ExtractClauses(prereqs []model.Prerequisite) []ClauseSpec {
	var out []ClauseSpec
	for _, p := range prereqs {
		model.WalkComparisons(p.Logic, func(c model.CmpExpr) {
			out = append(out, ClauseSpec{
				Signal:    c.Signal,
				Path:      c.Path,
				Op:        c.Op,
				Threshold: c.Threshold,
			})
		})
	}
	return out
}

// Result is the per-clause feasibility verdict.
type Result struct {
	Clause   ClauseSpec `json:"clause"`
	PassRate float64    `json:"pass_rate"`
	// MaxValue / MinValue are the extreme observed values of the clause's
	// signal in the pool. Meaningful only when Observations > 0.
	MaxValue float64 `json:"max_value"`
	MinValue float64 `json:"min_value"`
	// Observations counts pool contexts where the variable resolved.
	Observations   int            `json:"observations"`
	Classification Classification `json:"classification"`
}

// Analyzer scans context pools and classifies clauses.
// Stateless apart from its logger; safe for concurrent use.
type Analyzer struct {
	norm   *model.Normalizer
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil normalizer uses default domains.
func NewAnalyzer(norm *model.Normalizer, logger *slog.Logger) *Analyzer {
	if norm == nil {
		norm = model.NewNormalizer(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Analyzer{norm: norm, logger: logger}
}

// Analyze extracts the clauses of the prerequisites and classifies each one
// against the supplied context pool in a single scan per clause.
func (a *Analyzer) Analyze(prereqs []model.Prerequisite, pool []*model.AffectContext, expressionID string) []Result {
	clauses := ExtractClauses(prereqs)
	if len(clauses) == 0 {
		return nil
	}

	// Flatten the pool once; every clause reuses the views.
	flats := make([]*model.FlatContext, len(pool))
	for i, ctx := range pool {
		flats[i] = model.Flatten(ctx)
	}

	results := make([]Result, 0, len(clauses))
	for _, clause := range clauses {
		r := a.analyzeClause(clause, flats)
		if r.Classification != ClassOK {
			a.logger.Debug("clause not satisfiable in pool",
				"expression", expressionID,
				"path", clause.Path,
				"signal", clause.Signal,
				"classification", r.Classification)
		}
		results = append(results, r)
	}
	return results
}

func (a *Analyzer) analyzeClause(clause ClauseSpec, flats []*model.FlatContext) Result {
	r := Result{Clause: clause}

	var passes int
	for _, flat := range flats {
		v, ok := flat.Resolve(clause.Signal, clause.Path)
		if !ok {
			continue
		}
		if r.Observations == 0 {
			r.MaxValue, r.MinValue = v, v
		} else {
			if v > r.MaxValue {
				r.MaxValue = v
			}
			if v < r.MinValue {
				r.MinValue = v
			}
		}
		r.Observations++
		if clause.Op.Compare(v, clause.Threshold) {
			passes++
		}
	}
	if len(flats) > 0 {
		r.PassRate = float64(passes) / float64(len(flats))
	}

	switch {
	case r.PassRate > 0:
		r.Classification = ClassOK
	case a.structurallyImpossible(clause):
		r.Classification = ClassTheoreticallyImpossible
	default:
		r.Classification = ClassEmpiricallyUnreachable
	}
	return r
}

// structurallyImpossible proves, from domain bounds alone, that no context
// can satisfy the clause. Delta signals range over [-span, span].
func (a *Analyzer) structurallyImpossible(clause ClauseSpec) bool {
	d, ok := a.norm.DomainForPath(clause.Path)
	if !ok {
		// Unknown axis group: nothing can resolve the path.
		return true
	}

	lo, hi := d.Min, d.Max
	if clause.Signal == model.SignalDelta {
		span := d.Span()
		lo, hi = -span, span
	}

	switch clause.Op {
	case model.OpGTE:
		return hi < clause.Threshold
	case model.OpGT:
		return hi <= clause.Threshold
	case model.OpLTE:
		return lo > clause.Threshold
	case model.OpLT:
		return lo >= clause.Threshold
	case model.OpEQ:
		return clause.Threshold < lo || clause.Threshold > hi
	case model.OpNEQ:
		return lo == hi && lo == clause.Threshold
	default:
		return false
	}
}
