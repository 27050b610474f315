// Package search implements the randomized witness search for expressions.
//
// A witness is a concrete affect context satisfying all of an expression's
// prerequisites. The finder samples random candidates in fixed-size chunks,
// scoring each with a graded fitness in [0,1] so near-misses are
// distinguishable from wildly failing candidates, and yields control to the
// scheduler between chunks so long searches do not starve concurrent work.
//
// ORDERING GUARANTEES:
//   - OnProgress fires after each completed chunk (never on final
//     completion) with strictly increasing completed counts.
//   - An already-satisfied search returns before any progress call; with
//     empty prerequisites that happens on the very first iteration.
//   - BestFitness is non-decreasing over the life of one search.
package search

import (
	"context"
	"io"
	"log/slog"
	"math"
	"runtime"

	"github.com/hollis-b/affectlens/internal/model"
)

// DefaultMaxIterations bounds a search when the caller does not say.
const DefaultMaxIterations = 1000

// chunkSize is the number of iterations between scheduler yields.
const chunkSize = 100

// ContextSource produces candidate contexts. Implemented by
// sample.Generator; tests may supply fixed sequences.
type ContextSource interface {
	Generate() *model.AffectContext
}

// Options configures one findWitness call.
type Options struct {
	// MaxIterations caps the number of sampled candidates.
	// Zero means DefaultMaxIterations.
	MaxIterations int

	// OnProgress, when set, is invoked after each completed chunk with the
	// completed and total iteration counts.
	OnProgress func(completed, total int)
}

// ViolatedClause describes one threshold clause the best candidate failed.
type ViolatedClause struct {
	Clause model.CmpExpr `json:"clause"`
	// Observed is the value the clause saw, when the variable resolved.
	Observed float64 `json:"observed"`
	// Resolved is false when the variable was absent from the candidate.
	Resolved bool `json:"resolved"`
}

// Result is the outcome of a witness search.
type Result struct {
	Found           bool                 `json:"found"`
	Witness         *model.AffectContext `json:"witness,omitempty"`
	NearestMiss     *model.AffectContext `json:"nearest_miss,omitempty"`
	BestFitness     float64              `json:"best_fitness"`
	IterationsUsed  int                  `json:"iterations_used"`
	ViolatedClauses []ViolatedClause     `json:"violated_clauses,omitempty"`
}

// Finder runs witness searches. One finder may serve many sequential
// searches; its ContextSource is stateful, so a finder is not safe for
// concurrent use.
type Finder struct {
	source ContextSource
	norm   *model.Normalizer
	logger *slog.Logger
}

// NewFinder creates a finder over the given candidate source.
// A nil normalizer uses default domains; a nil logger discards output.
func NewFinder(source ContextSource, norm *model.Normalizer, logger *slog.Logger) *Finder {
	if norm == nil {
		norm = model.NewNormalizer(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Finder{source: source, norm: norm, logger: logger}
}

// FindWitness searches for a context satisfying every prerequisite of expr.
//
// On success the result carries the witness and the search stops
// immediately - no further candidates, no further progress calls. On budget
// exhaustion the result carries the best near-miss, its fitness, and the
// clauses it violated; that is a normal return, not an error. The only
// error path is cancellation at a yield boundary, surfaced as a
// *SearchError with code SEARCH_CANCELLED.
func (f *Finder) FindWitness(ctx context.Context, expr model.Expression, opts Options) (*Result, error) {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	res := &Result{BestFitness: -1}

	for i := 1; i <= maxIterations; i++ {
		candidate := f.source.Generate()
		flat := model.Flatten(candidate)

		satisfied, fitness := f.score(expr.Prerequisites, flat)
		if satisfied {
			res.Found = true
			res.Witness = candidate
			res.BestFitness = 1
			res.IterationsUsed = i
			res.ViolatedClauses = nil
			f.logger.Debug("witness found",
				"expression", expr.ID, "iteration", i)
			return res, nil
		}

		if fitness > res.BestFitness {
			res.BestFitness = fitness
			res.NearestMiss = candidate
			res.ViolatedClauses = collectViolations(expr.Prerequisites, flat)
		}
		res.IterationsUsed = i

		// Chunk boundary: report progress and hand control back to the
		// scheduler. Skipped on the final iteration - exhaustion is
		// reported through the result, not a trailing progress call.
		if i%chunkSize == 0 && i < maxIterations {
			if opts.OnProgress != nil {
				opts.OnProgress(i, maxIterations)
			}
			if err := yield(ctx); err != nil {
				return nil, newCancelledError(expr.ID, i, err)
			}
		}
	}

	f.logger.Debug("witness search exhausted",
		"expression", expr.ID,
		"iterations", res.IterationsUsed,
		"best_fitness", res.BestFitness)
	return res, nil
}

// yield hands control to the scheduler between chunks. A context cancelled
// or expired during the yield aborts the pending search explicitly.
func yield(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		runtime.Gosched()
		return nil
	}
}

// score evaluates all prerequisites against a candidate.
//
// The boolean half decides satisfaction exactly; the graded half ranks
// near-misses. Per clause: a satisfied comparison scores 1, a violated one
// scores 1 - distance/domainSpan capped just below 1, boolean combinators
// take min (AND), max (OR), or the exact boolean (NOT). The total fitness
// is the mean over prerequisites, 1 for an empty prerequisite list.
func (f *Finder) score(prereqs []model.Prerequisite, flat *model.FlatContext) (satisfied bool, fitness float64) {
	if len(prereqs) == 0 {
		return true, 1
	}

	satisfied = true
	var sum float64
	for _, p := range prereqs {
		if !model.Evaluate(p.Logic, flat) {
			satisfied = false
		}
		sum += f.scoreExpr(p.Logic, flat)
	}
	return satisfied, sum / float64(len(prereqs))
}

// gradedCap keeps a violated clause strictly below a satisfied one even
// when the observed value sits exactly on the threshold (e.g. ">" with
// equality).
const gradedCap = 0.99

func (f *Finder) scoreExpr(e model.LogicExpr, flat *model.FlatContext) float64 {
	switch expr := e.(type) {
	case model.CmpExpr:
		v, ok := flat.Resolve(expr.Signal, expr.Path)
		if !ok {
			return 0
		}
		if expr.Op.Compare(v, expr.Threshold) {
			return 1
		}
		span := f.signalSpan(expr)
		if span <= 0 {
			return 0
		}
		graded := 1 - math.Abs(v-expr.Threshold)/span
		if graded < 0 {
			return 0
		}
		if graded > gradedCap {
			return gradedCap
		}
		return graded
	case model.AndExpr:
		if len(expr.Terms) == 0 {
			return 1
		}
		low := 1.0
		for _, t := range expr.Terms {
			if s := f.scoreExpr(t, flat); s < low {
				low = s
			}
		}
		return low
	case model.OrExpr:
		high := 0.0
		for _, t := range expr.Terms {
			if s := f.scoreExpr(t, flat); s > high {
				high = s
			}
		}
		return high
	case model.NotExpr:
		if model.Evaluate(expr, flat) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// signalSpan is the width of the reachable value range for a clause: the
// axis domain for raw signals, twice that for deltas.
func (f *Finder) signalSpan(c model.CmpExpr) float64 {
	d, ok := f.norm.DomainForPath(c.Path)
	if !ok {
		return 0
	}
	if c.Signal == model.SignalDelta {
		return 2 * d.Span()
	}
	return d.Span()
}

// collectViolations lists the individually unsatisfied comparisons of the
// prerequisites against a candidate, in syntactic order.
func collectViolations(prereqs []model.Prerequisite, flat *model.FlatContext) []ViolatedClause {
	var out []ViolatedClause
	for _, p := range prereqs {
		model.WalkComparisons(p.Logic, func(c model.CmpExpr) {
			v, ok := flat.Resolve(c.Signal, c.Path)
			if !ok {
				out = append(out, ViolatedClause{Clause: c})
				return
			}
			if !c.Op.Compare(v, c.Threshold) {
				out = append(out, ViolatedClause{Clause: c, Observed: v, Resolved: true})
			}
		})
	}
	return out
}
