package overlap

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/hollis-b/affectlens/internal/gate"
	"github.com/hollis-b/affectlens/internal/intensity"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/vector"
)

// CompositeWeights blends the closeness terms. Gate co-occurrence is
// weighted most heavily, output similarity next, raw correlation least.
type CompositeWeights struct {
	GateOverlap      float64 `json:"gate_overlap"`
	OutputSimilarity float64 `json:"output_similarity"`
	Correlation      float64 `json:"correlation"`
}

// DefaultCompositeWeights returns the standard blend.
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{GateOverlap: 0.5, OutputSimilarity: 0.3, Correlation: 0.2}
}

// Score computes the composite closeness of one pair in [0,1]. When the
// global output-similarity metrics are non-finite it falls back to a
// two-term formula over the locally available behavioral metrics; the
// result is always finite.
func (w CompositeWeights) Score(b BehaviorMetrics) float64 {
	gateTerm := b.CoOccurrenceRatio()

	if !isFinite(b.GlobalMeanAbsDiff) || !isFinite(b.GlobalCorrelation) {
		corrTerm := clamp01(finiteOrZero(b.PearsonCorrelation))
		denom := w.GateOverlap + w.Correlation
		if denom == 0 {
			return 0
		}
		return clamp01((w.GateOverlap*gateTerm + w.Correlation*corrTerm) / denom)
	}

	// Intensities live in [-1,1], so the absolute difference spans [0,2].
	simTerm := clamp01(1 - b.GlobalMeanAbsDiff/2)
	corrTerm := clamp01(b.GlobalCorrelation)
	denom := w.GateOverlap + w.OutputSimilarity + w.Correlation
	if denom == 0 {
		return 0
	}
	return clamp01((w.GateOverlap*gateTerm + w.OutputSimilarity*simTerm + w.Correlation*corrTerm) / denom)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// PairReport is the full result for one evaluated pair.
type PairReport struct {
	Pair            PairMetrics      `json:"pair"`
	Behavior        BehaviorMetrics  `json:"behavior"`
	Classifications []Classification `json:"classifications"`
	CompositeScore  float64          `json:"composite_score"`
}

// Primary returns the primary classification type.
func (r PairReport) Primary() ClassType {
	for _, cl := range r.Classifications {
		if cl.IsPrimary {
			return cl.Type
		}
	}
	return ClassKeepDistinct
}

// ClosestPair summarizes the highest-scoring pair of the run.
type ClosestPair struct {
	A              string    `json:"a"`
	B              string    `json:"b"`
	CompositeScore float64   `json:"composite_score"`
	PrimaryType    ClassType `json:"primary_type"`
}

// Report is the outcome of a full overlap analysis, pairs ordered by
// descending composite score.
type Report struct {
	Pairs       []PairReport    `json:"pairs"`
	Rejected    RejectionCounts `json:"rejected"`
	TotalPairs  int             `json:"total_pairs"`
	ClosestPair *ClosestPair    `json:"closest_pair,omitempty"`
}

// Analyzer runs the overlap pipeline end to end: static filter, vector
// evaluation, behavioral comparison, classification and ranking.
type Analyzer struct {
	filter     *Filter
	vectors    *vector.Evaluator
	behavior   *BehaviorEvaluator
	classifier *Classifier
	weights    CompositeWeights
	norm       *model.Normalizer
	logger     *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithFilterConfig replaces the default pair-pruning thresholds.
func WithFilterConfig(cfg FilterConfig) AnalyzerOption {
	return func(a *Analyzer) { a.filter = NewFilter(cfg) }
}

// WithClassifierConfig replaces the default classification thresholds.
func WithClassifierConfig(cfg ClassifierConfig) AnalyzerOption {
	return func(a *Analyzer) { a.classifier = NewClassifier(cfg) }
}

// WithCompositeWeights replaces the default closeness blend.
func WithCompositeWeights(w CompositeWeights) AnalyzerOption {
	return func(a *Analyzer) { a.weights = w }
}

// WithLogger sets the structured logger for pipeline diagnostics.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = logger }
}

// WithNormalizer replaces the default axis domains throughout the
// pipeline.
func WithNormalizer(norm *model.Normalizer) AnalyzerOption {
	return func(a *Analyzer) { a.norm = norm }
}

// NewAnalyzer creates an analyzer with the default stages.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		filter:     NewFilter(DefaultFilterConfig()),
		classifier: NewClassifier(DefaultClassifierConfig()),
		weights:    DefaultCompositeWeights(),
		norm:       model.NewNormalizer(nil),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	checker := gate.NewChecker(a.logger)
	calc := intensity.NewCalculator(a.norm, checker)
	a.vectors = vector.NewEvaluator(checker, calc, a.logger)
	a.behavior = NewBehaviorEvaluator(checker, a.norm)
	return a
}

// Analyze runs the full pipeline over the prototypes and context pool.
// onProgress forwards the vector evaluator's per-prototype progress; only
// prototypes surviving the static filter are evaluated.
func (a *Analyzer) Analyze(
	ctx context.Context,
	prototypes []model.Prototype,
	pool []*model.AffectContext,
	onProgress func(processed, total int),
) (*Report, error) {
	sel := a.filter.Select(prototypes)
	a.logger.Debug("candidate pairs selected",
		"total_pairs", sel.TotalPairs,
		"kept", len(sel.Pairs),
		"rejected_axis_overlap", sel.Rejected.AxisOverlap,
		"rejected_sign_agreement", sel.Rejected.SignAgreement,
		"rejected_weight_cosine", sel.Rejected.WeightCosine,
		"rejected_pair_cap", sel.Rejected.PairCap)

	report := &Report{
		Pairs:      []PairReport{},
		Rejected:   sel.Rejected,
		TotalPairs: sel.TotalPairs,
	}
	if len(sel.Pairs) == 0 {
		return report, nil
	}

	byID := make(map[string]model.Prototype, len(prototypes))
	for _, p := range prototypes {
		byID[p.ID] = p
	}
	needed := make(map[string]bool, len(sel.Pairs)*2)
	var subset []model.Prototype
	for _, pm := range sel.Pairs {
		for _, id := range []string{pm.A, pm.B} {
			if !needed[id] {
				needed[id] = true
				subset = append(subset, byID[id])
			}
		}
	}

	vecs, err := a.vectors.EvaluateAll(ctx, subset, pool, onProgress)
	if err != nil {
		return nil, err
	}

	for _, pm := range sel.Pairs {
		behavior := a.behavior.Evaluate(byID[pm.A], byID[pm.B], vecs[pm.A], vecs[pm.B])
		report.Pairs = append(report.Pairs, PairReport{
			Pair:            pm,
			Behavior:        behavior,
			Classifications: a.classifier.Classify(pm, behavior),
			CompositeScore:  a.weights.Score(behavior),
		})
	}

	sort.SliceStable(report.Pairs, func(i, j int) bool {
		if report.Pairs[i].CompositeScore != report.Pairs[j].CompositeScore {
			return report.Pairs[i].CompositeScore > report.Pairs[j].CompositeScore
		}
		if report.Pairs[i].Pair.A != report.Pairs[j].Pair.A {
			return report.Pairs[i].Pair.A < report.Pairs[j].Pair.A
		}
		return report.Pairs[i].Pair.B < report.Pairs[j].Pair.B
	})

	top := report.Pairs[0]
	report.ClosestPair = &ClosestPair{
		A:              top.Pair.A,
		B:              top.Pair.B,
		CompositeScore: top.CompositeScore,
		PrimaryType:    top.Primary(),
	}
	return report, nil
}
