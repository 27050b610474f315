package overlap

import "math"

// ClassType names one relationship category between two prototypes.
type ClassType string

const (
	// ClassMergeRecommended: the pair activates together, with strongly
	// agreeing intensities. Likely one concept modeled twice.
	ClassMergeRecommended ClassType = "merge_recommended"

	// ClassConvertToExpression: one gate region provably contains the
	// other and sampling corroborates it. The inner prototype behaves
	// like a specialization and could be expressed as a derived rule.
	ClassConvertToExpression ClassType = "convert_to_expression"

	// ClassNestedSiblings: asymmetric containment suggested by sampling,
	// or proven only over a partially parsed gate set.
	ClassNestedSiblings ClassType = "nested_siblings"

	// ClassKeepDistinct: no redundancy signal. Always present as the
	// fallback category.
	ClassKeepDistinct ClassType = "keep_distinct"
)

// Classification is one matched category with its own confidence and the
// numeric evidence it was derived from.
type Classification struct {
	Type       ClassType          `json:"type"`
	Confidence float64            `json:"confidence"`
	Evidence   map[string]float64 `json:"evidence,omitempty"`
	IsPrimary  bool               `json:"is_primary"`
}

// ClassifierConfig holds the decision thresholds.
type ClassifierConfig struct {
	// MergeCoOccurrence is the minimum on-both/on-either ratio for a
	// merge recommendation.
	MergeCoOccurrence float64
	// MergeCorrelation is the minimum co-active Pearson correlation.
	MergeCorrelation float64
	// MergeMaxAbsDiff is the maximum co-active mean absolute intensity
	// difference.
	MergeMaxAbsDiff float64
	// ActivityFloor is the minimum on-either rate below which the pair
	// is considered noise and never merged.
	ActivityFloor float64
	// ConvertConditionalRate is the conditional pass rate that must
	// corroborate a deterministic implication proof.
	ConvertConditionalRate float64
	// NestedConditionalRate is the asymmetric conditional pass rate that
	// suggests nesting without a proof.
	NestedConditionalRate float64
	// NestedMinCoPass is the minimum co-pass count for sampling-based
	// nesting evidence to count at all.
	NestedMinCoPass int
}

// DefaultClassifierConfig returns the standard thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MergeCoOccurrence:      0.8,
		MergeCorrelation:       0.8,
		MergeMaxAbsDiff:        0.15,
		ActivityFloor:          0.05,
		ConvertConditionalRate: 0.95,
		NestedConditionalRate:  0.9,
		NestedMinCoPass:        5,
	}
}

// Classifier assigns relationship categories to evaluated pairs.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns every matching category in priority order, the first
// marked primary. keep_distinct always closes the list, so the result is
// never empty. Two guards hold unconditionally: a vacuous implication is
// never evidence for conversion or proof-based nesting, and a partial
// gate parse disables proof-based nesting but not the sampling-based
// kind. NaN or missing evidence clamps the affected confidence to zero
// instead of propagating.
func (c *Classifier) Classify(pair PairMetrics, b BehaviorMetrics) []Classification {
	var out []Classification

	if cl, ok := c.merge(b); ok {
		out = append(out, cl)
	}
	if cl, ok := c.convert(b); ok {
		out = append(out, cl)
	}
	if cl, ok := c.nested(b); ok {
		out = append(out, cl)
	}

	var maxConf float64
	for _, cl := range out {
		if cl.Confidence > maxConf {
			maxConf = cl.Confidence
		}
	}
	out = append(out, Classification{
		Type:       ClassKeepDistinct,
		Confidence: clamp01(1 - maxConf),
	})
	out[0].IsPrimary = true
	return out
}

func (c *Classifier) merge(b BehaviorMetrics) (Classification, bool) {
	coOcc := b.CoOccurrenceRatio()
	corr := finiteOrZero(b.PearsonCorrelation)
	absDiff := b.MeanAbsDiff
	if math.IsNaN(absDiff) || math.IsInf(absDiff, 0) {
		return Classification{}, false
	}
	if b.OnEitherRate < c.cfg.ActivityFloor ||
		coOcc < c.cfg.MergeCoOccurrence ||
		corr < c.cfg.MergeCorrelation ||
		absDiff > c.cfg.MergeMaxAbsDiff {
		return Classification{}, false
	}
	conf := clamp01((coOcc + clamp01(corr) + clamp01(1-absDiff)) / 3)
	return Classification{
		Type:       ClassMergeRecommended,
		Confidence: conf,
		Evidence: map[string]float64{
			"co_occurrence_ratio": coOcc,
			"pearson_correlation": corr,
			"mean_abs_diff":       absDiff,
			"on_either_rate":      b.OnEitherRate,
		},
	}, true
}

func (c *Classifier) convert(b BehaviorMetrics) (Classification, bool) {
	imp := b.Implication
	if imp == nil || imp.IsVacuous || !b.ParseAComplete || !b.ParseBComplete {
		return Classification{}, false
	}
	// A implies B means every A-pass is a B-pass, so pB|A corroborates.
	var rate float64
	switch {
	case imp.AImpliesB && finiteOrZero(b.PBGivenA) >= c.cfg.ConvertConditionalRate:
		rate = b.PBGivenA
	case imp.BImpliesA && finiteOrZero(b.PAGivenB) >= c.cfg.ConvertConditionalRate:
		rate = b.PAGivenB
	default:
		return Classification{}, false
	}
	return Classification{
		Type:       ClassConvertToExpression,
		Confidence: clamp01(finiteOrZero(rate)),
		Evidence: map[string]float64{
			"conditional_rate": finiteOrZero(rate),
			"co_pass_count":    float64(b.CoPassCount),
		},
	}, true
}

func (c *Classifier) nested(b BehaviorMetrics) (Classification, bool) {
	// Sampling-based route: asymmetric conditional pass rate. Stays
	// available under partial parse.
	maxCond := math.Max(finiteOrZero(b.PAGivenB), finiteOrZero(b.PBGivenA))
	behavioral := maxCond >= c.cfg.NestedConditionalRate && b.CoPassCount >= c.cfg.NestedMinCoPass

	// Proof-based route applies only when the proof is incomplete (a
	// complete one is a conversion candidate instead), and never off a
	// vacuous implication.
	imp := b.Implication
	proofPartial := imp != nil && !imp.IsVacuous &&
		(imp.AImpliesB || imp.BImpliesA) &&
		!(b.ParseAComplete && b.ParseBComplete)

	if !behavioral && !proofPartial {
		return Classification{}, false
	}
	conf := 0.0
	if behavioral {
		conf = clamp01(maxCond)
	}
	if proofPartial && conf < 0.5 {
		conf = 0.5
	}
	ev := map[string]float64{
		"p_a_given_b":   finiteOrZero(b.PAGivenB),
		"p_b_given_a":   finiteOrZero(b.PBGivenA),
		"co_pass_count": float64(b.CoPassCount),
	}
	if proofPartial {
		ev["partial_proof"] = 1
	}
	return Classification{Type: ClassNestedSiblings, Confidence: conf, Evidence: ev}, true
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
