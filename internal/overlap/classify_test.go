package overlap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultClassifier() *Classifier {
	return NewClassifier(DefaultClassifierConfig())
}

func primaryOf(t *testing.T, out []Classification) Classification {
	t.Helper()
	require.NotEmpty(t, out)
	assert.True(t, out[0].IsPrimary)
	for _, cl := range out[1:] {
		assert.False(t, cl.IsPrimary)
	}
	return out[0]
}

func hasType(out []Classification, ct ClassType) bool {
	for _, cl := range out {
		if cl.Type == ct {
			return true
		}
	}
	return false
}

func TestClassify_MergeRecommended(t *testing.T) {
	b := BehaviorMetrics{
		OnEitherRate:       0.5,
		OnBothRate:         0.45,
		PearsonCorrelation: 0.95,
		MeanAbsDiff:        0.05,
		GlobalCorrelation:  0.9,
		GlobalMeanAbsDiff:  0.04,
		CoPassCount:        45,
		PAGivenB:           0.9,
		PBGivenA:           0.9,
		ParseAComplete:     true,
		ParseBComplete:     true,
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	primary := primaryOf(t, out)
	assert.Equal(t, ClassMergeRecommended, primary.Type)
	assert.Greater(t, primary.Confidence, 0.8)
	assert.Equal(t, ClassKeepDistinct, out[len(out)-1].Type)
}

func TestClassify_ConvertToExpression(t *testing.T) {
	b := BehaviorMetrics{
		OnEitherRate:   0.3,
		OnBothRate:     0.1,
		PAGivenB:       0.33,
		PBGivenA:       1.0,
		CoPassCount:    30,
		ParseAComplete: true,
		ParseBComplete: true,
		Implication:    &Implication{AImpliesB: true},
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	primary := primaryOf(t, out)
	assert.Equal(t, ClassConvertToExpression, primary.Type)
	assert.InDelta(t, 1.0, primary.Confidence, 1e-12)
}

func TestClassify_VacuousImplicationGuard(t *testing.T) {
	// Vacuous implication with complete parse and low conditional rates:
	// must never yield conversion or proof-based nesting.
	b := BehaviorMetrics{
		OnEitherRate:   0.2,
		PAGivenB:       0.1,
		PBGivenA:       0.1,
		CoPassCount:    2,
		ParseAComplete: true,
		ParseBComplete: true,
		Implication:    &Implication{AImpliesB: true, IsVacuous: true},
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	assert.False(t, hasType(out, ClassConvertToExpression))
	assert.False(t, hasType(out, ClassNestedSiblings))
	assert.Equal(t, ClassKeepDistinct, primaryOf(t, out).Type)
}

func TestClassify_PartialParseKeepsBehavioralNesting(t *testing.T) {
	// Proof-based reasoning is off under a partial parse, but
	// sampling-based nesting evidence still counts.
	b := BehaviorMetrics{
		OnEitherRate:   0.4,
		OnBothRate:     0.1,
		PAGivenB:       0.98,
		PBGivenA:       0.25,
		CoPassCount:    50,
		ParseAComplete: true,
		ParseBComplete: false,
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	primary := primaryOf(t, out)
	assert.Equal(t, ClassNestedSiblings, primary.Type)
	assert.InDelta(t, 0.98, primary.Confidence, 1e-12)
}

func TestClassify_PartialProofNesting(t *testing.T) {
	// A deterministic containment over a partially parsed gate set is
	// nesting evidence, never a conversion.
	b := BehaviorMetrics{
		OnEitherRate:   0.4,
		PAGivenB:       0.5,
		PBGivenA:       0.6,
		CoPassCount:    20,
		ParseAComplete: false,
		ParseBComplete: true,
		Implication:    &Implication{AImpliesB: true},
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	assert.False(t, hasType(out, ClassConvertToExpression))
	primary := primaryOf(t, out)
	assert.Equal(t, ClassNestedSiblings, primary.Type)
	assert.InDelta(t, 0.5, primary.Confidence, 1e-12)
}

func TestClassify_NaNEvidenceClampsToZero(t *testing.T) {
	b := BehaviorMetrics{
		OnEitherRate:       0.6,
		OnBothRate:         0.6,
		PearsonCorrelation: math.NaN(),
		MeanAbsDiff:        math.NaN(),
		PAGivenB:           math.NaN(),
		PBGivenA:           math.NaN(),
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	primary := primaryOf(t, out)
	assert.Equal(t, ClassKeepDistinct, primary.Type)
	for _, cl := range out {
		assert.False(t, math.IsNaN(cl.Confidence))
		assert.GreaterOrEqual(t, cl.Confidence, 0.0)
		assert.LessOrEqual(t, cl.Confidence, 1.0)
	}
	assert.InDelta(t, 1.0, primary.Confidence, 1e-12)
}

func TestClassify_ActivityFloorBlocksMerge(t *testing.T) {
	b := BehaviorMetrics{
		OnEitherRate:       0.01, // below the noise floor
		OnBothRate:         0.01,
		PearsonCorrelation: 0.99,
		MeanAbsDiff:        0.01,
	}

	out := defaultClassifier().Classify(PairMetrics{}, b)
	assert.False(t, hasType(out, ClassMergeRecommended))
}

func TestCompositeScore_RankingFavorsCoOccurrence(t *testing.T) {
	w := DefaultCompositeWeights()

	frequent := BehaviorMetrics{
		OnEitherRate:      0.5,
		OnBothRate:        0.47, // 94% co-occurrence ratio
		GlobalCorrelation: 0.7,
		GlobalMeanAbsDiff: 0.1,
	}
	rare := BehaviorMetrics{
		OnEitherRate:      0.5,
		OnBothRate:        0.025, // 5% co-occurrence ratio
		GlobalCorrelation: 0.99,
		GlobalMeanAbsDiff: 0.1,
	}

	assert.Greater(t, w.Score(frequent), w.Score(rare),
		"pairs that rarely activate together never rank closest on correlation alone")
}

func TestCompositeScore_FallbackIsFinite(t *testing.T) {
	w := DefaultCompositeWeights()

	b := BehaviorMetrics{
		OnEitherRate:       0.4,
		OnBothRate:         0.3,
		PearsonCorrelation: 0.8,
		GlobalCorrelation:  math.NaN(),
		GlobalMeanAbsDiff:  math.NaN(),
	}

	score := w.Score(b)
	assert.True(t, isFinite(score))
	// Two-term blend over co-occurrence ratio 0.75 and correlation 0.8.
	expected := (0.5*0.75 + 0.2*0.8) / 0.7
	assert.InDelta(t, expected, score, 1e-12)
}

func TestCompositeScore_AllNaNIsZeroSafe(t *testing.T) {
	w := DefaultCompositeWeights()
	b := BehaviorMetrics{
		PearsonCorrelation: math.NaN(),
		GlobalCorrelation:  math.NaN(),
		GlobalMeanAbsDiff:  math.NaN(),
	}
	score := w.Score(b)
	assert.True(t, isFinite(score))
	assert.GreaterOrEqual(t, score, 0.0)
}
