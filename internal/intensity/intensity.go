// Package intensity computes prototype activation strength.
//
// Intensity is an L1-normalized weighted score: raw contributions are summed
// over the axes named in the weight map and divided by the sum of absolute
// weights. The normalization makes intensity invariant to uniform rescaling
// of the weight vector, so prototype authors cannot bias comparisons by
// using larger weight magnitudes.
package intensity

import (
	"math"
	"sort"

	"github.com/hollis-b/affectlens/internal/gate"
	"github.com/hollis-b/affectlens/internal/model"
)

// Calculator computes intensities, percentile distributions, and the
// composite desirability score. Stateless and safe for concurrent use.
type Calculator struct {
	norm    *model.Normalizer
	checker *gate.Checker
}

// NewCalculator creates a calculator. A nil normalizer uses default domains;
// a nil checker is created fresh.
func NewCalculator(norm *model.Normalizer, checker *gate.Checker) *Calculator {
	if norm == nil {
		norm = model.NewNormalizer(nil)
	}
	if checker == nil {
		checker = gate.NewChecker(nil)
	}
	return &Calculator{norm: norm, checker: checker}
}

// Compute returns the L1-normalized intensity of a weight map against a
// flattened context.
//
// Axes absent from the context contribute nothing to the raw sum but their
// weights still count toward the normalizer, so a context missing half the
// weighted axes scores proportionally lower rather than being rescaled up.
// An all-zero weight map scores 0.
//
// INVARIANT: for any k > 0, Compute(k*W, flat) == Compute(W, flat).
func (c *Calculator) Compute(weights map[string]float64, flat *model.FlatContext) float64 {
	var rawSum, sumAbs float64
	for path, w := range weights {
		sumAbs += math.Abs(w)
		v, ok := flat.Resolve(model.SignalRaw, path)
		if !ok {
			continue
		}
		rawSum += w * c.norm.NormalizePath(path, v)
	}
	if sumAbs == 0 {
		return 0
	}
	return rawSum / sumAbs
}

// ComputeContext is the raw-context convenience form of Compute.
func (c *Calculator) ComputeContext(weights map[string]float64, ctx *model.AffectContext) float64 {
	return c.Compute(weights, model.Flatten(ctx))
}

// Distribution summarizes gate-passing intensities over a context pool.
type Distribution struct {
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	P50             float64 `json:"p50"`
	P90             float64 `json:"p90"`
	P95             float64 `json:"p95"`
	PAboveThreshold float64 `json:"p_above_threshold"`
	// SampleCount is the number of gate-passing contexts that contributed.
	SampleCount int `json:"sample_count"`
}

// ComputeDistribution evaluates a prototype over the pool and reports
// percentile statistics of its gate-passing intensities, plus the fraction
// of those intensities exceeding threshold.
//
// Contexts failing the gates contribute nothing; a pool where no context
// passes yields the zero Distribution with SampleCount == 0.
func (c *Calculator) ComputeDistribution(proto model.Prototype, contexts []*model.AffectContext, threshold float64) Distribution {
	parsed := c.checker.Parse(proto.Gates)

	var values []float64
	var above int
	for _, ctx := range contexts {
		flat := model.Flatten(ctx)
		if !c.checker.PassFlat(parsed, flat) {
			continue
		}
		v := c.Compute(proto.Weights, flat)
		values = append(values, v)
		if v > threshold {
			above++
		}
	}
	if len(values) == 0 {
		return Distribution{}
	}

	sort.Float64s(values)
	return Distribution{
		Min:             values[0],
		Max:             values[len(values)-1],
		P50:             Percentile(values, 0.50),
		P90:             Percentile(values, 0.90),
		P95:             Percentile(values, 0.95),
		PAboveThreshold: float64(above) / float64(len(values)),
		SampleCount:     len(values),
	}
}

// Percentile returns the q-th percentile (q in [0,1]) of sorted values using
// linear interpolation between adjacent ranks. The input must be sorted.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// CompositeInputs are the four already-normalized sub-scores combined by
// ComputeCompositeScore. Each must lie in [0,1]; out-of-range input is
// clamped.
type CompositeInputs struct {
	GatePassRate           float64
	PAboveCutoff           float64
	ConflictScore          float64
	ExclusionCompatibility float64
}

// Composite sub-score weights. Gate feasibility and usable intensity carry
// the bulk; conflicts and exclusion compatibility temper the result.
const (
	wGatePass  = 0.30
	wPAbove    = 0.35
	wConflict  = 0.20
	wExclusion = 0.15
)

// ComputeCompositeScore combines the four sub-scores with fixed weights
// 0.30/0.35/0.20/0.15. The conflict score enters as (1 - conflict).
func ComputeCompositeScore(in CompositeInputs) float64 {
	return wGatePass*clamp01(in.GatePassRate) +
		wPAbove*clamp01(in.PAboveCutoff) +
		wConflict*(1-clamp01(in.ConflictScore)) +
		wExclusion*clamp01(in.ExclusionCompatibility)
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
