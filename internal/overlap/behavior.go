package overlap

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/hollis-b/affectlens/internal/gate"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/vector"
)

// BehaviorMetrics compares two prototypes' sampled behavior over a shared
// context pool. Correlation and mean-abs-diff fields are NaN when
// undefined (fewer than two usable positions, or zero variance); the
// classifier clamps NaN evidence to zero confidence rather than letting
// it propagate.
type BehaviorMetrics struct {
	A string `json:"a"`
	B string `json:"b"`

	// Gate co-occurrence over the full pool.
	OnEitherRate float64 `json:"on_either_rate"`
	OnBothRate   float64 `json:"on_both_rate"`
	POnlyRate    float64 `json:"p_only_rate"`
	QOnlyRate    float64 `json:"q_only_rate"`

	// Intensity agreement over co-active positions.
	PearsonCorrelation float64 `json:"pearson_correlation"`
	MeanAbsDiff        float64 `json:"mean_abs_diff"`
	DominanceA         float64 `json:"dominance_a"`
	DominanceB         float64 `json:"dominance_b"`

	// Global variants over the full zero-padded vectors, not just the
	// co-active subset.
	GlobalCorrelation float64 `json:"global_correlation"`
	GlobalMeanAbsDiff float64 `json:"global_mean_abs_diff"`

	// Conditional pass rates.
	PAGivenB    float64 `json:"p_a_given_b"`
	PBGivenA    float64 `json:"p_b_given_a"`
	CoPassCount int     `json:"co_pass_count"`

	// ParseAComplete and ParseBComplete report whether every gate of the
	// respective prototype compiled; deterministic proofs require both.
	ParseAComplete bool `json:"parse_a_complete"`
	ParseBComplete bool `json:"parse_b_complete"`

	// Implication is the deterministic gate-implication relation, nil
	// when either side's parsed gates fall outside the provable fragment
	// (non-conjunctive, "!=", or unknown axis paths).
	Implication *Implication `json:"implication,omitempty"`
}

// MarshalJSON serializes the NaN-able agreement metrics as null, since
// JSON has no NaN literal. In-memory consumers keep seeing NaN.
func (m BehaviorMetrics) MarshalJSON() ([]byte, error) {
	type metrics BehaviorMetrics
	return json.Marshal(struct {
		metrics
		PearsonCorrelation *float64 `json:"pearson_correlation"`
		MeanAbsDiff        *float64 `json:"mean_abs_diff"`
		GlobalCorrelation  *float64 `json:"global_correlation"`
		GlobalMeanAbsDiff  *float64 `json:"global_mean_abs_diff"`
	}{
		metrics:            metrics(m),
		PearsonCorrelation: finiteOrNull(m.PearsonCorrelation),
		MeanAbsDiff:        finiteOrNull(m.MeanAbsDiff),
		GlobalCorrelation:  finiteOrNull(m.GlobalCorrelation),
		GlobalMeanAbsDiff:  finiteOrNull(m.GlobalMeanAbsDiff),
	})
}

func finiteOrNull(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

// CoOccurrenceRatio is on-both over on-either; zero when the pair never
// activates at all.
func (m BehaviorMetrics) CoOccurrenceRatio() float64 {
	if m.OnEitherRate == 0 {
		return 0
	}
	return m.OnBothRate / m.OnEitherRate
}

// Implication is a proof-level relation between two gate regions. Each
// side's fully parsed conjunctive gates define an axis-aligned box in
// signal space; AImpliesB holds when A's box is contained in B's.
type Implication struct {
	AImpliesB bool `json:"a_implies_b"`
	BImpliesA bool `json:"b_implies_a"`

	// IsVacuous is set when either box is empty: implication from or
	// into an unsatisfiable region holds trivially and carries no
	// evidence about the pair.
	IsVacuous bool `json:"is_vacuous"`

	Evidence []IntervalEvidence `json:"evidence,omitempty"`
}

// IntervalEvidence records, per constrained axis signal, the interval
// each side's gates admit. An unconstrained side spans its full domain.
type IntervalEvidence struct {
	Signal model.Signal `json:"signal"`
	Path   string       `json:"path"`
	ALo    float64      `json:"a_lo"`
	AHi    float64      `json:"a_hi"`
	BLo    float64      `json:"b_lo"`
	BHi    float64      `json:"b_hi"`
}

// BehaviorEvaluator compares candidate pairs over evaluated vectors.
type BehaviorEvaluator struct {
	checker *gate.Checker
	norm    *model.Normalizer
}

// NewBehaviorEvaluator creates an evaluator. A nil checker or normalizer
// falls back to defaults.
func NewBehaviorEvaluator(checker *gate.Checker, norm *model.Normalizer) *BehaviorEvaluator {
	if checker == nil {
		checker = gate.NewChecker(nil)
	}
	if norm == nil {
		norm = model.NewNormalizer(nil)
	}
	return &BehaviorEvaluator{checker: checker, norm: norm}
}

// Evaluate computes the behavioral metrics for one candidate pair from
// its evaluated vectors. The prototypes are needed again for the
// deterministic implication proof, which reasons over gate structure
// rather than samples.
func (e *BehaviorEvaluator) Evaluate(protoA, protoB model.Prototype, va, vb *vector.Vector) BehaviorMetrics {
	m := BehaviorMetrics{
		A:              protoA.ID,
		B:              protoB.ID,
		ParseAComplete: va.ParseInfo.Complete(),
		ParseBComplete: vb.ParseInfo.Complete(),
	}

	n := len(va.GateResults)
	if len(vb.GateResults) < n {
		n = len(vb.GateResults)
	}

	var either, both, pOnly, qOnly, passA, passB int
	var coA, coB []float64
	var domA, domB int
	for i := 0; i < n; i++ {
		pa, pb := va.GateResults[i], vb.GateResults[i]
		if pa {
			passA++
		}
		if pb {
			passB++
		}
		switch {
		case pa && pb:
			both++
			either++
			ia, ib := va.Intensities[i], vb.Intensities[i]
			coA = append(coA, ia)
			coB = append(coB, ib)
			if math.Abs(ia) > math.Abs(ib) {
				domA++
			} else if math.Abs(ib) > math.Abs(ia) {
				domB++
			}
		case pa:
			pOnly++
			either++
		case pb:
			qOnly++
			either++
		}
	}

	if n > 0 {
		m.OnEitherRate = float64(either) / float64(n)
		m.OnBothRate = float64(both) / float64(n)
		m.POnlyRate = float64(pOnly) / float64(n)
		m.QOnlyRate = float64(qOnly) / float64(n)
	}
	m.CoPassCount = both
	if passB > 0 {
		m.PAGivenB = float64(both) / float64(passB)
	}
	if passA > 0 {
		m.PBGivenA = float64(both) / float64(passA)
	}

	m.PearsonCorrelation = pearson(coA, coB)
	m.MeanAbsDiff = meanAbsDiff(coA, coB)
	if both > 0 {
		m.DominanceA = float64(domA) / float64(both)
		m.DominanceB = float64(domB) / float64(both)
	}
	m.GlobalCorrelation = pearson(va.Intensities[:n], vb.Intensities[:n])
	m.GlobalMeanAbsDiff = meanAbsDiff(va.Intensities[:n], vb.Intensities[:n])

	m.Implication = e.proveImplication(protoA, protoB)
	return m
}

// proveImplication attempts a deterministic containment proof between the
// two gate regions. It returns nil when either side's parsed gates fall
// outside the interval-representable fragment. Partial parses still
// produce a proof attempt over the parsed subset; the classifier decides
// how much weight an incomplete proof carries.
func (e *BehaviorEvaluator) proveImplication(protoA, protoB model.Prototype) *Implication {
	boxA, ok := e.buildBox(protoA)
	if !ok {
		return nil
	}
	boxB, ok := e.buildBox(protoB)
	if !ok {
		return nil
	}

	imp := &Implication{
		IsVacuous: boxA.empty() || boxB.empty(),
		AImpliesB: boxA.containedIn(boxB),
		BImpliesA: boxB.containedIn(boxA),
	}
	for _, key := range unionKeys(boxA, boxB) {
		ia := boxA.get(key, e.norm)
		ib := boxB.get(key, e.norm)
		imp.Evidence = append(imp.Evidence, IntervalEvidence{
			Signal: key.signal,
			Path:   key.path,
			ALo:    ia.lo, AHi: ia.hi,
			BLo: ib.lo, BHi: ib.hi,
		})
	}
	return imp
}

type boxKey struct {
	signal model.Signal
	path   string
}

type interval struct {
	lo, hi         float64
	loOpen, hiOpen bool
}

func (iv interval) empty() bool {
	return iv.lo > iv.hi || (iv.lo == iv.hi && (iv.loOpen || iv.hiOpen))
}

// containedIn reports whether iv is a subset of other.
func (iv interval) containedIn(other interval) bool {
	if iv.empty() {
		return true
	}
	lowerOK := iv.lo > other.lo || (iv.lo == other.lo && (!other.loOpen || iv.loOpen))
	upperOK := iv.hi < other.hi || (iv.hi == other.hi && (!other.hiOpen || iv.hiOpen))
	return lowerOK && upperOK
}

func (iv interval) intersect(other interval) interval {
	out := iv
	if other.lo > out.lo || (other.lo == out.lo && other.loOpen) {
		out.lo, out.loOpen = other.lo, other.loOpen
	}
	if other.hi < out.hi || (other.hi == out.hi && other.hiOpen) {
		out.hi, out.hiOpen = other.hi, other.hiOpen
	}
	return out
}

// gateBox holds the per-signal intervals a prototype's gates admit.
type gateBox struct {
	norm      *model.Normalizer
	intervals map[boxKey]interval
}

// buildBox compiles the prototype's parsed gates into an axis-aligned box.
// Returns ok=false when any parsed gate is non-conjunctive, uses "!=" or
// references an unknown axis group: those are outside the provable
// fragment.
func (e *BehaviorEvaluator) buildBox(proto model.Prototype) (*gateBox, bool) {
	parsed := e.checker.Parse(proto.Gates)
	box := &gateBox{norm: e.norm, intervals: map[boxKey]interval{}}

	ok := true
	for _, expr := range parsed.Exprs {
		if !model.IsConjunctive(expr) {
			return nil, false
		}
		model.WalkComparisons(expr, func(c model.CmpExpr) {
			if !ok {
				return
			}
			key := boxKey{signal: c.Signal, path: c.Path}
			base, known := signalDomain(e.norm, c.Signal, c.Path)
			if !known {
				ok = false
				return
			}
			cur, have := box.intervals[key]
			if !have {
				cur = base
			}
			var constraint interval
			switch c.Op {
			case model.OpGTE:
				constraint = interval{lo: c.Threshold, hi: math.Inf(1)}
			case model.OpGT:
				constraint = interval{lo: c.Threshold, hi: math.Inf(1), loOpen: true}
			case model.OpLTE:
				constraint = interval{lo: math.Inf(-1), hi: c.Threshold}
			case model.OpLT:
				constraint = interval{lo: math.Inf(-1), hi: c.Threshold, hiOpen: true}
			case model.OpEQ:
				constraint = interval{lo: c.Threshold, hi: c.Threshold}
			default:
				ok = false
				return
			}
			box.intervals[key] = cur.intersect(constraint)
		})
		if !ok {
			return nil, false
		}
	}
	return box, true
}

func (b *gateBox) empty() bool {
	for _, iv := range b.intervals {
		if iv.empty() {
			return true
		}
	}
	return false
}

// containedIn reports whether every point admitted by b is admitted by
// other. Unconstrained signals default to their full domain.
func (b *gateBox) containedIn(other *gateBox) bool {
	if b.empty() {
		return true
	}
	for key, ivOther := range other.intervals {
		if !b.get(key, b.norm).containedIn(ivOther) {
			return false
		}
	}
	return true
}

func (b *gateBox) get(key boxKey, norm *model.Normalizer) interval {
	if iv, ok := b.intervals[key]; ok {
		return iv
	}
	iv, _ := signalDomain(norm, key.signal, key.path)
	return iv
}

// signalDomain returns the full admissible range for a signal: the group
// domain for raw values, the symmetric span for deltas.
func signalDomain(norm *model.Normalizer, sig model.Signal, path string) (interval, bool) {
	d, ok := norm.DomainForPath(path)
	if !ok {
		return interval{}, false
	}
	if sig == model.SignalDelta {
		return interval{lo: -d.Span(), hi: d.Span()}, true
	}
	return interval{lo: d.Min, hi: d.Max}, true
}

func unionKeys(a, b *gateBox) []boxKey {
	seen := map[boxKey]bool{}
	var keys []boxKey
	for k := range a.intervals {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b.intervals {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	// Deterministic evidence order for reports and goldens.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].path != keys[j].path {
			return keys[i].path < keys[j].path
		}
		return keys[i].signal < keys[j].signal
	})
	return keys
}

// pearson is NaN when fewer than two points or either side has zero
// variance.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < 2 {
		return math.NaN()
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

func meanAbsDiff(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n == 0 {
		return math.NaN()
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(xs[i] - ys[i])
	}
	return sum / float64(n)
}
