package feasibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/sample"
)

func prereq(expr model.LogicExpr) model.Prerequisite {
	return model.Prerequisite{Logic: expr}
}

func cmp(path string, op model.CompareOp, threshold float64) model.CmpExpr {
	return model.CmpExpr{Signal: model.SignalRaw, Path: path, Op: op, Threshold: threshold}
}

func poolOf(valences ...float64) []*model.AffectContext {
	pool := make([]*model.AffectContext, 0, len(valences))
	for _, v := range valences {
		pool = append(pool, &model.AffectContext{
			Mood: map[string]float64{"valence": v},
		})
	}
	return pool
}

func TestExtractClauses_WalksNestedLogic(t *testing.T) {
	prereqs := []model.Prerequisite{
		prereq(cmp("mood.valence", model.OpGTE, 30)),
		prereq(model.AndExpr{Terms: []model.LogicExpr{
			cmp("mood.arousal", model.OpLT, 0),
			model.CmpExpr{Signal: model.SignalDelta, Path: "mood.valence", Op: model.OpGT, Threshold: 10},
		}}),
	}

	clauses := ExtractClauses(prereqs)
	require.Len(t, clauses, 3)
	assert.Equal(t, "mood.valence", clauses[0].Path)
	assert.Equal(t, model.SignalRaw, clauses[0].Signal)
	assert.Equal(t, "mood.arousal", clauses[1].Path)
	assert.Equal(t, model.SignalDelta, clauses[2].Signal)
	assert.Equal(t, 10.0, clauses[2].Threshold)
}

func TestAnalyze_OK(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	prereqs := []model.Prerequisite{prereq(cmp("mood.valence", model.OpGTE, 30))}

	results := a.Analyze(prereqs, poolOf(-50, 10, 40, 90), "expr-1")
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, ClassOK, r.Classification)
	assert.InDelta(t, 0.5, r.PassRate, 1e-12)
	assert.Equal(t, 4, r.Observations)
	assert.Equal(t, 90.0, r.MaxValue)
	assert.Equal(t, -50.0, r.MinValue)
	// Bound invariant: a passing >= clause must have maxValue >= threshold.
	assert.GreaterOrEqual(t, r.MaxValue, r.Clause.Threshold)
}

func TestAnalyze_TheoreticallyImpossible(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	testCases := []struct {
		name   string
		clause model.CmpExpr
	}{
		{"above domain max", cmp("mood.valence", model.OpGTE, 150)},
		{"strict at domain max", cmp("mood.valence", model.OpGT, 100)},
		{"below domain min", cmp("mood.valence", model.OpLTE, -150)},
		{"strict at domain min", cmp("mood.valence", model.OpLT, -100)},
		{"equality outside domain", cmp("mood.valence", model.OpEQ, 400)},
		{
			"delta beyond double span",
			model.CmpExpr{Signal: model.SignalDelta, Path: "mood.valence", Op: model.OpGT, Threshold: 250},
		},
	}

	pool := poolOf(-80, 0, 80)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results := a.Analyze([]model.Prerequisite{prereq(tc.clause)}, pool, "expr")
			require.Len(t, results, 1)
			assert.Equal(t, ClassTheoreticallyImpossible, results[0].Classification)
			assert.Zero(t, results[0].PassRate)
		})
	}
}

func TestAnalyze_EmpiricallyUnreachable(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	// Threshold 95 is inside the domain, but the pool tops out at 80: a
	// ceiling effect, not a structural impossibility.
	prereqs := []model.Prerequisite{prereq(cmp("mood.valence", model.OpGTE, 95))}

	results := a.Analyze(prereqs, poolOf(-80, 0, 80), "expr")
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, ClassEmpiricallyUnreachable, r.Classification)
	assert.Zero(t, r.PassRate)
	assert.Less(t, r.MaxValue, r.Clause.Threshold,
		"observed ceiling must sit strictly on the wrong side of the threshold")
}

func TestAnalyze_NeverContradictory(t *testing.T) {
	// Property sweep: over random pools and thresholds, a clause must never
	// be reported as passing alongside an impossible bound.
	a := NewAnalyzer(nil, nil)
	gen := sample.NewGenerator(123)
	pool := gen.Pool(200)

	thresholds := []float64{-220, -130, -80, -15, 0, 42, 87, 99.5, 130, 260}
	ops := []model.CompareOp{model.OpGTE, model.OpGT, model.OpLTE, model.OpLT}
	signals := []model.Signal{model.SignalRaw, model.SignalDelta}

	for _, sig := range signals {
		for _, op := range ops {
			for _, th := range thresholds {
				clause := model.CmpExpr{Signal: sig, Path: "mood.valence", Op: op, Threshold: th}
				results := a.Analyze([]model.Prerequisite{prereq(clause)}, pool, "sweep")
				require.Len(t, results, 1)
				r := results[0]

				if r.PassRate > 0 {
					require.Equal(t, ClassOK, r.Classification)
					if op.IsGreater() {
						if op == model.OpGTE {
							assert.GreaterOrEqual(t, r.MaxValue, th)
						} else {
							assert.Greater(t, r.MaxValue, th)
						}
					} else {
						if op == model.OpLTE {
							assert.LessOrEqual(t, r.MinValue, th)
						} else {
							assert.Less(t, r.MinValue, th)
						}
					}
				} else {
					require.Contains(t,
						[]Classification{ClassTheoreticallyImpossible, ClassEmpiricallyUnreachable},
						r.Classification)
				}
			}
		}
	}
}

func TestAnalyze_UnknownAxisGroup(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	prereqs := []model.Prerequisite{prereq(cmp("spirit.vigor", model.OpGTE, 0))}

	results := a.Analyze(prereqs, poolOf(0), "expr")
	require.Len(t, results, 1)
	assert.Equal(t, ClassTheoreticallyImpossible, results[0].Classification)
	assert.Zero(t, results[0].Observations)
}

func TestAnalyze_EmptyInputs(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	assert.Nil(t, a.Analyze(nil, poolOf(1, 2), "expr"))

	results := a.Analyze(
		[]model.Prerequisite{prereq(cmp("mood.valence", model.OpGTE, 0))},
		nil, "expr")
	require.Len(t, results, 1)
	assert.Zero(t, results[0].PassRate)
	assert.Equal(t, ClassEmpiricallyUnreachable, results[0].Classification)
}
