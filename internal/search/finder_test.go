package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/sample"
)

func cmpPrereq(path string, op model.CompareOp, threshold float64) model.Prerequisite {
	return model.Prerequisite{Logic: model.CmpExpr{
		Signal: model.SignalRaw, Path: path, Op: op, Threshold: threshold,
	}}
}

// seqSource replays a fixed candidate sequence, then repeats the last one.
type seqSource struct {
	ctxs []*model.AffectContext
	i    int
}

func (s *seqSource) Generate() *model.AffectContext {
	if s.i < len(s.ctxs)-1 {
		s.i++
		return s.ctxs[s.i-1]
	}
	return s.ctxs[len(s.ctxs)-1]
}

func moodOnly(valence float64) *model.AffectContext {
	return &model.AffectContext{Mood: map[string]float64{"valence": valence}}
}

func TestFindWitness_EmptyPrerequisites(t *testing.T) {
	f := NewFinder(sample.NewGenerator(1), nil, nil)

	var progressCalls int
	res, err := f.FindWitness(context.Background(), model.Expression{ID: "empty"}, Options{
		MaxIterations: 500,
		OnProgress:    func(completed, total int) { progressCalls++ },
	})
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.NotNil(t, res.Witness)
	assert.Equal(t, 1, res.IterationsUsed, "must succeed on the very first iteration")
	assert.Equal(t, 1.0, res.BestFitness)
	assert.Zero(t, progressCalls, "onProgress must never fire for an empty prerequisite set")
	assert.Empty(t, res.ViolatedClauses)
}

func TestFindWitness_TriviallySatisfiable(t *testing.T) {
	f := NewFinder(sample.NewGenerator(7), nil, nil)
	expr := model.Expression{
		ID:            "always",
		Prerequisites: []model.Prerequisite{cmpPrereq("mood.valence", model.OpLTE, 100)},
	}

	res, err := f.FindWitness(context.Background(), expr, Options{MaxIterations: 10})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 1, res.IterationsUsed)
}

func TestFindWitness_Unsatisfiable(t *testing.T) {
	f := NewFinder(sample.NewGenerator(99), nil, nil)
	expr := model.Expression{
		ID:            "impossible",
		Prerequisites: []model.Prerequisite{cmpPrereq("mood.valence", model.OpGT, 500)},
	}

	var progress []int
	res, err := f.FindWitness(context.Background(), expr, Options{
		MaxIterations: 500,
		OnProgress:    func(completed, total int) { progress = append(progress, completed) },
	})
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Nil(t, res.Witness)
	assert.NotNil(t, res.NearestMiss)
	assert.LessOrEqual(t, res.IterationsUsed, 500)
	assert.GreaterOrEqual(t, res.BestFitness, 0.0)
	assert.Less(t, res.BestFitness, 1.0)
	require.NotEmpty(t, res.ViolatedClauses)
	assert.Equal(t, "mood.valence", res.ViolatedClauses[0].Clause.Path)
	assert.True(t, res.ViolatedClauses[0].Resolved)

	// Chunk completion fires at 100, 200, 300, 400 - never at the final 500.
	require.Equal(t, []int{100, 200, 300, 400}, progress)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1], "progress must be strictly increasing")
	}
}

func TestFindWitness_BestFitnessTracksClosestCandidate(t *testing.T) {
	// Candidates approach the threshold, then retreat; the near-miss must
	// stay pinned to the closest one seen.
	src := &seqSource{ctxs: []*model.AffectContext{
		moodOnly(-90),
		moodOnly(10),
		moodOnly(80), // closest to >: 95
		moodOnly(-50),
	}}
	f := NewFinder(src, nil, nil)
	expr := model.Expression{
		ID:            "high-valence",
		Prerequisites: []model.Prerequisite{cmpPrereq("mood.valence", model.OpGT, 95)},
	}

	res, err := f.FindWitness(context.Background(), expr, Options{MaxIterations: 4})
	require.NoError(t, err)
	assert.False(t, res.Found)
	require.NotNil(t, res.NearestMiss)
	assert.Equal(t, 80.0, res.NearestMiss.Mood["valence"])
	// 1 - |80-95|/200 = 0.925
	assert.InDelta(t, 0.925, res.BestFitness, 1e-12)
}

func TestFindWitness_ThresholdEqualityScoresBelowOne(t *testing.T) {
	src := &seqSource{ctxs: []*model.AffectContext{moodOnly(95)}}
	f := NewFinder(src, nil, nil)
	expr := model.Expression{
		ID:            "strict",
		Prerequisites: []model.Prerequisite{cmpPrereq("mood.valence", model.OpGT, 95)},
	}

	res, err := f.FindWitness(context.Background(), expr, Options{MaxIterations: 3})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.InDelta(t, 0.99, res.BestFitness, 1e-12,
		"a violated clause must score strictly below a satisfied one")
}

func TestFindWitness_CancellationAtYieldBoundary(t *testing.T) {
	f := NewFinder(sample.NewGenerator(5), nil, nil)
	expr := model.Expression{
		ID:            "impossible",
		Prerequisites: []model.Prerequisite{cmpPrereq("mood.valence", model.OpGT, 500)},
	}

	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.FindWitness(ctx, expr, Options{
		MaxIterations: 500,
		OnProgress: func(completed, total int) {
			if completed == 200 {
				cancel()
			}
		},
	})
	require.Error(t, err)
	assert.True(t, IsCancelled(err), "cancellation must be distinguishable from exhaustion")

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCancelled, se.Code)
	assert.Equal(t, "impossible", se.ExpressionID)
	assert.Equal(t, 200, se.Iteration)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindWitness_DeltaClause(t *testing.T) {
	f := NewFinder(sample.NewGenerator(11), nil, nil)
	expr := model.Expression{
		ID: "rising-valence",
		Prerequisites: []model.Prerequisite{{Logic: model.CmpExpr{
			Signal: model.SignalDelta, Path: "mood.valence", Op: model.OpGT, Threshold: 20,
		}}},
	}

	res, err := f.FindWitness(context.Background(), expr, Options{MaxIterations: 500})
	require.NoError(t, err)
	require.True(t, res.Found, "a +20 valence swing should be easy to sample")
	cur := res.Witness.Mood["valence"]
	prev := res.Witness.Previous.Mood["valence"]
	assert.Greater(t, cur-prev, 20.0)
}

func TestFindWitness_MissingVariableViolation(t *testing.T) {
	src := &seqSource{ctxs: []*model.AffectContext{moodOnly(0)}}
	f := NewFinder(src, nil, nil)
	expr := model.Expression{
		ID:            "ghost",
		Prerequisites: []model.Prerequisite{cmpPrereq("mood.ghost", model.OpGTE, 0)},
	}

	res, err := f.FindWitness(context.Background(), expr, Options{MaxIterations: 2})
	require.NoError(t, err)
	assert.False(t, res.Found)
	require.NotEmpty(t, res.ViolatedClauses)
	assert.False(t, res.ViolatedClauses[0].Resolved)
}
